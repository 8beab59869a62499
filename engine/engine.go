// Package engine fans the probe fleet out over the resolved regions with
// a bounded worker pool and folds the results into one snapshot.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/karttaio/kartta/awsclients"
	"github.com/karttaio/kartta/broker"
	"github.com/karttaio/kartta/catalog"
	"github.com/karttaio/kartta/config"
	"github.com/karttaio/kartta/normalize"
	"github.com/karttaio/kartta/probes"
	"github.com/karttaio/kartta/regions"
	"github.com/karttaio/kartta/telemetry"
	"github.com/karttaio/kartta/types"
)

// Request names one account to discover, plus per-run overrides.
type Request struct {
	AccountRef string
	RoleRef    string
	ExternalID string
	// Regions restricts the scan; empty means every enabled region.
	Regions []string
	// ServiceFilter keeps only records whose service id starts with one
	// of these prefixes. Probes that cannot emit a matching id are not
	// scheduled at all. Empty means everything.
	ServiceFilter []string
	// Concurrency overrides the configured pool size when positive.
	Concurrency int
	// Deadline overrides the configured run deadline when positive.
	Deadline time.Duration
	// SkipEmptyCost drops zero-cost records from the snapshot.
	SkipEmptyCost bool
}

// Engine runs discovery end to end for one request at a time.
type Engine struct {
	broker  *broker.Broker
	catalog *catalog.Catalog
	cfg     *config.Config
	fleet   []probes.Probe
	metrics *telemetry.DiscoveryMetrics
	logger  *telemetry.Logger

	clientBuilder awsclients.BuildFunc
	now           func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithProbes replaces the default probe fleet.
func WithProbes(fleet []probes.Probe) Option {
	return func(e *Engine) { e.fleet = fleet }
}

// WithClientBuilder replaces the AWS client constructor. Tests use this to
// hand every probe a mock ClientSet.
func WithClientBuilder(build awsclients.BuildFunc) Option {
	return func(e *Engine) { e.clientBuilder = build }
}

// WithMetrics attaches operational metrics.
func WithMetrics(m *telemetry.DiscoveryMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(b *broker.Broker, cat *catalog.Catalog, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		broker:  b,
		catalog: cat,
		cfg:     cfg,
		fleet:   probes.All(),
		logger:  telemetry.NewLogger("engine"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// task is one (probe, region) unit of work.
type task struct {
	probe  probes.Probe
	region string
}

// result is what a worker hands back to the collector.
type result struct {
	task    task
	records []types.ResourceRecord
	err     error
	cut     bool
	elapsed time.Duration
}

// Discover runs the full pipeline: credentials, region resolution, probe
// fan-out, normalization and assembly. Probe failures degrade into
// outcomes on the snapshot; only credential acquisition can fail the run.
func (e *Engine) Discover(ctx context.Context, req Request) (*types.Snapshot, error) {
	started := e.now().UTC()
	log := e.logger.WithContext(ctx)

	creds, err := e.broker.Acquire(ctx, req.RoleRef, req.ExternalID)
	if err != nil {
		return nil, err
	}

	factory := e.newFactory(creds)
	resolver := regions.NewResolver(factory.ForRegion("us-east-1").EC2, e.cfg.DefaultRegions)
	regionList := resolver.Resolve(ctx, req.Regions)

	deadline := e.cfg.RunDeadline
	if req.Deadline > 0 {
		deadline = req.Deadline
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	tasks := e.buildTasks(regionList, req.ServiceFilter)
	log.Info().
		Str("account_ref", req.AccountRef).
		Int("tasks", len(tasks)).
		Strs("regions", regionList).
		Msg("discovery run starting")

	results := e.fanOut(runCtx, factory, tasks, req.Concurrency)

	normalizer := normalize.New(e.catalog, regionList)
	var records []types.ResourceRecord
	var outcomes []types.ProbeOutcome

	for res := range results {
		kept, rejected := normalizer.Normalize(res.task.region, res.records)
		records = append(records, filterRecords(kept, req)...)

		outcome := e.outcomeFor(res, len(kept), rejected)
		outcomes = append(outcomes, outcome)
		e.record(runCtx, outcome, res.err, res.elapsed, len(kept), rejected)
	}

	truncated := runCtx.Err() != nil
	snap := Assemble(req.AccountRef, records, outcomes, regionList, started, e.now().UTC(), truncated)

	log.Info().
		Str("account_ref", req.AccountRef).
		Int("records", snap.TotalRecords).
		Float64("total_monthly_cost", snap.TotalMonthlyCost).
		Dur("duration", snap.Duration()).
		Bool("truncated", snap.TruncatedByDeadline).
		Msg("discovery run finished")

	if e.metrics != nil {
		e.metrics.RunDuration.Record(ctx, snap.Duration().Seconds())
	}
	return snap, nil
}

func (e *Engine) newFactory(creds broker.Credentials) *awsclients.Factory {
	if e.clientBuilder != nil {
		return awsclients.NewFactoryWithBuilder(creds.Provider(), e.cfg.PerCallTimeout, e.clientBuilder)
	}
	return awsclients.NewFactory(creds.Provider(), e.cfg.PerCallTimeout)
}

// filterRecords applies the request's service filter and zero-cost
// filter to normalized records.
func filterRecords(records []types.ResourceRecord, req Request) []types.ResourceRecord {
	if len(req.ServiceFilter) == 0 && !req.SkipEmptyCost {
		return records
	}
	kept := records[:0]
	for _, rec := range records {
		if req.SkipEmptyCost && rec.EstimatedMonthlyCost == 0 {
			continue
		}
		if len(req.ServiceFilter) > 0 && !matchesFilter(rec.ServiceID, req.ServiceFilter) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func matchesFilter(serviceID string, filter []string) bool {
	for _, prefix := range filter {
		if strings.HasPrefix(serviceID, prefix) {
			return true
		}
	}
	return false
}

// probeMatchesFilter reports whether the probe can emit any service id
// the filter admits. Probes without a registry entry always run.
func probeMatchesFilter(p probes.Probe, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	ids := probes.ServiceIDs(p.Name())
	if ids == nil {
		return true
	}
	for _, id := range ids {
		for _, prefix := range filter {
			// Either direction: a broad prefix admits a concrete id,
			// and a concrete filter admits a prefix id like ebs_volume_.
			if strings.HasPrefix(id, prefix) || strings.HasPrefix(prefix, id) {
				return true
			}
		}
	}
	return false
}

// buildTasks crosses regional probes with the region list and schedules
// each global probe exactly once. Probes the service filter rules out
// are skipped entirely.
func (e *Engine) buildTasks(regionList []string, filter []string) []task {
	var tasks []task
	for _, p := range e.fleet {
		if !probeMatchesFilter(p, filter) {
			continue
		}
		if p.Global() {
			tasks = append(tasks, task{probe: p, region: types.GlobalRegion})
			continue
		}
		for _, region := range regionList {
			tasks = append(tasks, task{probe: p, region: region})
		}
	}
	return tasks
}

// fanOut runs tasks on a bounded pool and closes the returned channel when
// every worker has drained.
func (e *Engine) fanOut(ctx context.Context, factory *awsclients.Factory, tasks []task, concurrency int) <-chan result {
	queue := make(chan task)
	results := make(chan result)

	workers := e.cfg.PoolSize
	if concurrency > 0 {
		workers = concurrency
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for t := range queue {
				results <- e.runTask(ctx, factory, t)
			}
		}()
	}

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-ctx.Done():
				// Deadline hit: report the rest as unstarted so the
				// snapshot says what was skipped.
				results <- result{task: t, err: ctx.Err()}
			}
		}
		close(queue)
	}()

	go func() {
		for i := 0; i < workers; i++ {
			<-done
		}
		<-produced
		close(results)
	}()

	return results
}

func (e *Engine) runTask(ctx context.Context, factory *awsclients.Factory, t task) result {
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.PerProbeTimeout)
	defer cancel()
	probeCtx = probes.WithItemCap(probeCtx, e.cfg.SafetyCapItems)

	start := e.now()
	records, err := t.probe.Discover(probeCtx, factory.ForRegion(t.region))
	res := result{
		task:    t,
		records: records,
		err:     err,
		elapsed: e.now().Sub(start),
	}

	if limit := e.cfg.SafetyCapItems; limit > 0 && len(res.records) >= limit {
		res.records = res.records[:limit]
		res.cut = true
	}
	return res
}

func (e *Engine) outcomeFor(res result, kept, rejected int) types.ProbeOutcome {
	outcome := types.ProbeOutcome{
		Probe:         res.task.probe.Name(),
		Region:        res.task.region,
		Status:        types.ProbeOK,
		ItemsEmitted:  kept,
		ItemsRejected: rejected,
		Truncated:     res.cut,
	}
	if res.cut || rejected > 0 {
		outcome.Status = types.ProbePartial
	}
	if res.err != nil {
		outcome.Status = types.ProbeFailed
		if len(res.records) > 0 {
			outcome.Status = types.ProbePartial
		}
		outcome.ErrorKind = types.Classify(res.err)
		outcome.Error = res.err.Error()
	}
	return outcome
}

func (e *Engine) record(ctx context.Context, outcome types.ProbeOutcome, err error, elapsed time.Duration, kept, rejected int) {
	e.logger.LogProbeOutcome(ctx, outcome.Probe, outcome.Region, string(outcome.Status), kept, err)
	if e.metrics == nil {
		return
	}
	e.metrics.RecordsDiscovered.Add(ctx, int64(kept))
	e.metrics.RecordsRejected.Add(ctx, int64(rejected))
	if outcome.Status == types.ProbeFailed {
		e.metrics.ProbeFailures.Add(ctx, 1)
	}
	e.metrics.ProbeDuration.Record(ctx, elapsed.Seconds())
}
