package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/karttaio/kartta/broker"
	"github.com/karttaio/kartta/catalog"
	"github.com/karttaio/kartta/config"
	"github.com/karttaio/kartta/engine"
	"github.com/karttaio/kartta/service"
	"github.com/karttaio/kartta/snapcache"
	"github.com/karttaio/kartta/telemetry"
)

const version = "0.1.0"

var (
	cfgFile string
	debug   bool

	// flags shared by the account-scoped commands
	flagAccount    string
	flagRole       string
	flagExternalID string
	flagRegions    []string
)

var rootCmd = &cobra.Command{
	Use:     "kartta",
	Short:   "Cloud account inventory and cost estimation",
	Long:    "Kartta discovers what exists in an AWS account and what it costs per month.",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func addAccountFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagAccount, "account", "", "account reference (required)")
	cmd.Flags().StringVar(&flagRole, "role", "", "role to assume in the account (required)")
	cmd.Flags().StringVar(&flagExternalID, "external-id", "", "external id for the role")
	cmd.Flags().StringSliceVar(&flagRegions, "region", nil, "restrict the scan to these regions")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("role")
}

func accountRequest() engine.Request {
	return engine.Request{
		AccountRef: flagAccount,
		RoleRef:    flagRole,
		ExternalID: flagExternalID,
		Regions:    flagRegions,
	}
}

// app bundles everything a command needs.
type app struct {
	cfg   *config.Config
	svc   *service.Service
	store *snapcache.Store
}

func (a *app) Close() {
	_ = a.store.Close()
}

// buildApp wires broker, catalog, engine, cache and service from config.
func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cat, err := catalog.Load(cfg.PricingCatalog)
	if err != nil {
		return nil, err
	}

	b, err := broker.New(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := initMetrics()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", cfg.DataDir, err)
	}
	store, err := snapcache.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	eng := engine.New(b, cat, cfg, engine.WithMetrics(metrics))
	cache := snapcache.NewCache(store, cfg.CacheTTL, metrics)

	return &app{
		cfg:   cfg,
		svc:   service.New(eng, cache),
		store: store,
	}, nil
}

// initMetrics wires the OTel meter provider to a Prometheus exporter so
// the daemon's /metrics endpoint sees everything the engine records.
func initMetrics() (*telemetry.DiscoveryMetrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return telemetry.InitDiscoveryMetrics(otel.Meter("github.com/karttaio/kartta"))
}
