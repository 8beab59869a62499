package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/karttaio/kartta/engine"
)

// ExportJSON writes the full snapshot as indented JSON.
func (s *Service) ExportJSON(ctx context.Context, req engine.Request, w io.Writer) error {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

var csvHeader = []string{
	"service_id", "resource_id", "resource_name", "region",
	"service_type", "estimated_monthly_cost", "count", "details", "discovered_at",
}

// ExportCSV writes one row per record. Details are JSON-encoded into a
// single column so the file stays flat.
func (s *Service) ExportCSV(ctx context.Context, req engine.Request, w io.Writer) error {
	snap, err := s.Snapshot(ctx, req, false)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, rec := range snap.Records {
		details, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details for %s: %w", rec.ResourceID, err)
		}
		row := []string{
			rec.ServiceID,
			rec.ResourceID,
			rec.ResourceName,
			rec.Region,
			string(rec.ServiceType),
			strconv.FormatFloat(rec.EstimatedMonthlyCost, 'f', 2, 64),
			strconv.Itoa(rec.Count),
			string(details),
			rec.DiscoveredAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
