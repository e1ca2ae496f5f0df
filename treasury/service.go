package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/treasury/models"
	"github.com/use-agent/treasury/retry"
	"golang.org/x/sync/errgroup"
)

// placeholderName marks records synthesized for funds whose pipeline
// exhausted its retries.
const placeholderName = "Failed to extract"

// Service orchestrates the retry-wrapped pipeline across the whole roster.
// It always returns exactly one record per fund, in roster order, no matter
// how many individual pipelines fail.
type Service struct {
	pipeline *Pipeline
	roster   []Fund
	retryCfg retry.Config
}

// NewService validates the roster and builds the orchestrator. This is the
// only failure point: once constructed, a run is total.
func NewService(p *Pipeline, roster []Fund, retryCfg retry.Config) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("treasury: pipeline is required")
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("treasury: roster is empty")
	}
	seen := make(map[string]struct{}, len(roster))
	for _, f := range roster {
		if f.Symbol == "" || f.URL == "" {
			return nil, fmt.Errorf("treasury: fund %+v missing symbol or URL", f)
		}
		if _, dup := seen[f.Symbol]; dup {
			return nil, fmt.Errorf("treasury: duplicate roster symbol %s", f.Symbol)
		}
		seen[f.Symbol] = struct{}{}
	}
	return &Service{pipeline: p, roster: roster, retryCfg: retryCfg}, nil
}

// RosterSize returns the number of funds extracted per run.
func (s *Service) RosterSize() int {
	return len(s.roster)
}

// DailyHoldings runs every fund's retry-wrapped pipeline concurrently and
// assembles the snapshot. Each goroutine owns exactly one outcome slot, so
// no locking is needed; the output list is assembled only after all tasks
// finish. Per-fund failure never propagates: it becomes a placeholder
// record with the terminal error in its notes.
func (s *Service) DailyHoldings(ctx context.Context) []models.HoldingsRecord {
	start := time.Now()

	type outcome struct {
		rec *models.HoldingsRecord
		err error
	}
	outcomes := make([]outcome, len(s.roster))

	var g errgroup.Group
	for i, fund := range s.roster {
		g.Go(func() error {
			cfg := s.retryCfg
			cfg.Notify = func(err error, wait time.Duration) {
				slog.Warn("fund attempt failed, backing off",
					"symbol", fund.Symbol, "wait", wait, "error", err)
			}
			rec, err := retry.Do(ctx, func(ctx context.Context) (*models.HoldingsRecord, error) {
				return s.pipeline.Run(ctx, fund)
			}, cfg)
			outcomes[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in outcome slots

	records := make([]models.HoldingsRecord, 0, len(s.roster))
	for i, fund := range s.roster {
		o := outcomes[i]
		if o.err != nil {
			slog.Warn("fund extraction exhausted retries",
				"symbol", fund.Symbol, "error", o.err)
			records = append(records, placeholderRecord(fund, o.err))
			continue
		}
		records = append(records, normalize(fund, *o.rec))
	}

	found := CountFound(records)
	slog.Info("daily holdings run complete",
		"found", found,
		"total", len(records),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return records
}

// placeholderRecord synthesizes the uniform failure record for one fund:
// holdings fields empty, data_found false, terminal error in the notes.
func placeholderRecord(fund Fund, err error) models.HoldingsRecord {
	return models.HoldingsRecord{
		Symbol:    fund.Symbol,
		Name:      placeholderName,
		SourceURL: fund.URL,
		DataFound: false,
		Notes:     err.Error(),
	}
}

// normalize enforces the output invariant on a pipeline-produced record:
// data_found implies a non-nil quantity. The orchestrator asserts this
// itself rather than trusting the pipeline or the retry layer.
func normalize(fund Fund, rec models.HoldingsRecord) models.HoldingsRecord {
	rec.Symbol = fund.Symbol
	if rec.DataFound && rec.BitcoinQuantity == nil {
		rec.DataFound = false
		if rec.Notes != "" {
			rec.Notes += "; "
		}
		rec.Notes += "record claimed data_found without a bitcoin quantity"
	}
	return rec
}

// CountFound reports how many records carry usable holdings data.
func CountFound(records []models.HoldingsRecord) int {
	n := 0
	for i := range records {
		if records[i].Complete() {
			n++
		}
	}
	return n
}
