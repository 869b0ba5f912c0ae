// Package scheduler runs periodic background jobs next to the HTTP server.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
)

// InventoryReportScheduler publishes the unsold count of every ticket type
// of events that have not ended yet as Prometheus gauges.
type InventoryReportScheduler struct {
	db       *db.DB
	ledger   *inventory.Ledger
	metrics  *metrics.Metrics
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
}

// NewInventoryReportScheduler creates a new scheduler
func NewInventoryReportScheduler(conn *db.DB, ledger *inventory.Ledger, m *metrics.Metrics, log *logger.Logger, interval time.Duration) *InventoryReportScheduler {
	return &InventoryReportScheduler{
		db:       conn,
		ledger:   ledger,
		metrics:  m,
		log:      log.With("component", "scheduler"),
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one report immediately and then one per interval until Stop.
func (s *InventoryReportScheduler) Start(ctx context.Context) {
	s.log.Info("inventory report job started", "interval", s.interval.String())
	s.report(ctx)

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.report(ctx)
			case <-s.stopChan:
				ticker.Stop()
				s.log.Info("inventory report job stopped")
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running report to finish.
func (s *InventoryReportScheduler) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *InventoryReportScheduler) report(ctx context.Context) {
	n, err := s.Report(ctx)
	if err != nil {
		s.log.Warn("inventory report failed", "error", err)
		return
	}
	s.log.Debug("inventory report published", "ticket_types", n)
}

// Report refreshes the gauges once and returns how many ticket types it
// published.
func (s *InventoryReportScheduler) Report(ctx context.Context) (int, error) {
	ids, err := s.openEvents(ctx)
	if err != nil {
		return 0, err
	}

	s.metrics.ResetAvailable()
	published := 0
	for _, id := range ids {
		snaps, err := s.ledger.Snapshots(ctx, s.db, id)
		if err != nil {
			return published, err
		}
		eventLabel := strconv.FormatInt(id, 10)
		for _, snap := range snaps {
			s.metrics.SetAvailable(eventLabel, snap.Classification, snap.Available())
			published++
		}
	}
	return published, nil
}

// openEvents lists events whose end is still ahead. End times are compared
// in Go so the query is the same on every driver.
func (s *InventoryReportScheduler) openEvents(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, end_at FROM events`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var ids []int64
	for rows.Next() {
		var (
			id  int64
			end db.Timestamp
		)
		if err := rows.Scan(&id, &end); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if end.Time.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
