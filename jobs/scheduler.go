// Package jobs runs scheduled budget maintenance: utilization sync and a
// reconciliation scan that alerts by email when it finds problems.
package jobs

import (
	"context"
	"fmt"
	"time"

	"prfmonitor/config"
	"prfmonitor/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const runTimeout = 10 * time.Minute

// Alerter delivers reconciliation findings.
type Alerter interface {
	Enabled() bool
	SendReconciliationAlert(to []string, report *service.ReconciliationReport) error
}

// Scheduler wraps a cron instance with the maintenance job.
type Scheduler struct {
	cron       *cron.Cron
	loc        *time.Location
	db         *gorm.DB
	budget     config.BudgetConfig
	recipients []string
	alerter    Alerter
	log        *zap.Logger
}

// New validates the schedule and timezone and registers the job. Call Start to run it.
func New(cfg *config.Config, db *gorm.DB, alerter Alerter, log *zap.Logger) (*Scheduler, error) {
	tz := cfg.Jobs.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid jobs timezone %q: %w", tz, err)
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		loc:        loc,
		db:         db,
		budget:     cfg.Budget,
		recipients: cfg.Jobs.AlertRecipients,
		alerter:    alerter,
		log:        log.Named("jobs"),
	}
	if _, err := s.cron.AddFunc(cfg.Jobs.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid jobs schedule %q: %w", cfg.Jobs.Schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("maintenance job scheduled", zap.Time("next", e.Next))
	}
}

// Stop halts scheduling and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("maintenance run failed", zap.Error(err))
	}
}

// RunOnce syncs utilization and scans for reconciliation issues in the current fiscal year.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.ReconciliationReport, error) {
	year := time.Now().In(s.loc).Year()
	start := time.Now()
	utilization := service.NewUtilizationService(s.db, s.budget)

	changed, err := utilization.Sync(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("sync utilization: %w", err)
	}
	s.log.Info("utilization synced", zap.Int("fiscal_year", year), zap.Int("updated", changed))

	report, err := service.NewReconcileService(s.db, utilization).Report(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("reconciliation scan: %w", err)
	}
	s.Notify(report)
	s.log.Info("maintenance run finished", zap.Duration("took", time.Since(start)))
	return report, nil
}

// Notify logs the report and mails it when there are findings.
func (s *Scheduler) Notify(report *service.ReconciliationReport) {
	if !report.HasFindings() {
		s.log.Info("reconciliation clean", zap.Int("fiscal_year", report.FiscalYear))
		return
	}
	s.log.Warn("reconciliation findings",
		zap.Int("fiscal_year", report.FiscalYear),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("mismatches", len(report.Mismatches)),
		zap.Int("duplicate_budgets", len(report.DuplicateBudgets)),
		zap.Int("missing_budgets", len(report.MissingBudgets)),
		zap.Int("over_budget", len(report.OverBudget)))

	if s.alerter == nil || !s.alerter.Enabled() || len(s.recipients) == 0 {
		return
	}
	if err := s.alerter.SendReconciliationAlert(s.recipients, report); err != nil {
		s.log.Error("reconciliation alert failed", zap.Error(err))
		return
	}
	s.log.Info("reconciliation alert sent", zap.Strings("to", s.recipients))
}
