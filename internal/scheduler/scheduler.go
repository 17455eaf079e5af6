package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/config"
)

const jobTimeout = 2 * time.Minute

// Roller applies the daily attendance reset.
type Roller interface {
	Rollover(ctx context.Context) (bool, error)
}

// Publisher pushes attendance to an external sheet.
type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	roller    Roller
	publisher Publisher
	cfg       config.SchedulerConfig
	logger    *zap.Logger
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(cfg config.SchedulerConfig, loc *time.Location, roller Roller, publisher Publisher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	// Standard 5-field parser: min, hour, dom, month, dow.
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:      c,
		roller:    roller,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Register adds the rollover job and, when a sheet is configured, the publish job.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.cfg.RolloverCron, s.runRollover); err != nil {
		return fmt.Errorf("schedule rollover %q: %w", s.cfg.RolloverCron, err)
	}

	if s.publisher != nil && s.publisher.Enabled() {
		if _, err := s.cron.AddFunc(s.cfg.SheetPublishCron, s.runPublish); err != nil {
			return fmt.Errorf("schedule sheet publish %q: %w", s.cfg.SheetPublishCron, err)
		}
	}

	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runRollover() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	rolled, err := s.roller.Rollover(ctx)
	if err != nil {
		s.logger.Error("scheduled rollover failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled rollover finished", zap.Bool("reset", rolled))
}

func (s *Scheduler) runPublish() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	rows, err := s.publisher.Publish(ctx)
	if err != nil {
		s.logger.Error("failed to publish attendance sheet", zap.Error(err))
		return
	}
	s.logger.Info("attendance sheet published", zap.Int("rows", rows))
}
