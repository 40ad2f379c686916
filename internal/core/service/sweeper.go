package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

const defaultSignalQueueSize = 16

type SweeperConfig struct {
	// Schedule is a cron spec (e.g. "@every 1m") for periodic trims. Empty
	// disables the schedule; signals still work.
	Schedule  string
	QueueSize int
}

// Sweeper moves trimming off the mutation path. Mutations signal it through a
// buffered channel and a single worker runs the trims.
type Sweeper struct {
	reaper  *Reaper
	signals chan struct{}
	cron    *cron.Cron
	logger  *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(reaper *Reaper, cfg SweeperConfig, opts Options) (*Sweeper, error) {
	opts = opts.withDefaults()

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultSignalQueueSize
	}

	s := &Sweeper{
		reaper:  reaper,
		signals: make(chan struct{}, queueSize),
		logger:  opts.Logger,
	}

	if cfg.Schedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.Schedule, s.scheduledTrim); err != nil {
			return nil, fmt.Errorf("parse sweep schedule %q: %w", cfg.Schedule, err)
		}
	}

	return s, nil
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(s.ctx)

	if s.cron != nil {
		s.cron.Start()
	}
	s.logger.Info("history sweeper started", "scheduled", s.cron != nil)
}

// Stop cancels the worker and waits for any running trim to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("history sweeper stopped")
}

// Signal asks for a trim. It never blocks; a signal is dropped when one is
// already pending.
func (s *Sweeper) Signal() bool {
	select {
	case s.signals <- struct{}{}:
		return true
	default:
		return false
	}
}

// AfterMutation keeps the probabilistic trigger of the inline reaper but
// hands the work to the worker.
func (s *Sweeper) AfterMutation(context.Context) {
	if s.reaper.ShouldTrim() {
		s.Signal()
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signals:
			s.reaper.trimAndLog(ctx)
		}
	}
}

func (s *Sweeper) scheduledTrim() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.reaper.trimAndLog(ctx)
}
