// Package scheduler
package scheduler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/alerts"
)

// Scheduler runs the periodic background jobs: the autonomous alert check
// and a self-ping that keeps free hosting tiers from idling the process.
type Scheduler struct {
	cron    *cron.Cron
	alerts  *alerts.Manager
	pingURL string
	client  *http.Client
	logger  *zap.Logger
}

// New creates a scheduler; pingURL may be empty to disable the self-ping.
func New(al *alerts.Manager, pingURL string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		alerts:  al,
		pingURL: pingURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Register adds all jobs to the cron table.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc("@every 1m", s.alerts.RunCheck); err != nil {
		return fmt.Errorf("register alert check: %w", err)
	}
	if s.pingURL != "" {
		if _, err := s.cron.AddFunc("@every 14m", s.selfPing); err != nil {
			return fmt.Errorf("register self ping: %w", err)
		}
	}
	return nil
}

// Start begins job execution.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler | started")
}

// Stop halts the cron table and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler | stopped")
}

func (s *Scheduler) selfPing() {
	resp, err := s.client.Get(s.pingURL)
	if err != nil {
		s.logger.Warn("Scheduler | self ping failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	s.logger.Debug("Scheduler | self ping", zap.Int("status", resp.StatusCode))
}
