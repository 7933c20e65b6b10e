package watch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/stellarlinkco/myalex/internal/api"
	"github.com/stellarlinkco/myalex/internal/config"
	"github.com/stellarlinkco/myalex/internal/notify"
)

// SafetyClient fetches the current safety-net report.
type SafetyClient interface {
	SafetyNet(ctx context.Context) (api.SafetyNetResponse, error)
}

// Preloader re-warms the landmark cache.
type Preloader interface {
	PreloadNearby(ctx context.Context, userID string)
}

// Service runs the background schedules: a safety-net poll that notifies on
// alert-level changes, and a nightly cache re-warm. Both run on cron specs
// with a seconds field.
type Service struct {
	cfg      config.WatchConfig
	client   SafetyClient
	preload  Preloader
	notifier notify.Notifier
	userID   string

	mu        sync.Mutex
	lastLevel string
	cron      *rcron.Cron
	cancel    context.CancelFunc
}

func NewService(cfg config.WatchConfig, client SafetyClient, preload Preloader, notifier notify.Notifier, userID string) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		preload:  preload,
		notifier: notifier,
		userID:   userID,
	}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.cron = rcron.New(rcron.WithSeconds())
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.cfg.SafetyPollSpec, func() { s.pollSafety(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("register safety poll %q: %w", s.cfg.SafetyPollSpec, err)
	}
	if s.preload != nil {
		if _, err := s.cron.AddFunc(s.cfg.PreloadCronSpec, func() { s.preload.PreloadNearby(runCtx, s.userID) }); err != nil {
			cancel()
			return fmt.Errorf("register preload %q: %w", s.cfg.PreloadCronSpec, err)
		}
	}

	s.cron.Start()
	log.Printf("[watch] started (safety %q, preload %q)", s.cfg.SafetyPollSpec, s.cfg.PreloadCronSpec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	cron := s.cron
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	if cron != nil {
		stopCtx := cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[watch] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[watch] stopped")
}

// pollSafety fetches the safety report and notifies when the alert level
// moved since the previous poll. The first poll seeds the baseline without
// notifying unless the level is already elevated.
func (s *Service) pollSafety(ctx context.Context) {
	resp, err := s.client.SafetyNet(ctx)
	if err != nil {
		log.Printf("[watch] safety poll failed: %v", err)
		return
	}

	level := strings.ToLower(strings.TrimSpace(resp.AlertLevel))
	if level == "" {
		level = "normal"
	}

	s.mu.Lock()
	prev := s.lastLevel
	s.lastLevel = level
	s.mu.Unlock()

	if level == prev {
		return
	}
	if prev == "" && level == "normal" {
		return
	}

	log.Printf("[watch] safety alert level changed: %q -> %q", prev, level)
	text := fmt.Sprintf("Safety alert level is now %s.", level)
	if resp.AlertMessage != "" {
		text += "\n" + resp.AlertMessage
	}
	if err := s.notifier.Notify(text); err != nil {
		log.Printf("[watch] notification failed: %v", err)
	}
}
