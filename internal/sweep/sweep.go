// Package sweep provides the daily re-engagement job for symptomsbot.
//
// On a cron schedule it scans the profile store for users whose last
// survey is older than 24 hours and re-invites each one. Consent is
// deliberately not consulted before inviting; changing that is a product
// decision, not an implementation detail.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/demosglok/symptomsbot/internal/store"
)

// Constants for sweep configuration
const (
	// DefaultCronSpec runs the sweep every day at 09:00.
	DefaultCronSpec = "0 9 * * *"
	// ReinviteAge is how stale a profile's last survey must be before the
	// user is re-invited.
	ReinviteAge = 24 * time.Hour
	// DefaultRunTimeout bounds one full sweep pass.
	DefaultRunTimeout = 2 * time.Minute
)

// Inviter sends the start-survey prompt to one user. The conversation
// dispatcher satisfies this.
type Inviter interface {
	SendStartPrompt(ctx context.Context, userID string, keepPrevious bool)
}

// Sweep periodically re-invites users whose last survey has gone stale.
type Sweep struct {
	store   store.Store
	inviter Inviter
	cron    *cron.Cron
	spec    string
	now     func() time.Time
}

// NewSweep creates a Sweep over the given store and inviter. An empty spec
// uses the default daily schedule.
func NewSweep(st store.Store, inviter Inviter, spec string) *Sweep {
	if spec == "" {
		spec = DefaultCronSpec
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Sweep{
		store:   st,
		inviter: inviter,
		cron:    c,
		spec:    spec,
		now:     time.Now,
	}
}

// SetClock overrides the sweep clock (for tests).
func (s *Sweep) SetClock(now func() time.Time) {
	s.now = now
}

// Start schedules the sweep and starts the cron runner.
func (s *Sweep) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRunTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		slog.Error("Sweep failed to schedule job", "error", err, "spec", s.spec)
		return err
	}
	s.cron.Start()
	slog.Info("Sweep scheduled", "spec", s.spec)
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish.
func (s *Sweep) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Sweep stopped")
}

// RunOnce performs a single sweep pass: every profile whose last survey is
// older than ReinviteAge gets the start-survey prompt with the
// keep-previous variant. A failed store read abandons the pass.
func (s *Sweep) RunOnce(ctx context.Context) {
	cutoff := s.now().Add(-ReinviteAge).Unix()
	profiles, err := s.store.ListProfilesDueBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Sweep pass abandoned, profile scan failed", "error", err)
		return
	}

	slog.Info("Sweep pass starting", "due", len(profiles), "cutoff", cutoff)
	for _, p := range profiles {
		s.inviter.SendStartPrompt(ctx, p.UserID, true)
	}
	slog.Info("Sweep pass finished", "invited", len(profiles))
}
