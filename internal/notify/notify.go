// Package notify runs the daily Tunes @ Noon reminder. A cron job looks up
// today's spreadsheet occurrence shortly before noon and pushes a reminder
// through the configured notifier.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/church-studio/venue-api/internal/core/config"
	"github.com/church-studio/venue-api/internal/core/timeutil"
	"github.com/church-studio/venue-api/internal/occurrence"
	"github.com/church-studio/venue-api/internal/tunes"
)

// Notifier delivers a reminder message. Failures are logged and swallowed
// by the scheduler; a missed reminder never affects the API.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier writes reminders to the structured log. It is the default
// sink until an outbound channel (email, chat webhook) is wired up.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, subject, body string) error {
	slog.Info("notification", "subject", subject, "body", body)
	return nil
}

// Scheduler owns the cron runner for the daily reminder.
type Scheduler struct {
	cron     *cron.Cron
	sheet    *tunes.SheetSource
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewScheduler builds the reminder scheduler from config. The cron
// expression is evaluated in the configured timezone so the job tracks the
// venue's wall clock across DST shifts.
func NewScheduler(cfg config.NotifyConfig, sheet *tunes.SheetSource, notifier Notifier) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load notify timezone: %w", err)
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		sheet:    sheet,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid notify schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("daily reminder scheduler started", "timezone", s.loc.String())
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	occ, ok := s.todaysShow(ctx)
	if !ok {
		slog.Info("no show today, skipping reminder")
		return
	}

	artist := tunes.Artist(occ)
	subject := fmt.Sprintf("%s today: %s", tunes.EventTitle, artist)
	body := fmt.Sprintf("%s plays %s at %s today at noon.", artist, tunes.EventTitle, tunes.VenueName)

	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		slog.Error("reminder delivery failed", "error", err, "artist", artist)
		return
	}
	slog.Info("reminder sent", "artist", artist)
}

// todaysShow returns the earliest spreadsheet occurrence falling on today's
// date in the scheduler's timezone.
func (s *Scheduler) todaysShow(ctx context.Context) (occurrence.Occurrence, bool) {
	now := s.now()

	var best occurrence.Occurrence
	var bestStart time.Time
	found := false

	for _, occ := range s.sheet.Occurrences(ctx) {
		start, ok := occ.StartTime()
		if !ok || !timeutil.SameDayInTZ(start, now, s.loc) {
			continue
		}
		if !found || start.Before(bestStart) {
			best, bestStart, found = occ, start, true
		}
	}
	return best, found
}
