// Package sweeper expires stale pending holds. A booking is inserted as
// pending and confirmed out of band; abandoned holds would otherwise occupy
// their slot forever, so a periodic job cancels pending appointments older
// than a configurable TTL.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bookly/internal/store"
)

type Sweeper struct {
	store      store.ScheduleStore
	log        *slog.Logger
	pendingTTL time.Duration
	interval   time.Duration
	cron       *cron.Cron
}

// New builds a sweeper. A non-positive pendingTTL disables it entirely.
func New(st store.ScheduleStore, log *slog.Logger, pendingTTL, interval time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:      st,
		log:        log.With(slog.String("component", "sweeper")),
		pendingTTL: pendingTTL,
		interval:   interval,
	}
}

func (s *Sweeper) Start() {
	if s.pendingTTL <= 0 {
		s.log.Info("pending-hold expiry disabled")
		return
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc("@every "+s.interval.String(), s.sweep)
	if err != nil {
		s.log.Error("sweep schedule failed", slog.Any("err", err))
		return
	}
	s.cron.Start()
	s.log.Info(
		"pending-hold expiry started",
		slog.Duration("ttl", s.pendingTTL),
		slog.Duration("interval", s.interval),
	)
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.pendingTTL)
	expired, err := s.store.ExpireStalePending(ctx, cutoff)
	if err != nil {
		s.log.Error("pending-hold expiry failed", slog.Any("err", err))
		return
	}
	if expired > 0 {
		s.log.Info("expired pending holds", slog.Int64("count", expired))
	}
}
