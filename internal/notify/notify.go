// Package notify pushes appointment status changes to the users who own
// them. Events arrive over the live channel; delivery is rate limited so a
// burst of backend updates cannot trip messenger flood control.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pitstop/internal/live"
	"pitstop/internal/metrics"
	"pitstop/internal/session"
	"pitstop/internal/shopapi"
)

// Messenger delivers one message to a chat. The bot implements it.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// UserResolver maps a shop customer to the Telegram user who linked it.
type UserResolver interface {
	UserByCustomer(ctx context.Context, customerID int64) (int64, error)
}

// Config tunes outbound delivery.
type Config struct {
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	QueueSize     int
}

// DefaultConfig returns delivery defaults.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 20,
		Burst:         30,
		MaxRetries:    2,
		QueueSize:     256,
	}
}

// Worker consumes status events and delivers notifications.
type Worker struct {
	sub       live.Subscriber
	users     UserResolver
	messenger Messenger
	limiter   *rate.Limiter
	retries   int
	queue     chan live.Event
	logger    zerolog.Logger
}

// NewWorker wires a worker; call Run to start it.
func NewWorker(sub live.Subscriber, users UserResolver, messenger Messenger, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Worker{
		sub:       sub,
		users:     users,
		messenger: messenger,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		retries:   cfg.MaxRetries,
		queue:     make(chan live.Event, cfg.QueueSize),
		logger:    logger,
	}
}

// Run subscribes and delivers until ctx is cancelled. Events that arrive
// while the queue is full are dropped; the backend remains the source of
// truth, so a dropped advisory message loses nothing durable.
func (w *Worker) Run(ctx context.Context) {
	unsubscribe := w.sub.Subscribe(live.TopicAppointmentStatus, func(ev live.Event) {
		select {
		case w.queue <- ev:
		default:
			w.logger.Warn().Int64("appointment_id", ev.AppointmentID).Msg("notification queue full, dropping event")
			metrics.IncNotification("dropped")
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.queue:
			w.deliver(ctx, ev)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, ev live.Event) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	chatID, err := w.users.UserByCustomer(ctx, ev.CustomerID)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			w.logger.Error().Err(err).Int64("customer_id", ev.CustomerID).Msg("resolve notification target")
		}
		metrics.IncNotification("unresolved")
		return
	}

	text := FormatStatusChange(ev)
	var lastErr error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return
			}
		}
		if lastErr = w.messenger.SendText(ctx, chatID, text); lastErr == nil {
			metrics.IncNotification("sent")
			return
		}
	}
	w.logger.Error().Err(lastErr).Int64("chat_id", chatID).Msg("notification delivery failed")
	metrics.IncNotification("failed")
}

// FormatStatusChange renders the user-facing message for a status event.
func FormatStatusChange(ev live.Event) string {
	var verb string
	switch ev.Status {
	case shopapi.StatusConfirmed:
		verb = "was confirmed ✅"
	case shopapi.StatusInProgress:
		verb = "is now in progress 🔧"
	case shopapi.StatusCompleted:
		verb = "is completed 🏁"
	case shopapi.StatusCancelled:
		verb = "was cancelled ❌"
	default:
		verb = fmt.Sprintf("changed status to %s", ev.Status)
	}
	if ev.Date != "" {
		return fmt.Sprintf("Your appointment #%d on %s %s.", ev.AppointmentID, ev.Date, verb)
	}
	return fmt.Sprintf("Your appointment #%d %s.", ev.AppointmentID, verb)
}
