package outboxsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/mwalimu/core"
)

const maxBackoff = time.Hour

var nowFunc = time.Now // mockable

// Handler delivers one kind of event. A returned error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, evt core.Event) error
}

type HandlerFunc func(ctx context.Context, evt core.Event) error

func (f HandlerFunc) Handle(ctx context.Context, evt core.Event) error { return f(ctx, evt) }

// Relay delivers the pending outbox events to their handlers, on a cron schedule.
type Relay struct {
	repo     core.EventRepository
	conf     core.OutboxConfig
	logger   core.Logger
	handlers map[string]Handler

	mu      sync.Mutex // one batch at a time
	cron    *cron.Cron
	cancel  context.CancelFunc
	results *prometheus.CounterVec
}

// NewRelay returns a Relay; its metrics are registered on reg when not nil.
func NewRelay(conf *core.Config, repo core.EventRepository, logger core.Logger, reg prometheus.Registerer) *Relay {
	r := &Relay{
		repo:     repo,
		conf:     conf.Outbox,
		logger:   logger,
		handlers: make(map[string]Handler),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwalimu",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Number of outbox delivery attempts, by event kind and result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(r.results)
	}
	return r
}

// Register sets the handler of an event kind.
func (r *Relay) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Start runs RunOnce on the configured schedule until Stop is called.
func (r *Relay) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(r.conf.Schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("relaying outbox events", err)
		}
	})
	if err != nil {
		cancel()
		return errors.Wrapf(err, "scheduling outbox relay %q", r.conf.Schedule)
	}
	r.cron, r.cancel = c, cancel
	c.Start()
	return nil
}

// Stop stops the schedule and waits for a running batch to finish, or for ctx to be done.
func (r *Relay) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	r.cancel()
}

// RunOnce delivers one batch of due events and returns the number delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.repo.QueryDueEvents(ctx, nowFunc().UTC(), r.conf.BatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "querying due events")
	}

	var delivered int
	for _, evt := range events {
		if ctx.Err() != nil {
			break
		}
		if r.deliver(ctx, &evt) {
			delivered++
		}
		if err := r.repo.UpdateEvent(ctx, evt); err != nil {
			r.logger.Error("saving event delivery state", err, map[string]interface{}{"eventId": evt.ID, "kind": evt.Kind})
		}
	}
	return delivered, nil
}

// deliver runs the handler of evt and records the outcome on it.
func (r *Relay) deliver(ctx context.Context, evt *core.Event) bool {
	evt.Attempts++
	now := nowFunc().UTC()

	h, ok := r.handlers[evt.Kind]
	if !ok {
		evt.Status = core.EventDead
		evt.LastError = "no handler for event kind " + evt.Kind
		r.results.WithLabelValues(evt.Kind, "dead").Inc()
		r.logger.Warn(evt.LastError, map[string]interface{}{"eventId": evt.ID})
		return false
	}

	if err := h.Handle(ctx, *evt); err != nil {
		evt.LastError = err.Error()
		if evt.Attempts >= r.conf.MaxAttempts {
			evt.Status = core.EventDead
			r.results.WithLabelValues(evt.Kind, "dead").Inc()
			r.logger.Error("giving up on outbox event", err, map[string]interface{}{"eventId": evt.ID, "kind": evt.Kind, "attempts": evt.Attempts})
		} else {
			evt.NextAttemptAt = now.Add(r.backoff(evt.Attempts))
			r.results.WithLabelValues(evt.Kind, "retry").Inc()
		}
		return false
	}

	evt.Status = core.EventDelivered
	evt.LastError = ""
	evt.DeliveredAt = now
	r.results.WithLabelValues(evt.Kind, "delivered").Inc()
	return true
}

// backoff doubles the base delay after each failed attempt.
func (r *Relay) backoff(attempts int) time.Duration {
	d := r.conf.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
