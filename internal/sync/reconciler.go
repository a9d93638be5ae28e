// Package sync drives the delivery of queued mutations to the remote API.
// The Reconciler is a supervisory loop with three states:
//
//	Idle ──(online transition, drain timer, new entry)──▶ Draining
//	Draining ──(queue empty)──▶ Idle
//	Draining ──(transient failure, attempts remain)──▶ Backoff ──▶ Draining
//
// Going offline in any state halts work immediately: a claimed entry is
// released back to pending and the loop returns to Idle. The reconciler is
// the only component that moves queue entries between states, so no other
// writer can race it.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/mandimitra/go-sync-core/internal/config"
	"github.com/mandimitra/go-sync-core/internal/domain"
	"github.com/mandimitra/go-sync-core/internal/metrics"
	"github.com/mandimitra/go-sync-core/internal/notify"
	"github.com/mandimitra/go-sync-core/internal/queue"
	"github.com/mandimitra/go-sync-core/internal/remote"
)

// State names the reconciler's position in its supervisory loop.
type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
	StateBackoff  State = "backoff"
)

// Status is a point-in-time snapshot for diagnostics and the CLI. Pending
// counts entries still awaiting delivery; LastError keeps the most recent
// delivery failure even after later successes, so a flaky link stays
// diagnosable.
type Status struct {
	State       State               `json:"state"`
	Online      bool                `json:"online"`
	Quality     domain.QualityClass `json:"quality"`
	Pending     int64               `json:"pending"`
	Failed      int64               `json:"failed"`
	LastDrainAt time.Time           `json:"last_drain_at"`
	LastError   string              `json:"last_error,omitempty"`
}

// Reconciler drains the offline queue whenever the link allows it.
type Reconciler struct {
	queue  *queue.Queue
	remote remote.Client
	notif  *notify.Notifier
	met    *metrics.Metrics
	cfg    config.SyncConfig
	log    zerolog.Logger

	// limiter paces submits so a drain burst does not saturate a weak link.
	limiter *rate.Limiter

	mu          sync.Mutex
	state       State
	online      bool
	quality     domain.QualityClass
	lastDrainAt time.Time
	lastError   string

	kick      chan struct{}
	offlineCh chan struct{}
}

func New(q *queue.Queue, rc remote.Client, notif *notify.Notifier, cfg config.SyncConfig, met *metrics.Metrics, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		queue:     q,
		remote:    rc,
		notif:     notif,
		met:       met,
		cfg:       cfg,
		log:       log.With().Str("component", "sync").Logger(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		state:     StateIdle,
		kick:      make(chan struct{}, 1),
		offlineCh: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled, draining on every trigger that arrives
// while the link is online. Triggers that land mid-drain coalesce into the
// buffered kick channel, so a drain is never run twice concurrently.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TimerInterval)
	defer ticker.Stop()

	r.log.Info().Dur("timer_interval", r.cfg.TimerInterval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		case <-r.kick:
			r.drain(ctx)
		}
	}
}

// Kick requests a drain. Safe to call from any goroutine; a pending request
// is coalesced with the next.
func (r *Reconciler) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// OnConnectivityChange is the network monitor callback. Coming online kicks
// a drain; going offline signals any in-progress drain or backoff to halt.
// The submit pacing is retuned to the new quality class either way.
func (r *Reconciler) OnConnectivityChange(s domain.ConnectivityState) {
	r.mu.Lock()
	wasOnline := r.online
	r.online = s.Online()
	r.quality = s.Quality
	r.mu.Unlock()

	r.limiter.SetLimit(pacingLimit(s.Quality))

	switch {
	case !wasOnline && s.Online():
		r.log.Info().Str("quality", string(s.Quality)).Msg("link online, draining")
		r.Kick()
	case wasOnline && !s.Online():
		r.log.Info().Msg("link offline, halting drain")
		select {
		case r.offlineCh <- struct{}{}:
		default:
		}
	}
}

// Status reports the current loop state, link view, and queue backlog.
func (r *Reconciler) Status(ctx context.Context) Status {
	r.mu.Lock()
	st := Status{
		State:       r.state,
		Online:      r.online,
		Quality:     r.quality,
		LastDrainAt: r.lastDrainAt,
		LastError:   r.lastError,
	}
	r.mu.Unlock()

	if stats, err := r.queue.Stats(ctx); err == nil {
		st.Pending = stats.PerState[domain.StatePending] + stats.PerState[domain.StateInFlight]
		st.Failed = stats.PerState[domain.StateFailed]
	}
	return st
}

func (r *Reconciler) isOnline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// enterDraining moves Idle to Draining. A trigger that fires while a drain
// is already running is a no-op; the running drain will see any new entry.
func (r *Reconciler) enterDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle || !r.online {
		return false
	}
	r.state = StateDraining
	return true
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reconciler) drain(ctx context.Context) {
	if !r.enterDraining() {
		return
	}
	defer func() {
		r.mu.Lock()
		r.state = StateIdle
		r.lastDrainAt = time.Now()
		r.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil || !r.isOnline() {
			return
		}
		e, err := r.queue.PeekNext(ctx)
		if err != nil {
			r.log.Error().Err(err).Msg("peek failed, abandoning drain")
			return
		}
		if e == nil {
			return
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := r.queue.Claim(ctx, e.ID); err != nil {
			if errors.Is(err, queue.ErrBusy) {
				r.log.Warn().Str("id", e.ID).Msg("claim refused, another entry in flight")
				return
			}
			// Entry changed under us (user discard); take the next one.
			continue
		}

		sErr := r.submit(ctx, e)
		if sErr == nil {
			if err := r.queue.MarkSynced(ctx, e.ID); err != nil {
				r.log.Error().Err(err).Str("id", e.ID).Msg("entry delivered but could not be removed")
				return
			}
			continue
		}

		if ctx.Err() != nil {
			// Shutdown mid-attempt: the startup requeue will recover the claim.
			return
		}
		if !r.isOnline() {
			// Offline mid-attempt: outcome unknown, do not count it.
			if err := r.queue.Release(ctx, e.ID); err != nil {
				r.log.Error().Err(err).Str("id", e.ID).Msg("release after offline halt failed")
			}
			return
		}

		r.mu.Lock()
		r.lastError = sErr.Error()
		r.mu.Unlock()

		permanent := errors.Is(sErr, remote.ErrRejected)
		st, mErr := r.queue.MarkFailed(ctx, e.ID, sErr.Error(), permanent)
		if mErr != nil {
			r.log.Error().Err(mErr).Str("id", e.ID).Msg("failure could not be recorded")
			return
		}
		if st == domain.StateFailed {
			// Frozen entry keeps its place for manual retry; tell the user
			// and keep draining, later entries are independent mutations.
			if fe, err := r.queue.Get(ctx, e.ID); err == nil {
				r.notif.SyncFailed(fe)
			} else {
				r.notif.SyncFailed(e)
			}
			continue
		}
		if !r.waitBackoff(ctx, e.Attempts+1) {
			return
		}
	}
}

// submit delivers one entry within the configured timeout. A 4xx rejection
// comes back wrapped in remote.ErrRejected; anything else is transient.
func (r *Reconciler) submit(ctx context.Context, e *domain.QueueEntry) error {
	tr := otel.Tracer("sync/Reconciler")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("entry.id", e.ID),
			attribute.String("entry.operation", string(e.OperationType)),
			attribute.Int("entry.attempts", e.Attempts),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.SubmitTimeout)
	defer cancel()

	start := time.Now()
	err := r.remote.Submit(ctx, e.OperationType, e.IdempotencyKey, e.Payload)
	r.met.SubmitSeconds.Observe(time.Since(start).Seconds())
	return err
}

// waitBackoff sleeps min(base*2^attempts, max) before the next try. It
// returns false when the wait was cut short by shutdown or by the link
// going offline, in which case draining must stop.
func (r *Reconciler) waitBackoff(ctx context.Context, attempts int) bool {
	d := backoffDelay(r.cfg.BaseDelay, r.cfg.MaxDelay, attempts)
	r.met.BackoffSeconds.Observe(d.Seconds())
	r.setState(StateBackoff)
	defer r.setState(StateDraining)

	r.log.Debug().Dur("delay", d).Int("attempts", attempts).Msg("backing off")
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.offlineCh:
			// A stale signal can linger from an earlier transition; only a
			// genuinely offline link halts the wait.
			if !r.isOnline() {
				return false
			}
		case <-t.C:
			return true
		}
	}
}

// backoffDelay doubles from base per recorded attempt and never exceeds max.
func backoffDelay(base, max time.Duration, attempts int) time.Duration {
	if attempts > 30 {
		return max
	}
	d := base << uint(attempts)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// pacingLimit maps link quality to a submit rate. A strong link drains at
// full speed; weak links are paced so sync traffic leaves room for the
// user's own requests.
func pacingLimit(q domain.QualityClass) rate.Limit {
	switch q {
	case domain.QualityModerate:
		return rate.Every(200 * time.Millisecond)
	case domain.QualitySlow:
		return rate.Every(time.Second)
	case domain.QualityVerySlow:
		return rate.Every(5 * time.Second)
	default:
		return rate.Inf
	}
}
