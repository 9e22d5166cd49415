package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bosstimer/internal/eventbus"
	rtsup "bosstimer/internal/runtime/supervisor"
	"bosstimer/internal/telemetry"
	kit "bosstimer/internal/transport"
	logx "bosstimer/pkg/logx"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const historyCap = 300

type job struct {
	n  kit.Notification
	at time.Time
}

// Service implements an async notification pipeline:
// queue + worker pool + rate limit.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	dir     kit.Directory
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, dir kit.Directory, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		dir:     dir,
		log:     log,
		bus:     bus,
	}
	s.applyLocked(cfg)
	return s
}

// Supervisor returns the notifier's internal supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply updates pacing and timeouts. Worker count and queue size take effect
// on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// delivery is best-effort; a broken worker must not take the app down.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			s.workerLoop(c, q)
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("notifier worker exited unexpectedly")
		}, rtsup.WithPublishFirstError(true))
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// Wait for in-flight enqueues, then close the queue so workers drain it.
		s.sendWG.Wait()
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

// Notify enqueues n and returns without waiting for delivery.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- job{n: n, at: time.Now()}:
		telemetry.SetNotifyBacklog(len(q))
		return nil
	default:
		telemetry.IncNotify("dropped")
		s.publish(eventbus.TypeNotifyDropped, n, 0, ErrQueueFull)
		return ErrQueueFull
	}
}

// Snapshot returns recent delivery outcomes, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

// Backlog reports the number of queued notifications.
func (s *Service) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return len(s.queue)
}

func (s *Service) appendHistory(n kit.Notification, ok bool) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Destination: n.Destination, Kind: n.Kind, OK: ok})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			telemetry.SetNotifyBacklog(len(q))
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	dir := s.dir
	s.mu.Unlock()

	n := j.n
	log := s.log.With(logx.String("dest", n.Destination), logx.String("kind", n.Kind))
	if ad == nil || n.Text == "" {
		return
	}

	var to kit.ChatTarget
	found := false
	if dir != nil {
		to, found = dir.Resolve(n.Destination)
	}
	if !found {
		log.Warn("destination not found")
		telemetry.IncNotify("unknown_destination")
		s.appendHistory(n, false)
		s.publish(eventbus.TypeNotifyFailed, n, 0, kit.ErrUnknownDestination)
		return
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	_, err := ad.SendText(callCtx, to, n.Text, n.Options)
	cancel()
	if err != nil {
		log.Warn("notify send failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
		telemetry.IncNotify("failed")
		s.appendHistory(n, false)
		s.publish(eventbus.TypeNotifyFailed, n, to.ChatID, err)
		return
	}
	log.Debug("notify sent", logx.Int64("chat_id", to.ChatID), logx.Duration("queued", time.Since(j.at)))
	telemetry.IncNotify("sent")
	s.appendHistory(n, true)
	s.publish(eventbus.TypeNotifySent, n, to.ChatID, nil)
}

func (s *Service) publish(typ string, n kit.Notification, chatID int64, err error) {
	if s.bus == nil {
		return
	}
	ev := NotificationEvent{Destination: n.Destination, Kind: n.Kind, ChatID: chatID, At: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}
