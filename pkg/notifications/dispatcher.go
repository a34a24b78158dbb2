package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
	"github.com/dmitrymomot/hrnotify/pkg/requestid"
)

// Locker is a cross-process mutex. pkg/redis.Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

const tickLockKey = "dispatcher:tick"

// TickResult summarizes one dispatcher tick.
type TickResult struct {
	Skipped   bool `json:"skipped"`   // another tick was running
	Requeued  int  `json:"requeued"`  // stale reservations released
	Selected  int  `json:"selected"`  // due items listed
	Conflicts int  `json:"conflicts"` // items another dispatcher reserved first
	Sent      int  `json:"sent"`
	Retried   int  `json:"retried"`
	Failed    int  `json:"failed"`
	Errors    int  `json:"errors"` // store errors while reserving or finishing
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeConflict
	outcomeSent
	outcomeRetried
	outcomeFailed
	outcomeError
)

// Dispatcher claims due queue items and delivers them through the channel
// senders. Ticks never overlap inside one process; across processes the
// conditional reservation keeps an item from being sent twice.
type Dispatcher struct {
	store   QueueStore
	senders map[Channel]Sender
	opts    dispatcherOptions

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Items on a channel without a sender
// fail with ErrNoSender.
func NewDispatcher(store QueueStore, senders []Sender, opts ...DispatcherOption) *Dispatcher {
	options := dispatcherOptions{
		interval:    5 * time.Minute,
		batchSize:   50,
		concurrency: 1,
		sendTimeout: 30 * time.Second,
		backoff:     FixedBackoff{},
		lockKey:     tickLockKey,
		lockTTL:     10 * time.Minute,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	byChannel := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		if s != nil {
			byChannel[s.Channel()] = s
		}
	}

	return &Dispatcher{
		store:   store,
		senders: byChannel,
		opts:    options,
	}
}

// Tick processes up to batchSize due items. If a tick is already running in
// this process, or the distributed lock is held elsewhere, it returns
// immediately with Skipped set. Item failures are counted, never returned.
func (d *Dispatcher) Tick(ctx context.Context, batchSize int) (TickResult, error) {
	ctx, _ = requestid.Ensure(ctx)
	if !d.running.CompareAndSwap(false, true) {
		d.opts.logger.LogAttrs(ctx, slog.LevelDebug, "dispatcher tick already running, skipping",
			logger.Component("dispatcher"),
		)
		return TickResult{Skipped: true}, nil
	}
	defer d.running.Store(false)

	if batchSize <= 0 {
		batchSize = d.opts.batchSize
	}

	if d.opts.locker != nil {
		release, acquired, err := d.opts.locker.TryLock(ctx, d.opts.lockKey, d.opts.lockTTL)
		if err != nil {
			return TickResult{}, fmt.Errorf("acquire tick lock: %w", err)
		}
		if !acquired {
			d.opts.logger.LogAttrs(ctx, slog.LevelDebug, "dispatcher tick locked by another instance, skipping",
				logger.Component("dispatcher"),
			)
			return TickResult{Skipped: true}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				d.opts.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release tick lock",
					logger.Component("dispatcher"),
					logger.Error(err),
				)
			}
		}()
	}

	var res TickResult
	now := d.opts.now()

	if d.opts.staleAfter > 0 {
		n, err := d.store.RequeueStale(ctx, now.Add(-d.opts.staleAfter), now)
		if err != nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to release stale reservations",
				logger.Component("dispatcher"),
				logger.Error(err),
			)
		} else if n > 0 {
			res.Requeued = n
			d.opts.logger.LogAttrs(ctx, slog.LevelWarn, "released stale reservations",
				logger.Component("dispatcher"),
				logger.Count("count", n),
			)
		}
	}

	items, err := d.store.ListDue(ctx, now, batchSize)
	if err != nil {
		return res, fmt.Errorf("list due items: %w", err)
	}
	res.Selected = len(items)
	if len(items) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.opts.concurrency)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := d.process(ctx, item.ID)

			mu.Lock()
			defer mu.Unlock()
			switch o {
			case outcomeConflict:
				res.Conflicts++
			case outcomeSent:
				res.Sent++
			case outcomeRetried:
				res.Retried++
			case outcomeFailed:
				res.Failed++
			case outcomeError:
				res.Errors++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.opts.logger.LogAttrs(ctx, slog.LevelInfo, "dispatcher tick finished",
		logger.Component("dispatcher"),
		logger.Count("selected", res.Selected),
		logger.Count("sent", res.Sent),
		logger.Count("retried", res.Retried),
		logger.Count("failed", res.Failed),
		logger.Count("conflicts", res.Conflicts),
		logger.Duration(d.opts.now().Sub(now)),
	)

	return res, nil
}

// process reserves one item, sends it and records the outcome. Once the item
// is reserved the outcome is written with a context detached from ctx so a
// shutdown does not leave it in processing.
func (d *Dispatcher) process(ctx context.Context, id uuid.UUID) outcome {
	if ctx.Err() != nil {
		return outcomeNone
	}

	item, ok, err := d.store.Reserve(ctx, id, d.opts.now())
	if err != nil {
		d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to reserve queue item",
			logger.QueueItemID(id.String()),
			logger.Error(err),
		)
		return outcomeError
	}
	if !ok {
		return outcomeConflict
	}

	ctx = context.WithoutCancel(ctx)
	attrs := []slog.Attr{
		logger.QueueItemID(item.ID.String()),
		logger.UserID(item.UserID),
		logger.Channel(string(item.Channel)),
		logger.NotificationType(item.NotificationType),
		logger.Attempt(item.Attempts, item.MaxAttempts),
	}

	sendErr := d.send(ctx, item)
	now := d.opts.now()

	switch {
	case sendErr == nil:
		if err := d.store.MarkSent(ctx, item.ID, now, ""); err != nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to mark item sent", append(attrs, logger.Error(err))...)
			return outcomeError
		}
		d.opts.logger.LogAttrs(ctx, slog.LevelDebug, "notification delivered", attrs...)
		return outcomeSent

	case errors.Is(sendErr, ErrNothingToDeliver):
		if err := d.store.MarkSent(ctx, item.ID, now, sendErr.Error()); err != nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to mark item sent", append(attrs, logger.Error(err))...)
			return outcomeError
		}
		d.opts.logger.LogAttrs(ctx, slog.LevelWarn, "notification had no delivery target", attrs...)
		return outcomeSent

	case item.Exhausted():
		if err := d.store.MarkFailed(ctx, item.ID, sendErr.Error(), now); err != nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to mark item failed", append(attrs, logger.Error(err))...)
			return outcomeError
		}
		d.opts.logger.LogAttrs(ctx, slog.LevelError, "notification delivery failed",
			append(attrs, logger.Error(errors.Join(ErrDeliveryFailed, sendErr)))...)
		return outcomeFailed

	default:
		next := now.Add(d.opts.backoff.NextInterval(item.Attempts))
		if err := d.store.Retry(ctx, item.ID, sendErr.Error(), next); err != nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "failed to requeue item", append(attrs, logger.Error(err))...)
			return outcomeError
		}
		d.opts.logger.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed, will retry",
			append(attrs, logger.Error(sendErr), slog.Time("next_attempt_at", next))...)
		return outcomeRetried
	}
}

// send runs the channel sender with a timeout. The sender runs in its own
// goroutine so one that ignores its context still cannot stall the tick.
func (d *Dispatcher) send(ctx context.Context, item QueueItem) error {
	sender, ok := d.senders[item.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, item.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in %s sender: %v", item.Channel, r)
			}
		}()
		done <- sender.Send(ctx, item)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send timed out after %s: %w", d.opts.sendTimeout, ctx.Err())
	}
}

// Start runs a tick immediately and then on every interval until Stop is
// called or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return ErrDispatcherRunning
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.loop(ctx)

	d.opts.logger.LogAttrs(ctx, slog.LevelInfo, "dispatcher started",
		logger.Component("dispatcher"),
		slog.Duration("interval", d.opts.interval),
		slog.Int("batch_size", d.opts.batchSize),
		slog.Int("concurrency", d.opts.concurrency),
	)
	return nil
}

// Stop cancels the loop and waits for in-flight ticks to finish.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	d.opts.logger.LogAttrs(context.Background(), slog.LevelInfo, "dispatcher stopped",
		logger.Component("dispatcher"),
	)
	return nil
}

// Run starts the dispatcher and returns a function suitable for errgroup.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		if err := d.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return d.Stop()
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.interval)
	defer ticker.Stop()

	d.spawnTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.spawnTick(ctx)
		}
	}
}

// spawnTick runs a tick in the background so a slow tick does not delay the
// ticker. Overlapping ticks are skipped by Tick itself.
func (d *Dispatcher) spawnTick(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.Tick(ctx, d.opts.batchSize); err != nil && ctx.Err() == nil {
			d.opts.logger.LogAttrs(ctx, slog.LevelError, "dispatcher tick failed",
				logger.Component("dispatcher"),
				logger.Error(err),
			)
		}
	}()
}
