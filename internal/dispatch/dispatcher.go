package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
	"github.com/krishnarajt/second-thought-backend/internal/store"
)

// errUserUnreachable aborts the remaining events of a user within a
// cycle once the transport reports them permanently gone.
var errUserUnreachable = errors.New("user unreachable")

// Options tune the dispatcher. Zero values fall back to defaults.
type Options struct {
	Cadence         time.Duration // scan interval; the notification-latency upper bound
	ClaimStaleAfter time.Duration // a claim older than this with no outcome is re-claimable
	SendTimeout     time.Duration // hard bound on one transport call
	RetryMax        int           // additional attempts after the first failure
	RetryBase       time.Duration // backoff base, doubled per attempt
	RetryCap        time.Duration // backoff ceiling
	SendsPerSecond  int           // token-bucket rate for outbound sends
}

func (o *Options) fill() {
	if o.Cadence <= 0 {
		o.Cadence = time.Minute
	}
	if o.ClaimStaleAfter <= 0 {
		o.ClaimStaleAfter = 5 * time.Minute
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 2 * time.Second
	}
	if o.RetryCap <= 0 {
		o.RetryCap = 30 * time.Second
	}
	if o.SendsPerSecond <= 0 {
		o.SendsPerSecond = 20
	}
}

// Dispatcher is the scheduling driver: on a fixed cadence it loads
// eligible users, resolves their due events, claims each one, and
// drives delivery with bounded retries. Correctness never depends on a
// single instance running; the durable claim is the concurrency guard.
type Dispatcher struct {
	repo    store.Repo
	log     *zap.Logger
	sender  Sender
	limiter *rate.Limiter
	opts    Options

	cron *cron.Cron
	now  func() time.Time
}

// New creates a Dispatcher. The cron chain skips a trigger while the
// previous cycle is still running, so overrunning cycles coalesce
// instead of overlapping.
func New(repo store.Repo, log *zap.Logger, sender Sender, opts Options) *Dispatcher {
	opts.fill()
	return &Dispatcher{
		repo:    repo,
		log:     log,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(opts.SendsPerSecond), opts.SendsPerSecond),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic scan. It returns immediately; cycles run on
// the cron's goroutine until Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	d.cron.Schedule(cron.Every(d.opts.Cadence), cron.FuncJob(func() {
		d.RunCycle(ctx)
	}))
	d.cron.Start()
	d.log.Info("dispatcher started", zap.Duration("cadence", d.opts.Cadence))
}

// Stop halts the cadence and waits for an in-flight cycle to finish
// naturally; a delivery is never aborted midway.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.log.Info("dispatcher stopped")
}

// RunCycle performs one bounded, restartable scan. Users are
// independent: a storage failure for one aborts only that user's
// remainder, and nothing is falsely marked delivered, so the next cycle
// retries naturally.
func (d *Dispatcher) RunCycle(ctx context.Context) {
	now := d.now()

	users, err := d.repo.ListEligibleUsers(ctx)
	if err != nil {
		d.log.Error("list eligible users failed", zap.Error(err))
		return
	}

	for i := range users {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.processUser(ctx, &users[i], now)
	}
}

func (d *Dispatcher) processUser(ctx context.Context, u *domain.User, now time.Time) {
	if !u.Linked() {
		return
	}

	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		// Settings are validated at save time; a bad zone here is data
		// corruption, not a dispatch concern.
		d.log.Error("unresolvable user timezone",
			zap.Int64("userID", u.ID), zap.String("tz", u.Timezone), zap.Error(err))
		return
	}
	today := now.In(loc).Format(domain.DateLayout)

	blocks, err := d.repo.ListUndeliveredBlocks(ctx, u.ID, today)
	if err != nil {
		d.log.Error("list undelivered blocks failed",
			zap.Int64("userID", u.ID), zap.Error(err))
		return
	}
	if len(blocks) == 0 {
		return
	}

	due, err := domain.DueEvents(blocks, u.Prefs, u.Timezone, now)
	if err != nil {
		d.log.Error("resolve due events failed",
			zap.Int64("userID", u.ID), zap.Error(err))
		return
	}

	for i := range due {
		if err := d.deliver(ctx, u, &due[i], now); errors.Is(err, errUserUnreachable) {
			return
		}
	}
}

// deliver drives one event through claim → send → terminal transition.
func (d *Dispatcher) deliver(ctx context.Context, u *domain.User, e *domain.Event, now time.Time) error {
	err := d.repo.ClaimEvent(ctx, e.Block.ID, e.Kind, now, d.opts.ClaimStaleAfter)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyDelivered), errors.Is(err, store.ErrAlreadyClaimed):
		// Expected contention: another worker or a previous cycle got
		// here first. Skip silently.
		return nil
	default:
		d.log.Error("claim failed",
			zap.String("task", e.Block.ID), zap.Stringer("kind", e.Kind), zap.Error(err))
		return err
	}

	sendErr := d.sendWithRetry(ctx, *u.TelegramChatID, RenderMessage(e.Kind, &e.Block))
	if sendErr == nil {
		if err := d.repo.MarkDelivered(ctx, e.Block.ID, e.Kind); err != nil {
			// The claim stays; the staleness bound resolves it later and
			// the durable flag was never set, so nothing is lost.
			d.log.Error("mark delivered failed",
				zap.String("task", e.Block.ID), zap.Stringer("kind", e.Kind), zap.Error(err))
			return err
		}
		d.log.Info("notification delivered",
			zap.Int64("userID", u.ID),
			zap.String("task", e.Block.ID),
			zap.Stringer("kind", e.Kind),
			zap.Time("fireAt", e.FireAt))
		return nil
	}

	// Terminal failure path: abandon with the flag set so the event is
	// never re-attempted.
	if err := d.repo.MarkAbandoned(ctx, e.Block.ID, e.Kind); err != nil {
		d.log.Error("mark abandoned failed",
			zap.String("task", e.Block.ID), zap.Stringer("kind", e.Kind), zap.Error(err))
		return err
	}

	if IsPermanent(sendErr) {
		// Expected lifecycle event, not a system fault: the user has
		// unlinked or blocked the bot. Stop wasting sends on them.
		if err := d.repo.DisableAllNotifications(ctx, u.ID); err != nil {
			d.log.Error("disable notifications failed",
				zap.Int64("userID", u.ID), zap.Error(err))
		}
		d.log.Info("user unreachable, notifications disabled",
			zap.Int64("userID", u.ID), zap.Error(sendErr))
		return errUserUnreachable
	}

	d.log.Warn("delivery abandoned after retries",
		zap.Int64("userID", u.ID),
		zap.String("task", e.Block.ID),
		zap.Stringer("kind", e.Kind),
		zap.Error(sendErr))
	return nil
}

// sendWithRetry attempts one delivery with bounded exponential backoff.
// Permanent failures short-circuit immediately.
func (d *Dispatcher) sendWithRetry(ctx context.Context, chatID int64, text string) error {
	maxAttempts := 1 + d.opts.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		err := d.sender.Send(callCtx, chatID, text)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if IsPermanent(err) {
			return err
		}
		if attempt >= maxAttempts {
			break
		}

		delay := d.retryDelay(attempt)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}
	return lastErr
}

func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.opts.RetryBase << (attempt - 1)
	if delay > d.opts.RetryCap {
		delay = d.opts.RetryCap
	}
	return delay
}
