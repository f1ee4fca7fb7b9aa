package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"
	"sync"
	"sync/atomic"
	"time"
)

// MarkSeenPolicy decides when a fetched message gets the \Seen flag.
type MarkSeenPolicy string

const (
	// MarkSeenAlways flags every dispatched message, so a reply whose ingestion
	// failed is never fetched again.
	MarkSeenAlways MarkSeenPolicy = "always"
	// MarkSeenOnSuccess leaves failed messages unread so the next scan retries them.
	MarkSeenOnSuccess MarkSeenPolicy = "on_success"
)

func (p MarkSeenPolicy) Valid() bool {
	return p == MarkSeenAlways || p == MarkSeenOnSuccess
}

type PollerConfig struct {
	Interval       time.Duration
	ConnectTimeout time.Duration
	LookBack       time.Duration
	MarkSeen       MarkSeenPolicy
	LeaseTTL       time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:       30 * time.Second,
		ConnectTimeout: 15 * time.Second,
		LookBack:       24 * time.Hour,
		MarkSeen:       MarkSeenAlways,
		LeaseTTL:       2 * time.Minute,
	}
}

// MessageHandler consumes one fetched message. It must not return until the
// message has been fully processed.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg entity.InboundMessage) Outcome
}

type ScanReport struct {
	Found      int `json:"found"`
	Accepted   int `json:"accepted"`
	Discarded  int `json:"discarded"`
	Failed     int `json:"failed"`
	MarkedSeen int `json:"markedSeen"`
}

// Poller scans the shared inbox on a fixed interval. At most one scan runs at a time.
type Poller struct {
	mailbox repository.Mailbox
	handler MessageHandler
	lease   repository.ScanLease
	cfg     PollerConfig
	now     func() time.Time

	scanning atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type PollerOption func(*Poller)

// WithScanLease makes replicas take turns on the same inbox.
func WithScanLease(l repository.ScanLease) PollerOption {
	return func(p *Poller) { p.lease = l }
}

func withClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

func NewPoller(mailbox repository.Mailbox, handler MessageHandler, cfg PollerConfig, opts ...PollerOption) *Poller {
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.LookBack <= 0 {
		cfg.LookBack = def.LookBack
	}
	if !cfg.MarkSeen.Valid() {
		cfg.MarkSeen = def.MarkSeen
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}

	p := &Poller{mailbox: mailbox, handler: handler, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the schedule: one scan now, then one per interval. Calling it on a
// running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		log.Println("[POLLER] already running")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})

	log.Printf("[POLLER] started, interval=%s lookback=%s mark_seen=%s", p.cfg.Interval, p.cfg.LookBack, p.cfg.MarkSeen)
	go p.loop(loopCtx, p.done)
}

// Stop halts the schedule and waits for an in-flight scan to finish, or for ctx to end.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	done := p.done
	p.running = false
	p.mu.Unlock()

	select {
	case <-done:
		log.Println("[POLLER] stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Scans outlive Stop so a message is never left between dispatch and mark.
	scanCtx := context.WithoutCancel(ctx)

	p.tick(scanCtx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(scanCtx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	report, err := p.Scan(ctx)
	switch {
	case errors.Is(err, entity.ErrScanInProgress):
		log.Println("[POLLER] previous scan still running, skipping tick")
	case errors.Is(err, entity.ErrScanLeaseLost):
		log.Printf("[POLLER] scan stopped early: found=%d accepted=%d discarded=%d failed=%d", report.Found, report.Accepted, report.Discarded, report.Failed)
	case err != nil:
		log.Printf("[POLLER] scan aborted, retrying next tick: %v", err)
	case report.Found > 0:
		log.Printf("[POLLER] scan done: found=%d accepted=%d discarded=%d failed=%d", report.Found, report.Accepted, report.Discarded, report.Failed)
	}
}

// Scan runs one polling cycle. It fails with entity.ErrScanInProgress when another
// scan holds the inbox, and with entity.ErrTransport on any mailbox error.
func (p *Poller) Scan(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	if !p.scanning.CompareAndSwap(false, true) {
		return report, entity.ErrScanInProgress
	}
	defer p.scanning.Store(false)

	var lease repository.Lease
	if p.lease != nil {
		l, ok, err := p.lease.Acquire(ctx, p.cfg.LeaseTTL)
		switch {
		case err != nil:
			log.Printf("[POLLER] scan lease unavailable, scanning without it: %v", err)
		case !ok:
			return report, entity.ErrScanInProgress
		default:
			lease = l
			defer lease.Release()
		}
	}

	session, err := p.mailbox.Connect(ctx, p.cfg.ConnectTimeout)
	if err != nil {
		return report, transportErr("connect", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("[POLLER] close connection: %v", err)
		}
	}()

	if err := session.SelectInbox(ctx); err != nil {
		return report, transportErr("select inbox", err)
	}

	since := p.now().Add(-p.cfg.LookBack)
	uids, err := session.SearchUnseenSince(ctx, since)
	if err != nil {
		return report, transportErr("search", err)
	}
	if len(uids) == 0 {
		return report, nil
	}

	messages, err := session.Fetch(ctx, uids)
	if err != nil {
		return report, transportErr("fetch", err)
	}
	report.Found = len(messages)
	log.Printf("[POLLER] %d unseen message(s) since %s", len(messages), since.Format(time.RFC3339))

	for _, msg := range messages {
		// Each message may take a full generation timeout, so the lease is renewed
		// per message. Once it is lost, the rest stays unread for the new holder.
		if lease != nil {
			err := lease.Extend(ctx, p.cfg.LeaseTTL)
			if errors.Is(err, entity.ErrScanLeaseLost) {
				log.Printf("[POLLER] scan lease lost, leaving %d message(s) for the next scan", report.Found-report.Accepted-report.Discarded-report.Failed)
				return report, err
			}
			if err != nil {
				log.Printf("[POLLER] extend scan lease: %v", err)
			}
		}

		outcome := p.handler.HandleMessage(ctx, msg)
		switch outcome.Status {
		case OutcomeAccepted:
			report.Accepted++
		case OutcomeDiscarded:
			report.Discarded++
		default:
			report.Failed++
		}

		if p.cfg.MarkSeen == MarkSeenOnSuccess && outcome.Status == OutcomeFailed {
			continue
		}
		if err := session.MarkSeen(ctx, msg.UID); err != nil {
			return report, transportErr(fmt.Sprintf("mark uid %d seen", msg.UID), err)
		}
		report.MarkedSeen++
	}

	return report, nil
}

func transportErr(stage string, err error) error {
	if errors.Is(err, entity.ErrTransport) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrTransport, stage, err)
}
