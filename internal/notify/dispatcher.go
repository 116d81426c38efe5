package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"investment-core/pkg/i18n"
)

const deliverTimeout = 10 * time.Second

// Dispatcher queues requests on a bounded channel and delivers them from a
// single background worker.
type Dispatcher struct {
	queue chan Request
	dir   Directory
	sinks []Sink
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// DispatcherStats is a snapshot of dispatcher counters.
type DispatcherStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Queued    int    `json:"queued"`
}

// NewDispatcher starts the worker. size bounds the queue.
func NewDispatcher(dir Directory, log *zap.Logger, size int, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		queue: make(chan Request, size),
		dir:   dir,
		sinks: sinks,
		log:   log.With(zap.String("component", "notifier")),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues req without blocking. A full or closed queue drops it.
func (d *Dispatcher) Notify(req Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- req:
		d.enqueued.Add(1)
	default:
		d.dropped.Add(1)
		d.log.Warn("notification queue full, dropping",
			zap.String("template", string(req.Template)),
			zap.String("user_id", req.Recipient.UserID),
			zap.Bool("admins", req.Recipient.Admins))
	}
}

// Close stops accepting requests and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Stats returns current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Enqueued:  d.enqueued.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Queued:    len(d.queue),
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for req := range d.queue {
		d.dispatch(req)
	}
}

func (d *Dispatcher) dispatch(req Request) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("notification dispatch panic", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	tpl, ok := i18n.GetTemplate(string(req.Template))
	if !ok {
		d.failed.Add(1)
		d.log.Warn("unknown notification template", zap.String("template", string(req.Template)))
		return
	}
	rendered := i18n.Render(tpl, req.Params)

	recipients, err := d.resolve(ctx, req.Recipient)
	if err != nil {
		d.failed.Add(1)
		d.log.Error("resolve recipients failed", zap.String("template", string(req.Template)), zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, userID := range recipients {
		msg := Message{
			UserID:    userID,
			Template:  req.Template,
			Title:     rendered.Title,
			Body:      rendered.Body,
			Params:    req.Params,
			CreatedAt: now,
		}
		if d.dir != nil {
			email, err := d.dir.Email(ctx, userID)
			if err != nil {
				d.log.Debug("recipient email lookup failed", zap.String("user_id", userID), zap.Error(err))
			}
			msg.Email = email
		}
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) resolve(ctx context.Context, r Recipient) ([]string, error) {
	if !r.Admins {
		if r.UserID == "" {
			return nil, nil
		}
		return []string{r.UserID}, nil
	}
	if d.dir == nil {
		return nil, nil
	}
	return d.dir.AdminIDs(ctx)
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			d.failed.Add(1)
			d.log.Warn("notification sink failed",
				zap.String("sink", s.Name()),
				zap.String("user_id", msg.UserID),
				zap.String("template", string(msg.Template)),
				zap.Error(err))
			continue
		}
		d.delivered.Add(1)
	}
}
