package ingest

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultLanes is the number of concurrent per-user lanes.
const DefaultLanes = 16

// Handler consumes events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Enqueuer accepts events without blocking.
type Enqueuer interface {
	Enqueue(ev Event)
}

// Processor routes events to lanes by user id. Each lane is an unbounded FIFO drained
// by one goroutine, so one user's events are handled in arrival order.
type Processor struct {
	handler Handler
	lanes   []*lane
	wg      sync.WaitGroup
}

type lane struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
}

// NewProcessor constructs a Processor with n lanes (DefaultLanes when n <= 0).
func NewProcessor(handler Handler, n int) *Processor {
	if n <= 0 {
		n = DefaultLanes
	}
	p := &Processor{handler: handler, lanes: make([]*lane, n)}
	for i := range p.lanes {
		p.lanes[i] = &lane{signal: make(chan struct{}, 1)}
	}
	return p
}

// Enqueue appends ev to its user's lane. It never blocks.
func (p *Processor) Enqueue(ev Event) {
	l := p.lanes[p.laneIndex(ev.UserID)]
	l.mu.Lock()
	l.queue = append(l.queue, ev)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (p *Processor) laneIndex(userID int64) int {
	return int(uint64(userID) % uint64(len(p.lanes)))
}

// Run drains every lane until ctx is cancelled, then waits for in-flight handlers.
func (p *Processor) Run(ctx context.Context) error {
	for i, l := range p.lanes {
		p.wg.Add(1)
		go p.drain(ctx, i, l)
	}
	<-ctx.Done()
	p.wg.Wait()
	return nil
}

func (p *Processor) drain(ctx context.Context, index int, l *lane) {
	defer p.wg.Done()
	for {
		ev, ok := l.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.signal:
				continue
			}
		}
		if ctx.Err() != nil {
			log.WithField("lane", index).Warnf("ingest: dropping %d queued events on shutdown", l.len()+1)
			return
		}
		p.handle(ctx, ev)
	}
}

func (p *Processor) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"update_id": ev.UpdateID,
				"user_id":   ev.UserID,
			}).Errorf("ingest: handler panic: %v", r)
		}
	}()
	if errHandle := p.handler.HandleEvent(ctx, ev); errHandle != nil {
		log.WithError(errHandle).WithFields(log.Fields{
			"update_id": ev.UpdateID,
			"user_id":   ev.UserID,
			"kind":      ev.Kind,
		}).Warn("ingest: handle event failed")
	}
}

func (l *lane) pop() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return Event{}, false
	}
	ev := l.queue[0]
	l.queue[0] = Event{}
	l.queue = l.queue[1:]
	return ev, true
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
