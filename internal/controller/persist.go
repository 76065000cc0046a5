package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type persistJob struct {
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// persister runs writes one at a time in submission order. submit never
// blocks, so the loop can hand off writes while it keeps serving events.
type persister struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	queue  []persistJob
	closed bool
	wake   chan struct{}
	exited chan struct{}
}

func newPersister(log *zap.SugaredLogger) *persister {
	p := &persister{
		log:    log,
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	go p.run()
	return p
}

// submit queues fn. The returned channel yields its result once.
func (p *persister) submit(name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		done <- ErrClosed
		return done
	}
	p.queue = append(p.queue, persistJob{name: name, fn: fn, done: done})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return done
}

func (p *persister) run() {
	defer close(p.exited)

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}
			<-p.wake
			continue
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		err := job.fn(context.Background())
		if err != nil {
			p.log.Warnw("persist failed", "job", job.name, "error", err)
		}
		job.done <- err
	}
}

// close lets queued writes finish and waits for them.
func (p *persister) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.exited
}
