package delegate

import (
	"context"
	"fmt"
	"sync"

	"github.com/better-wallet/webconnect/internal/logger"
)

// Dispatcher runs completion callbacks on a designated goroutine
type Dispatcher interface {
	Dispatch(fn func())
}

// SerialDispatcher runs callbacks one at a time, in submission order, on a
// single goroutine
type SerialDispatcher struct {
	queue chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSerialDispatcher starts the dispatcher goroutine. size is the queue
// capacity; Dispatch blocks while the queue is full.
func NewSerialDispatcher(size int) *SerialDispatcher {
	if size <= 0 {
		size = 64
	}
	d := &SerialDispatcher{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

// Dispatch queues fn. After Close, fn runs on the caller's goroutine.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.run(fn)
		return
	}
	d.queue <- fn
	d.mu.RUnlock()
}

// Close stops accepting callbacks and waits until the queued ones ran
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		d.run(fn)
	}
}

func (d *SerialDispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), "completion callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
