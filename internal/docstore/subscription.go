package docstore

import (
	"context"
	"errors"
	"sync"
)

// Subscription is a live view of a collection. Updates delivers whole
// snapshots; a slow reader only ever sees the latest one.
type Subscription struct {
	updates chan []Document
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// NewSubscription creates a subscription bound to parent. Backends run their
// producer loop with the returned context and call Publish and Finish.
func NewSubscription(parent context.Context) (*Subscription, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		updates: make(chan []Document, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}, ctx
}

// Updates returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) Updates() <-chan []Document {
	return s.updates
}

// Publish hands a snapshot to the reader, replacing any unread one.
// Only the producer goroutine may call it.
func (s *Subscription) Publish(docs []Document) {
	select {
	case s.updates <- docs:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- docs
}

// Finish records the terminal error, releases the producer context and
// closes Updates. Only the producer may call it, once.
func (s *Subscription) Finish(err error) {
	s.cancel()
	s.mu.Lock()
	if !errors.Is(err, context.Canceled) {
		s.err = err
	}
	s.mu.Unlock()
	close(s.updates)
	close(s.done)
}

// Stop cancels the subscription and waits for the producer to exit
func (s *Subscription) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed once the producer has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription, if any
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
