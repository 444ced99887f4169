package client

import "sync"

// notifier is a one-shot shutdown signal shared by the read and input loops.
type notifier struct {
	once sync.Once
	ch   chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

// Notify fires the signal. Calling it more than once is a no-op.
func (n *notifier) Notify() {
	n.once.Do(func() { close(n.ch) })
}

func (n *notifier) Done() <-chan struct{} {
	return n.ch
}
