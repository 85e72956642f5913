package shortcut

import (
	"context"
	"sync"
)

// Fake is an in-memory Gateway for tests.
type Fake struct {
	activated   chan Event
	deactivated chan Event

	mu         sync.Mutex
	bound      []Shortcut
	binds      int
	bindErr    error
	onBind     func()
	configured int

	activatedOnce   sync.Once
	deactivatedOnce sync.Once
}

func NewFake() *Fake {
	return &Fake{
		activated:   make(chan Event, 16),
		deactivated: make(chan Event, 16),
	}
}

func (f *Fake) Bind(_ context.Context, shortcuts []Shortcut) error {
	f.mu.Lock()
	hook := f.onBind
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds++
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bound = append([]Shortcut(nil), shortcuts...)
	return nil
}

func (f *Fake) Activated() <-chan Event   { return f.activated }
func (f *Fake) Deactivated() <-chan Event { return f.deactivated }

func (f *Fake) Configure(context.Context) error {
	f.mu.Lock()
	f.configured++
	f.mu.Unlock()
	return nil
}

// Close ends both event streams, like a lost session.
func (f *Fake) Close() error {
	f.CloseActivated()
	f.deactivatedOnce.Do(func() { close(f.deactivated) })
	return nil
}

func (f *Fake) SimActivated(id string)   { f.activated <- Event{ID: id} }
func (f *Fake) SimDeactivated(id string) { f.deactivated <- Event{ID: id} }

// CloseActivated ends only the activation stream.
func (f *Fake) CloseActivated() {
	f.activatedOnce.Do(func() { close(f.activated) })
}

// OnBind runs fn at the start of every Bind call.
func (f *Fake) OnBind(fn func()) {
	f.mu.Lock()
	f.onBind = fn
	f.mu.Unlock()
}

// FailBind makes subsequent Bind calls return err (nil restores success).
func (f *Fake) FailBind(err error) {
	f.mu.Lock()
	f.bindErr = err
	f.mu.Unlock()
}

// Bound returns the last successfully bound set.
func (f *Fake) Bound() []Shortcut {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Shortcut(nil), f.bound...)
}

// BindCalls counts Bind attempts, failed ones included.
func (f *Fake) BindCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binds
}

func (f *Fake) Configured() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured
}
