// Package result holds the live result tree of one analyzer run.
//
// A Result is written by a single Aggregator and read by any number of
// goroutines through Status, Progress, Property and Snapshot. Every event is
// applied under the write lock, so readers never observe half of an event.
package result

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/outcome"
)

// ErrTransition is returned when a lifecycle state is entered twice or out of order.
var ErrTransition = errors.New("invalid lifecycle transition")

// State is the lifecycle state of a Result.
type State int

const (
	StateStart State = iota
	StateRunning
	StateDone
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s is Done or Canceled.
func (s State) Terminal() bool { return s == StateDone || s == StateCanceled }

// PropertyResult is the live state of one property.
type PropertyResult struct {
	Name string
	// Property is nil until the property is resolved.
	Property     outcome.Property
	BaseProgress int
	progressed   bool
}

// Status derives the presentation status.
func (p PropertyResult) Status() outcome.Status {
	switch {
	case p.Property != nil:
		return p.Property.Status()
	case p.progressed:
		return outcome.StatusWorking
	default:
		return outcome.StatusWaiting
	}
}

// Result is the root of one run's result tree.
type Result struct {
	id   uuid.UUID
	name string

	mu       sync.RWMutex
	state    State
	props    map[string]*PropertyResult
	order    []string
	logs     []event.Log
	started  time.Time
	finished time.Time

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
	final chan struct{}
}

// New creates an empty Result in the Start state.
func New(name string) *Result {
	return &Result{
		id:    uuid.New(),
		name:  name,
		props: make(map[string]*PropertyResult),
		subs:  make(map[chan struct{}]struct{}),
		final: make(chan struct{}),
	}
}

// ID is the unique identifier of the run.
func (r *Result) ID() uuid.UUID { return r.id }

// Name is the display name of the run, usually the input file.
func (r *Result) Name() string { return r.name }

// Declare registers properties known before the analysis reports on them.
// Names already present are left untouched.
func (r *Result) Declare(names ...string) {
	r.update(func() {
		for _, n := range names {
			r.getOrCreate(n)
		}
	})
}

// State returns the current lifecycle state.
func (r *Result) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Status returns the derived status of the named property.
func (r *Result) Status(name string) (outcome.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[name]
	if !ok {
		return outcome.StatusWaiting, false
	}
	return p.Status(), true
}

// Progress returns the base progress of the named property.
func (r *Result) Progress(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[name]
	if !ok {
		return 0, false
	}
	return p.BaseProgress, true
}

// Property returns the resolved verdict of the named property, if any.
func (r *Result) Property(name string) (outcome.Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[name]
	if !ok || p.Property == nil {
		return nil, false
	}
	return p.Property, true
}

// Snapshot returns a consistent copy of the whole tree.
func (r *Result) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:         r.id.String(),
		Name:       r.name,
		State:      r.state,
		Properties: make([]PropertyResult, 0, len(r.order)),
		Logs:       slices.Clone(r.logs),
		Started:    r.started,
		Finished:   r.finished,
	}
	for _, n := range r.order {
		s.Properties = append(s.Properties, *r.props[n])
	}
	return s
}

// Subscribe returns a channel that receives a value after each applied
// change. Notifications coalesce: a reader that falls behind sees one pending
// value and should take a fresh Snapshot. Call the returned func to stop.
func (r *Result) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, ch)
			r.subMu.Unlock()
		})
	}
}

// Finished is closed once the Result reaches Done or Canceled.
func (r *Result) Finished() <-chan struct{} { return r.final }

// Running moves the Result from Start to Running.
func (r *Result) Running() error { return r.transition(StateRunning) }

// Done marks normal completion.
func (r *Result) Done() error { return r.transition(StateDone) }

// Cancel marks the run as canceled.
func (r *Result) Cancel() error { return r.transition(StateCanceled) }

func (r *Result) transition(to State) error {
	r.mu.Lock()
	from := r.state
	if from.Terminal() || to <= from {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTransition, from, to)
	}
	r.state = to
	now := time.Now()
	if to == StateRunning {
		r.started = now
	}
	if to.Terminal() {
		if r.started.IsZero() {
			r.started = now
		}
		r.finished = now
	}
	r.mu.Unlock()

	if to.Terminal() {
		close(r.final)
	}
	r.notify()
	return nil
}

// update applies fn under the write lock and notifies subscribers afterwards.
func (r *Result) update(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
	r.notify()
}

func (r *Result) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// getOrCreate must be called with mu held for writing.
func (r *Result) getOrCreate(name string) *PropertyResult {
	if p, ok := r.props[name]; ok {
		return p
	}
	p := &PropertyResult{Name: name}
	r.props[name] = p
	r.order = append(r.order, name)
	return p
}
