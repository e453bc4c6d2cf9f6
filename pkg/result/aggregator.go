package result

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/stream"
)

// ProgressSource is the only engine whose progress moves base progress.
const ProgressSource = "bmc"

// Aggregator routes events into a Result. It is not safe for concurrent use;
// one goroutine applies events in stream order.
type Aggregator struct {
	res    *Result
	logger *slog.Logger

	// scopes maps an open scope to the property keys admitted while it was open.
	scopes map[string][]string
	active string
	open   bool

	onEvent func(event.Event)
}

// NewAggregator creates an Aggregator writing to res. A nil logger discards.
func NewAggregator(res *Result, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		res:    res,
		logger: logger,
		scopes: make(map[string][]string),
	}
}

// Scope returns the active scope name, if one is open.
func (a *Aggregator) Scope() (string, bool) { return a.active, a.open }

// OnEvent registers fn to be called with every parsed event before it is applied.
func (a *Aggregator) OnEvent(fn func(event.Event)) { a.onEvent = fn }

// Consume reads an analyzer stream from r and applies its events in order.
// It stops at the first malformed fragment.
func (a *Aggregator) Consume(ctx context.Context, r io.Reader) error {
	return stream.Fragments(ctx, r, func(f stream.Fragment) error {
		ev, err := event.Parse(f)
		if err != nil {
			return err
		}
		if a.onEvent != nil {
			a.onEvent(ev)
		}
		return a.Apply(ev)
	})
}

// Apply applies one event.
func (a *Aggregator) Apply(ev event.Event) error {
	switch e := ev.(type) {
	case event.ScopeEnter:
		a.enter(e.Name)
	case event.ScopeExit:
		a.exit()
	case event.Progress:
		a.progress(e)
	case event.PropertyResolved:
		a.resolve(e)
	case event.Log:
		a.log(e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
	return nil
}

func (a *Aggregator) enter(name string) {
	if _, ok := a.scopes[name]; !ok {
		a.scopes[name] = nil
	}
	a.active, a.open = name, true

	// Properties declared up front and still unresolved are analyzed under
	// this scope, so they receive its progress.
	a.res.mu.RLock()
	var pending []string
	for _, key := range a.res.order {
		if a.res.props[key].Property == nil {
			pending = append(pending, key)
		}
	}
	a.res.mu.RUnlock()
	for _, key := range pending {
		a.admit(key)
	}
	a.logger.Debug("scope entered", "scope", name, "admitted", len(a.scopes[name]))
}

func (a *Aggregator) exit() {
	if !a.open {
		return
	}
	delete(a.scopes, a.active)
	a.logger.Debug("scope exited", "scope", a.active)
	a.active, a.open = "", false
}

func (a *Aggregator) progress(e event.Progress) {
	if e.Source != ProgressSource || !a.open {
		return
	}
	keys := a.scopes[a.active]
	a.res.update(func() {
		for _, key := range keys {
			p := a.res.props[key]
			if e.K > p.BaseProgress {
				p.BaseProgress = e.K
			}
			p.progressed = true
		}
	})
}

func (a *Aggregator) resolve(e event.PropertyResolved) {
	var key string
	a.res.update(func() {
		key = a.lookup(e.Name)
		a.res.getOrCreate(key).Property = e.Property
	})
	if a.open {
		a.admit(key)
	}
	a.logger.Debug("property resolved", "property", e.Name, "status", e.Property.Status())
}

// lookup finds the key of an existing entry for name: the bare name first,
// then the name qualified by the active scope. Unmatched names use the bare
// name. Must be called with the Result's write lock held.
func (a *Aggregator) lookup(name string) string {
	if _, ok := a.res.props[name]; ok {
		return name
	}
	if a.open {
		if scoped := a.active + name; scoped != name {
			if _, ok := a.res.props[scoped]; ok {
				return scoped
			}
		}
	}
	return name
}

func (a *Aggregator) admit(key string) {
	list := a.scopes[a.active]
	for _, k := range list {
		if k == key {
			return
		}
	}
	a.scopes[a.active] = append(list, key)
}

func (a *Aggregator) log(e event.Log) {
	a.res.update(func() {
		a.res.logs = append(a.res.logs, e)
	})
	if e.Class == event.LogOff {
		return
	}
	a.logger.Log(context.Background(), logLevel(e.Class), e.Text, "class", string(e.Class), "source", e.Source)
}

func logLevel(c event.LogClass) slog.Level {
	switch c {
	case event.LogFatal, event.LogError:
		return slog.LevelError
	case event.LogWarn:
		return slog.LevelWarn
	case event.LogNote, event.LogInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
