package cli

import (
	"path"

	"github.com/dkoosis/kind2run/pkg/event"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/supervisor"
)

// observers fans supervisor callbacks out to each member in order.
type observers []supervisor.Observer

func (o observers) ObserveEvent(ev event.Event) {
	for _, obs := range o {
		obs.ObserveEvent(ev)
	}
}

func (o observers) ObserveRun(snap result.Snapshot, exitCode int, err error) {
	for _, obs := range o {
		obs.ObserveRun(snap, exitCode, err)
	}
}

// hider maps property names matching any of patterns to "", which drops
// them from a renamed snapshot. It returns nil when there is nothing to hide.
func hider(patterns []string) func(string) string {
	if len(patterns) == 0 {
		return nil
	}
	return func(name string) string {
		for _, p := range patterns {
			if ok, _ := path.Match(p, name); ok {
				return ""
			}
		}
		return name
	}
}

// view presents a result through a rename.
type view struct {
	*result.Result
	rename func(string) string
}

func (v view) Snapshot() result.Snapshot {
	snap := v.Result.Snapshot()
	if v.rename == nil {
		return snap
	}
	return result.Rename(snap, v.rename)
}
