package render

import (
	"encoding/json"
	"strconv"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/value"
)

// JSON renders snapshots as structured JSON for automation.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

// jsonOutput is the top-level JSON structure.
type jsonOutput struct {
	Version    string         `json:"version"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Elapsed    float64        `json:"elapsed_seconds"`
	Properties []jsonProperty `json:"properties"`
	Logs       []jsonLog      `json:"logs,omitempty"`
}

type jsonProperty struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	BaseProgress int    `json:"base_progress"`

	Source       string              `json:"source,omitempty"`
	K            int                 `json:"k,omitempty"`
	TrueFor      int                 `json:"true_for,omitempty"`
	Runtime      float64             `json:"runtime_seconds,omitempty"`
	Invariants   []string            `json:"invariants,omitempty"`
	IVC          []string            `json:"ivc,omitempty"`
	IVCSets      [][]string          `json:"ivc_sets,omitempty"`
	MIVCTimedOut bool                `json:"mivc_timed_out,omitempty"`
	Conflicts    []string            `json:"conflicts,omitempty"`
	Report       *string             `json:"report,omitempty"`
	Trace        *jsonCounterexample `json:"counterexample,omitempty"`
}

type jsonCounterexample struct {
	Length    int            `json:"length"`
	Signals   []jsonSignal   `json:"signals"`
	Functions []jsonFunction `json:"functions,omitempty"`
}

type jsonSignal struct {
	Name   string            `json:"name"`
	Type   string            `json:"type,omitempty"`
	Class  string            `json:"class,omitempty"`
	Values map[string]string `json:"values"`
}

type jsonFunction struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

type jsonLog struct {
	Class  string `json:"class"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// Render formats the snapshot as indented JSON. Values are rendered as
// their exact textual form so that big integers and rationals survive.
func (j *JSON) Render(snap result.Snapshot) string {
	out := jsonOutput{
		Version:    "1.0",
		ID:         snap.ID,
		Name:       snap.Name,
		State:      snap.State.String(),
		Elapsed:    snap.Elapsed().Seconds(),
		Properties: make([]jsonProperty, 0, len(snap.Properties)),
	}
	for _, pr := range snap.Properties {
		out.Properties = append(out.Properties, toJSONProperty(pr))
	}
	for _, l := range snap.Logs {
		out.Logs = append(out.Logs, jsonLog{Class: string(l.Class), Source: l.Source, Text: l.Text})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON)
	}
	return string(data) + "\n"
}

func toJSONProperty(pr result.PropertyResult) jsonProperty {
	jp := jsonProperty{
		Name:         pr.Name,
		Status:       pr.Status().String(),
		BaseProgress: pr.BaseProgress,
		Runtime:      outcome.RuntimeOf(pr.Property),
		Source:       outcome.SourceOf(pr.Property),
	}
	switch v := pr.Property.(type) {
	case outcome.Valid:
		jp.K = v.K
		jp.Invariants = v.Invariants
		jp.IVC = v.IVC
		jp.IVCSets = v.IVCSets
		jp.MIVCTimedOut = v.MIVCTimedOut
	case outcome.Invalid:
		jp.Conflicts = v.Conflicts
		jp.Report = v.Report
		jp.Trace = toJSONCounterexample(v.Counterexample)
	case outcome.Unknown:
		jp.TrueFor = v.TrueFor
		if v.InductiveCounterexample != nil {
			jp.Trace = toJSONCounterexample(*v.InductiveCounterexample)
		}
	case outcome.Inconsistent:
		jp.K = v.K
	}
	return jp
}

func toJSONCounterexample(c outcome.Counterexample) *jsonCounterexample {
	jc := &jsonCounterexample{Length: c.Length, Signals: make([]jsonSignal, 0, len(c.Signals))}
	for _, s := range c.Signals {
		js := jsonSignal{Name: s.Name, Type: s.Type, Class: s.Class, Values: make(map[string]string, len(s.Steps))}
		for _, st := range s.Steps {
			js.Values[strconv.Itoa(st.Instant)] = st.Value.String()
		}
		jc.Signals = append(jc.Signals, js)
	}
	for _, f := range c.Functions {
		jf := jsonFunction{Name: f.Name}
		for _, row := range f.Rows {
			cells := make([]string, 0, len(row.Inputs)+1)
			for _, v := range row.Inputs {
				cells = append(cells, valueText(v))
			}
			jf.Rows = append(jf.Rows, append(cells, valueText(row.Output)))
		}
		jc.Functions = append(jc.Functions, jf)
	}
	return jc
}

func valueText(v value.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}
