package event

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/stream"
)

type xmlProgress struct {
	Source string `xml:"source,attr"`
	Value  string `xml:",chardata"`
}

type xmlLog struct {
	Class  string `xml:"class,attr"`
	Source string `xml:"source,attr"`
	Text   string `xml:",chardata"`
}

type xmlRuntime struct {
	Unit    string `xml:"unit,attr"`
	Timeout string `xml:"timeout,attr"`
	Value   string `xml:",chardata"`
}

type xmlAnswer struct {
	Source string `xml:"source,attr"`
	Value  string `xml:",chardata"`
}

type xmlIvcSet struct {
	Invariants []string `xml:"Invariant"`
	IVC        []string `xml:"Ivc"`
}

type xmlProperty struct {
	Name           string             `xml:"name,attr"`
	Runtime        *xmlRuntime        `xml:"Runtime"`
	TrueFor        *string            `xml:"TrueFor"`
	K              *string            `xml:"K"`
	Answer         xmlAnswer          `xml:"Answer"`
	Report         *string            `xml:"Report"`
	Invariants     []string           `xml:"Invariant"`
	IVC            []string           `xml:"Ivc"`
	NumberOfIVCs   *string            `xml:"NumberOfIVCs"`
	TimedoutLoop   *string            `xml:"TimedoutLoop"`
	IvcSets        []xmlIvcSet        `xml:"IvcSet"`
	Conflicts      []string           `xml:"Conflicts>Conflict"`
	CounterExample *xmlCounterexample `xml:"CounterExample"`
}

// Parse decodes one complete fragment. Every failure is a *ParseError.
func Parse(f stream.Fragment) (Event, error) {
	ev, err := parse(f)
	if err != nil {
		return nil, &ParseError{Fragment: f, Err: err}
	}
	return ev, nil
}

func parse(f stream.Fragment) (Event, error) {
	switch f.Kind {
	case stream.KindProgress:
		var p xmlProgress
		if err := unmarshal(f.Text, &p); err != nil {
			return nil, err
		}
		k, err := atoi(p.Value)
		if err != nil {
			return nil, fmt.Errorf("progress value: %w", err)
		}
		return Progress{Source: p.Source, K: k}, nil

	case stream.KindAnalysisStart:
		se, err := openTag(f.Text, "AnalysisStart")
		if err != nil {
			return nil, err
		}
		return ScopeEnter{Name: attr(se, "top")}, nil

	case stream.KindAnalysisStop:
		if _, err := openTag(f.Text, "AnalysisStop"); err != nil {
			return nil, err
		}
		return ScopeExit{}, nil

	case stream.KindLog:
		var l xmlLog
		if err := unmarshal(f.Text, &l); err != nil {
			return nil, err
		}
		class, err := ParseLogClass(l.Class)
		if err != nil {
			return nil, err
		}
		return Log{Class: class, Source: l.Source, Text: strings.TrimSpace(l.Text)}, nil

	case stream.KindProperty:
		var p xmlProperty
		if err := unmarshal(f.Text, &p); err != nil {
			return nil, err
		}
		prop, err := p.property()
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		return PropertyResolved{Name: p.Name, Property: prop}, nil

	default:
		return nil, fmt.Errorf("unsupported fragment kind %s", f.Kind)
	}
}

func unmarshal(text string, v any) error {
	if err := xml.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// openTag reads the first start element of a boundary line. The element may
// be self-closed or left open, as the analyzer writes both forms.
func openTag(text, tag string) (xml.StartElement, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != tag {
				return xml.StartElement{}, fmt.Errorf("%w: want <%s>, got <%s>", ErrMalformed, tag, t.Name.Local)
			}
			return t, nil
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) > 0 {
				return xml.StartElement{}, fmt.Errorf("%w: text before <%s>", ErrMalformed, tag)
			}
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func optionalInt(s *string) (int, error) {
	if s == nil {
		return 0, nil
	}
	return atoi(*s)
}

func (p xmlProperty) runtime() (float64, error) {
	if p.Runtime == nil {
		return 0, nil
	}
	v := strings.TrimSpace(p.Runtime.Value)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

// k converts the zero-based wire depth into the one-based depth consumers see.
func (p xmlProperty) k() (int, error) {
	if p.K == nil {
		return 0, nil
	}
	k, err := atoi(*p.K)
	if err != nil {
		return 0, err
	}
	return k + 1, nil
}

func (p xmlProperty) property() (outcome.Property, error) {
	runtime, err := p.runtime()
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	source := strings.TrimSpace(p.Answer.Source)

	switch answer := strings.TrimSpace(p.Answer.Value); answer {
	case "valid":
		k, err := p.k()
		if err != nil {
			return nil, fmt.Errorf("k: %w", err)
		}
		invSets, ivcSets, err := p.sets()
		if err != nil {
			return nil, err
		}
		v := outcome.NewValid(outcome.Valid{
			Source:        source,
			K:             k,
			Runtime:       runtime,
			Invariants:    trimAll(p.Invariants),
			IVC:           trimAll(p.IVC),
			InvariantSets: invSets,
			IVCSets:       ivcSets,
			MIVCTimedOut:  p.TimedoutLoop != nil && parseFlag(*p.TimedoutLoop),
		})
		if invSets == nil {
			v.InvariantSets = outcome.NormalizeSets([][]string{v.Invariants})
			v.IVCSets = outcome.NormalizeSets([][]string{v.IVC})
		}
		return v, nil

	case "falsifiable":
		var cex outcome.Counterexample
		if p.CounterExample != nil {
			if cex, err = p.CounterExample.decode(); err != nil {
				return nil, err
			}
		}
		var report *string
		if p.Report != nil {
			r := strings.TrimSpace(*p.Report)
			report = &r
		}
		return outcome.Invalid{
			Source:         source,
			Counterexample: cex,
			Conflicts:      trimAll(p.Conflicts),
			Runtime:        runtime,
			Report:         report,
		}, nil

	case "unknown":
		trueFor, err := optionalInt(p.TrueFor)
		if err != nil {
			return nil, fmt.Errorf("true for: %w", err)
		}
		u := outcome.Unknown{TrueFor: trueFor, Runtime: runtime}
		if p.CounterExample != nil {
			cex, err := p.CounterExample.decode()
			if err != nil {
				return nil, err
			}
			u.InductiveCounterexample = &cex
		}
		return u, nil

	case "inconsistent":
		k, err := p.k()
		if err != nil {
			return nil, fmt.Errorf("k: %w", err)
		}
		return outcome.Inconsistent{Source: source, K: k, Runtime: runtime}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnswer, answer)
	}
}

// sets returns the explicitly reported invariant and IVC sets. Both are nil
// when NumberOfIVCs is absent or zero; the caller then synthesizes one pair
// from the normalized top-level lists.
func (p xmlProperty) sets() (invSets, ivcSets [][]string, err error) {
	n, err := optionalInt(p.NumberOfIVCs)
	if err != nil {
		return nil, nil, fmt.Errorf("number of ivcs: %w", err)
	}
	if n == 0 {
		return nil, nil, nil
	}
	invSets = [][]string{}
	ivcSets = [][]string{}
	for _, s := range p.IvcSets {
		invSets = append(invSets, trimAll(s.Invariants))
		ivcSets = append(ivcSets, trimAll(s.IVC))
	}
	return invSets, ivcSets, nil
}

func trimAll(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseFlag(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
