package event

import (
	"fmt"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/value"
)

type xmlCounterexample struct {
	Nodes     []xmlNode     `xml:"Node"`
	Functions []xmlFunction `xml:"Function"`
}

type xmlNode struct {
	Name    string      `xml:"name,attr"`
	Streams []xmlStream `xml:"Stream"`
	Nodes   []xmlNode   `xml:"Node"`
}

type xmlStream struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Class  string     `xml:"class,attr"`
	Values []xmlValue `xml:"Value"`
}

type xmlValue struct {
	Instant int `xml:"instant,attr"`
	xmlDatum
}

// xmlDatum is a value that is either a scalar literal or one composite.
type xmlDatum struct {
	Text   string     `xml:",chardata"`
	Array  *xmlArray  `xml:"Array"`
	Record *xmlRecord `xml:"Record"`
	Tuple  *xmlTuple  `xml:"Tuple"`
}

type xmlArray struct {
	Items []xmlItem `xml:"Item"`
}

type xmlTuple struct {
	Items []xmlItem `xml:"Item"`
}

type xmlItem struct {
	Index int `xml:"index,attr"`
	xmlDatum
}

type xmlRecord struct {
	Fields []xmlField `xml:"Field"`
}

type xmlField struct {
	Name string `xml:"name,attr"`
	xmlDatum
}

type xmlFunction struct {
	Name    string     `xml:"name,attr"`
	Inputs  []xmlParam `xml:"Input"`
	Output  xmlParam   `xml:"Output"`
	Entries []xmlEntry `xml:"Entry"`
}

type xmlParam struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type xmlEntry struct {
	Inputs []xmlDatum `xml:"Input"`
	Output xmlDatum   `xml:"Output"`
}

func (d xmlDatum) node() value.Node {
	switch {
	case d.Array != nil:
		items := make([]value.Node, len(d.Array.Items))
		for i, it := range d.Array.Items {
			items[i] = it.node()
			items[i].Index = it.Index
		}
		return value.Node{Kind: value.ArrayNode, Items: items}
	case d.Tuple != nil:
		items := make([]value.Node, len(d.Tuple.Items))
		for i, it := range d.Tuple.Items {
			items[i] = it.node()
			items[i].Index = it.Index
		}
		return value.Node{Kind: value.TupleNode, Items: items}
	case d.Record != nil:
		items := make([]value.Node, len(d.Record.Fields))
		for i, f := range d.Record.Fields {
			items[i] = f.node()
			items[i].Name = f.Name
		}
		return value.Node{Kind: value.RecordNode, Items: items}
	default:
		return value.Node{Kind: value.LeafNode, Text: d.Text}
	}
}

func (c xmlCounterexample) decode() (outcome.Counterexample, error) {
	var signals []outcome.Signal
	for _, n := range c.Nodes {
		var err error
		if signals, err = n.collect("", signals); err != nil {
			return outcome.Counterexample{}, fmt.Errorf("counterexample: %w", err)
		}
	}

	var tables []outcome.FunctionTable
	for _, f := range c.Functions {
		table, err := f.decode()
		if err != nil {
			return outcome.Counterexample{}, fmt.Errorf("counterexample function %s: %w", f.Name, err)
		}
		tables = append(tables, table)
	}
	return outcome.NewCounterexample(-1, signals, tables), nil
}

// collect appends the node's streams to signals. Streams of the top-level node
// keep their bare names; nested nodes qualify them as sub.x.
func (n xmlNode) collect(prefix string, signals []outcome.Signal) ([]outcome.Signal, error) {
	for _, s := range n.Streams {
		sig, err := s.decode(prefix)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	for _, child := range n.Nodes {
		var err error
		if signals, err = child.collect(prefix+child.Name+".", signals); err != nil {
			return nil, err
		}
	}
	return signals, nil
}

func (s xmlStream) decode(prefix string) (outcome.Signal, error) {
	typ := value.ParseType(s.Type)
	sig := outcome.Signal{Name: prefix + s.Name, Type: s.Type, Class: s.Class}
	for _, v := range s.Values {
		decoded, err := value.DecodeNode(typ, v.node())
		if err != nil {
			return outcome.Signal{}, fmt.Errorf("stream %s at instant %d: %w", sig.Name, v.Instant, err)
		}
		sig.Steps = append(sig.Steps, outcome.Step{Instant: v.Instant, Value: decoded})
	}
	return sig, nil
}

func (f xmlFunction) decode() (outcome.FunctionTable, error) {
	table := outcome.FunctionTable{
		Name:   f.Name,
		Output: outcome.Param{Name: f.Output.Name, Type: f.Output.Type},
	}
	inTypes := make([]value.Type, len(f.Inputs))
	for i, in := range f.Inputs {
		table.Inputs = append(table.Inputs, outcome.Param{Name: in.Name, Type: in.Type})
		inTypes[i] = value.ParseType(in.Type)
	}
	outType := value.ParseType(f.Output.Type)

	for r, e := range f.Entries {
		if len(e.Inputs) != len(f.Inputs) {
			return outcome.FunctionTable{}, fmt.Errorf("%w: entry %d has %d inputs, want %d",
				value.ErrShape, r, len(e.Inputs), len(f.Inputs))
		}
		row := outcome.Row{Inputs: make([]value.Value, len(e.Inputs))}
		for i, in := range e.Inputs {
			v, err := value.DecodeNode(inTypes[i], in.node())
			if err != nil {
				return outcome.FunctionTable{}, fmt.Errorf("entry %d input %d: %w", r, i, err)
			}
			row.Inputs[i] = v
		}
		out, err := value.DecodeNode(outType, e.Output.node())
		if err != nil {
			return outcome.FunctionTable{}, fmt.Errorf("entry %d output: %w", r, err)
		}
		row.Output = out
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
