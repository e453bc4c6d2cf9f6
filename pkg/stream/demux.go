package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the element a fragment carries.
type Kind int

const (
	KindProgress Kind = iota
	KindProperty
	KindAnalysisStart
	KindAnalysisStop
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "Progress"
	case KindProperty:
		return "Property"
	case KindAnalysisStart:
		return "AnalysisStart"
	case KindAnalysisStop:
		return "AnalysisStop"
	case KindLog:
		return "Log"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrUnterminated is returned when the stream ends inside an element.
var ErrUnterminated = errors.New("stream ended inside an element")

// Fragment is the complete text of one element.
type Fragment struct {
	Kind Kind
	Text string
}

// marker describes how an element kind is recognized on a line.
type marker struct {
	kind     Kind
	tag      string
	boundary bool // single-line scope marker, never buffered
}

var markers = []marker{
	{kind: KindProgress, tag: "Progress"},
	{kind: KindProperty, tag: "Property"},
	{kind: KindAnalysisStart, tag: "AnalysisStart", boundary: true},
	{kind: KindAnalysisStop, tag: "AnalysisStop", boundary: true},
	{kind: KindLog, tag: "Log"},
}

func (m marker) closeTag() string { return "</" + m.tag + ">" }

// openIndex returns the index of m's opening tag in line, or -1.
func (m marker) openIndex(line string) int {
	open := "<" + m.tag
	from := 0
	for {
		i := strings.Index(line[from:], open)
		if i < 0 {
			return -1
		}
		i += from
		next := i + len(open)
		if next == len(line) {
			return i
		}
		switch line[next] {
		case ' ', '\t', '>', '/', '\r', '\n':
			return i
		}
		from = next
	}
}

// closedAt reports whether the element opened at index i also ends on this line.
func (m marker) closedAt(line string, i int) bool {
	rest := line[i:]
	if gt := strings.IndexByte(rest, '>'); gt > 0 && rest[gt-1] == '/' {
		return true
	}
	return strings.Contains(rest, m.closeTag())
}

// Demux groups lines into fragments. States are Idle and Buffering(kind);
// at most one buffer is open at a time and elements do not nest.
type Demux struct {
	buffering bool
	current   marker
	buf       strings.Builder
}

// NewDemux returns a Demux in the Idle state.
func NewDemux() *Demux {
	return &Demux{}
}

// Feed consumes one line. It returns a fragment when the line completes one.
// Lines outside any recognized element are ignored.
func (d *Demux) Feed(line string) (Fragment, bool) {
	if d.buffering {
		d.buf.WriteString(line)
		if !strings.Contains(line, d.current.closeTag()) {
			return Fragment{}, false
		}
		return d.emit(), true
	}

	m, at, ok := match(line)
	if !ok {
		return Fragment{}, false
	}
	if m.boundary || m.closedAt(line, at) {
		return Fragment{Kind: m.kind, Text: line[at:]}, true
	}
	d.buffering = true
	d.current = m
	d.buf.Reset()
	d.buf.WriteString(line[at:])
	return Fragment{}, false
}

// Flush reports an element left open at end of stream.
func (d *Demux) Flush() error {
	if !d.buffering {
		return nil
	}
	partial := d.emit()
	return fmt.Errorf("%w: %s: %q", ErrUnterminated, partial.Kind, partial.Text)
}

// Buffering reports whether an element is currently open.
func (d *Demux) Buffering() bool { return d.buffering }

func (d *Demux) emit() Fragment {
	f := Fragment{Kind: d.current.kind, Text: d.buf.String()}
	d.buffering = false
	d.buf.Reset()
	return f
}

// match finds the earliest recognized opening tag on line.
func match(line string) (marker, int, bool) {
	best, bestAt := marker{}, -1
	for _, m := range markers {
		if i := m.openIndex(line); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = m, i
		}
	}
	return best, bestAt, bestAt >= 0
}

// lineResult carries a framed line or terminal error from the reader goroutine.
type lineResult struct {
	line string
	err  error
}

// Fragments frames r into lines, demultiplexes them and calls fn for each
// completed fragment, in stream order. It stops at end of stream, on the
// first error returned by fn, or when ctx is cancelled.
//
// Reading happens in a background goroutine. On cancellation Fragments closes
// r if it implements io.Closer to unblock that goroutine; otherwise the caller
// must close the underlying source.
func Fragments(ctx context.Context, r io.Reader, fn func(Fragment) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	framer := NewFramer(r)
	demux := NewDemux()

	lines := make(chan lineResult)
	go func() {
		defer close(lines)
		for {
			line, err := framer.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case lines <- lineResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Attempt to unblock the reader goroutine.
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
			return ctx.Err()
		case res, ok := <-lines:
			if !ok {
				return demux.Flush()
			}
			if res.err != nil {
				return fmt.Errorf("reading stream: %w", res.err)
			}
			frag, done := demux.Feed(res.line)
			if !done {
				continue
			}
			if err := fn(frag); err != nil {
				return err
			}
		}
	}
}
