// Package stream frames the analyzer's merged output into lines and groups
// those lines into complete markup fragments as soon as each one closes.
//
// A buffering XML decoder over the whole stream would hold elements back
// until its internal buffer filled; framing by line surfaces every element
// the moment the producer flushes its last line.
package stream

import (
	"bufio"
	"errors"
	"io"
)

// Framer yields lines from a byte source.
type Framer struct {
	r   *bufio.Reader
	eof bool
}

// NewFramer creates a Framer over r.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line including its terminator. A trailing line
// without a terminator is returned once; after that Next returns io.EOF.
func (f *Framer) Next() (string, error) {
	if f.eof {
		return "", io.EOF
	}
	line, err := f.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return line, err
		}
		f.eof = true
		if line == "" {
			return "", io.EOF
		}
	}
	return line, nil
}
