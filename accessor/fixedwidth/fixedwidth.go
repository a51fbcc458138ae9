// Package fixedwidth reads and writes fixed-width text records whose fields
// are identified by byte offsets declared in a Layout.
package fixedwidth

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"rulemapper/fieldpath"
)

// Line is one fixed-width record.
type Line struct {
	buf []byte
}

func NewLine(s string) *Line {
	return &Line{buf: []byte(s)}
}

func (l *Line) String() string {
	return string(l.buf)
}

// ReadLines splits r into lines, dropping line terminators.
func ReadLines(r io.Reader) ([]*Line, error) {
	var lines []*Line

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, NewLine(sc.Text()))
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}

	return lines, nil
}

// WriteLines writes one record per line.
func WriteLines(w io.Writer, lines []*Line) error {
	bw := bufio.NewWriter(w)

	for _, l := range lines {
		_, err := bw.Write(l.buf)
		if err != nil {
			return err
		}

		err = bw.WriteByte('\n')
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

type Accessor struct {
	layout *Layout
}

// New returns an accessor for lines described by layout, which must be valid.
func New(layout *Layout) (Accessor, error) {
	err := layout.Validate()
	if err != nil {
		return Accessor{}, err
	}

	return Accessor{layout: layout}, nil
}

func (a Accessor) Kind() string {
	return "fixedwidth:" + a.layout.Name
}

func (a Accessor) Layout() *Layout {
	return a.layout
}

// Get returns the field value with its padding trimmed. Lines shorter than
// the layout read as padded.
func (a Accessor) Get(obj any, key string) (any, bool, error) {
	var buf []byte

	switch o := obj.(type) {
	case *Line:
		if o == nil {
			return nil, false, nil
		}

		buf = o.buf
	case string:
		buf = []byte(o)
	default:
		return nil, false, fmt.Errorf("fixed-width accessor cannot read %T", obj)
	}

	f, ok := a.layout.Field(key)
	if !ok {
		return nil, false, nil
	}

	raw := make([]byte, 0, f.Width())
	if f.Start < len(buf) {
		raw = append(raw, buf[f.Start:min(f.End, len(buf))]...)
	}

	cut := string(f.padByte()) + " "

	var v []byte
	if f.Align == AlignRight {
		v = bytes.TrimRight(bytes.TrimLeft(raw, cut), " ")
	} else {
		v = bytes.TrimRight(raw, cut)
	}

	if len(v) == 0 && a.layout.BlankIsAbsent {
		return nil, false, nil
	}

	return string(v), true, nil
}

// Set writes value into the field, padded to its width. Values longer than
// the field are truncated.
func (a Accessor) Set(obj any, path fieldpath.Path, value any) error {
	line, ok := obj.(*Line)
	if !ok || line == nil {
		return fmt.Errorf("set %s: fixed-width target must be a *Line, got %T", path, obj)
	}

	f, ok := a.layout.Field(path.String())
	if !ok {
		return fmt.Errorf("set %s: layout %q has no field %q", path, a.layout.Name, path.String())
	}

	if len(line.buf) < f.End {
		line.buf = append(line.buf, bytes.Repeat([]byte{' '}, f.End-len(line.buf))...)
	}

	s := []byte(text(value))
	if len(s) > f.Width() {
		s = s[:f.Width()]
	}

	padding := bytes.Repeat([]byte{f.padByte()}, f.Width()-len(s))

	cell := line.buf[f.Start:f.End]
	if f.Align == AlignRight {
		copy(cell, padding)
		copy(cell[len(padding):], s)
	} else {
		copy(cell, s)
		copy(cell[len(s):], padding)
	}

	return nil
}

// NewEmpty returns a blank line as wide as the layout.
func (a Accessor) NewEmpty() (any, error) {
	return &Line{buf: bytes.Repeat([]byte{' '}, a.layout.Width())}, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("20060102")
	default:
		return fmt.Sprint(v)
	}
}
