package fixedwidth

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Alignment of a value inside its field.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// Field is a named byte range [Start, End) of a line.
type Field struct {
	Name  string    `yaml:"name"`
	Start int       `yaml:"start"`
	End   int       `yaml:"end"`
	Align Alignment `yaml:"align,omitempty"`
	Pad   string    `yaml:"pad,omitempty"`
}

// Width returns the field width in bytes.
func (f Field) Width() int {
	return f.End - f.Start
}

func (f Field) padByte() byte {
	if f.Pad == "" {
		return ' '
	}

	return f.Pad[0]
}

// Layout describes the fields of a fixed-width record.
type Layout struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
	// BlankIsAbsent makes all-padding fields resolve to absent.
	BlankIsAbsent bool `yaml:"blank_is_absent,omitempty"`

	byName map[string]int
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	return ParseLayout(data)
}

// ParseLayout parses and validates a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout

	err := yaml.Unmarshal(data, &l)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout YAML: %w", err)
	}

	err = l.Validate()
	if err != nil {
		return nil, err
	}

	return &l, nil
}

// Validate checks field ranges and names and indexes the fields.
func (l *Layout) Validate() error {
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %q: no fields", l.Name)
	}

	var errs []error

	l.byName = make(map[string]int, len(l.Fields))

	for i, f := range l.Fields {
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Errorf("field %d: missing name", i))
		case f.Start < 0 || f.End <= f.Start:
			errs = append(errs, fmt.Errorf("field %q: invalid range [%d, %d)", f.Name, f.Start, f.End))
		case f.Align != "" && f.Align != AlignLeft && f.Align != AlignRight:
			errs = append(errs, fmt.Errorf("field %q: unknown alignment %q", f.Name, f.Align))
		case len(f.Pad) > 1:
			errs = append(errs, fmt.Errorf("field %q: pad must be a single byte", f.Name))
		}

		if _, dup := l.byName[f.Name]; dup {
			errs = append(errs, fmt.Errorf("field %q: duplicate name", f.Name))
		}

		l.byName[f.Name] = i
	}

	sorted := append([]Field(nil), l.Fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			errs = append(errs, fmt.Errorf("field %q overlaps %q", sorted[i].Name, sorted[i-1].Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("layout %q: %w", l.Name, errors.Join(errs...))
	}

	return nil
}

// Width returns the line length the layout covers.
func (l *Layout) Width() int {
	w := 0
	for _, f := range l.Fields {
		w = max(w, f.End)
	}

	return w
}

// Field returns the named field.
func (l *Layout) Field(name string) (Field, bool) {
	if l.byName == nil {
		_ = l.Validate()
	}

	i, ok := l.byName[name]
	if !ok {
		return Field{}, false
	}

	return l.Fields[i], true
}

// Names returns the field names in declaration order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}

	return names
}
