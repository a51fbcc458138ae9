// Package codec decodes input documents into the objects a converter's source
// accessor reads, and encodes converter results back into documents.
package codec

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"rulemapper/accessor/fixedwidth"
	"rulemapper/accessor/mapaccess"
	"rulemapper/accessor/tabular"
	"rulemapper/accessor/xmlaccess"
	"rulemapper/internal/common"
	"rulemapper/internal/match"
)

// Format is a document encoding.
type Format string

const (
	JSON  Format = "json"
	YAML  Format = "yaml"
	CSV   Format = "csv"
	XML   Format = "xml"
	Fixed Format = "fixed"
)

// BatchTag wraps several XML records in one document.
const BatchTag = "records"

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrUnsupported   = errors.New("unsupported record")
)

var formats = []Format{JSON, YAML, CSV, XML, Fixed}

// Formats lists the format names.
func Formats() []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}

	return names
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if slices.Contains(formats, f) {
		return f, nil
	}

	suggestions := match.Suggest(s, Formats(), match.DefaultSuggestions)
	if len(suggestions) > 0 {
		return "", fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownFormat, s, common.QuoteList(suggestions))
	}

	return "", fmt.Errorf("%w %q (known: %s)", ErrUnknownFormat, s, common.QuoteList(Formats()))
}

// ForKind returns the natural document format of an accessor kind.
func ForKind(kind string) Format {
	switch {
	case kind == tabular.Kind:
		return CSV
	case strings.HasPrefix(kind, "xml:"):
		return XML
	case strings.HasPrefix(kind, "fixedwidth:"):
		return Fixed
	default:
		return JSON
	}
}

// Batch is a decoded document: a single record, or a list when Many is set.
type Batch struct {
	Records []any
	Many    bool
}

// Decode reads a document and adapts its records to the source kind.
func Decode(r io.Reader, f Format, kind string) (Batch, error) {
	b, err := read(r, f, kind)
	if err != nil {
		return Batch{}, err
	}

	for i, rec := range b.Records {
		b.Records[i], err = Adapt(rec, kind)
		if err != nil {
			return Batch{}, fmt.Errorf("record %d: %w", i, err)
		}
	}

	return b, nil
}

func read(r io.Reader, f Format, kind string) (Batch, error) {
	switch f {
	case JSON:
		var doc any

		err := json.NewDecoder(r).Decode(&doc)
		if err != nil {
			return Batch{}, fmt.Errorf("decode json: %w", err)
		}

		return batchOf(doc), nil

	case YAML:
		var doc any

		err := yaml.NewDecoder(r).Decode(&doc)
		if err != nil {
			return Batch{}, fmt.Errorf("decode yaml: %w", err)
		}

		return batchOf(doc), nil

	case CSV:
		rows, err := tabular.ReadCSV(r)
		if err != nil {
			return Batch{}, err
		}

		b := Batch{Many: true, Records: make([]any, len(rows))}
		for i, row := range rows {
			b.Records[i] = row
		}

		return b, nil

	case XML:
		root, err := xmlaccess.ReadRoot(r, "")
		if err != nil {
			return Batch{}, err
		}

		return xmlBatch(root, strings.TrimPrefix(kind, "xml:"))

	case Fixed:
		lines, err := fixedwidth.ReadLines(r)
		if err != nil {
			return Batch{}, err
		}

		b := Batch{Many: true}

		for _, l := range lines {
			if strings.TrimSpace(l.String()) == "" {
				continue
			}

			b.Records = append(b.Records, l)
		}

		return b, nil
	}

	return Batch{}, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

func batchOf(doc any) Batch {
	if list, ok := doc.([]any); ok {
		return Batch{Records: list, Many: true}
	}

	return Batch{Records: []any{doc}}
}

// xmlBatch returns the root itself when it is the record element, or the
// record children of a wrapping element.
func xmlBatch(root *etree.Element, tag string) (Batch, error) {
	if tag == "" || root.Tag == tag {
		return Batch{Records: []any{root}}, nil
	}

	var b Batch

	b.Many = true

	for _, el := range root.SelectElements(tag) {
		b.Records = append(b.Records, el)
	}

	if len(b.Records) == 0 {
		return Batch{}, fmt.Errorf("decode xml: root <%s> holds no <%s> records", root.Tag, tag)
	}

	return b, nil
}

// Adapt converts a decoded record into the object type the accessor of kind
// reads.
func Adapt(rec any, kind string) (any, error) {
	switch {
	case kind == mapaccess.Kind:
		switch v := rec.(type) {
		case map[string]any:
			return v, nil
		case *tabular.Row:
			return v.Map(), nil
		}

	case kind == tabular.Kind:
		switch v := rec.(type) {
		case *tabular.Row:
			return v, nil
		case map[string]any:
			return rowOf(v), nil
		}

	case strings.HasPrefix(kind, "xml:"):
		if el, ok := rec.(*etree.Element); ok {
			return el, nil
		}

	case strings.HasPrefix(kind, "fixedwidth:"):
		switch v := rec.(type) {
		case *fixedwidth.Line:
			return v, nil
		case string:
			return fixedwidth.NewLine(v), nil
		}
	}

	return nil, fmt.Errorf("%w: %T for %s source", ErrUnsupported, rec, kind)
}

// Encode writes converted records.
func Encode(w io.Writer, f Format, b Batch) error {
	switch f {
	case JSON:
		doc, err := document(b)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(doc)

	case YAML:
		doc, err := document(b)
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err = enc.Encode(doc)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()

	case CSV:
		rows := make([]*tabular.Row, 0, len(b.Records))

		for _, rec := range b.Records {
			switch v := rec.(type) {
			case *tabular.Row:
				rows = append(rows, v)
			case map[string]any:
				rows = append(rows, rowOf(v))
			default:
				return fmt.Errorf("%w: cannot write %T as csv", ErrUnsupported, rec)
			}
		}

		return tabular.WriteCSV(w, rows)

	case XML:
		els := make([]*etree.Element, 0, len(b.Records))

		for _, rec := range b.Records {
			el, ok := rec.(*etree.Element)
			if !ok {
				return fmt.Errorf("%w: cannot write %T as xml", ErrUnsupported, rec)
			}

			els = append(els, el)
		}

		if !b.Many && len(els) == 1 {
			return xmlaccess.Write(w, els[0])
		}

		wrapper := etree.NewElement(BatchTag)
		for _, el := range els {
			wrapper.AddChild(el.Copy())
		}

		return xmlaccess.Write(w, wrapper)

	case Fixed:
		lines := make([]*fixedwidth.Line, 0, len(b.Records))

		for _, rec := range b.Records {
			switch v := rec.(type) {
			case *fixedwidth.Line:
				lines = append(lines, v)
			case string:
				lines = append(lines, fixedwidth.NewLine(v))
			default:
				return fmt.Errorf("%w: cannot write %T as fixed-width", ErrUnsupported, rec)
			}
		}

		return fixedwidth.WriteLines(w, lines)
	}

	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// document turns records into plain values for the JSON and YAML encoders.
func document(b Batch) (any, error) {
	out := make([]any, len(b.Records))

	for i, rec := range b.Records {
		switch v := rec.(type) {
		case *tabular.Row:
			out[i] = v.Map()
		case *fixedwidth.Line:
			out[i] = v.String()
		case *etree.Element:
			doc := etree.NewDocument()
			doc.SetRoot(v.Copy())

			s, err := doc.WriteToString()
			if err != nil {
				return nil, fmt.Errorf("render xml: %w", err)
			}

			out[i] = s
		default:
			out[i] = v
		}
	}

	if !b.Many && len(out) == 1 {
		return out[0], nil
	}

	return out, nil
}

// rowOf lays out a map as a row with sorted columns.
func rowOf(m map[string]any) *tabular.Row {
	columns := make([]string, 0, len(m))
	for k := range m {
		columns = append(columns, k)
	}

	sort.Strings(columns)

	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = m[c]
	}

	return &tabular.Row{Columns: columns, Values: values}
}
