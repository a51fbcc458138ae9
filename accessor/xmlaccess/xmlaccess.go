// Package xmlaccess reads and writes XML element trees built with etree.
//
// Path segments name child elements by tag; "@name" names an attribute and
// "#text" the element's own text. A child that occurs once resolves to its
// text when it is a leaf without attributes, and to the element otherwise.
// A repeated child resolves to a list with one entry per occurrence.
package xmlaccess

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/beevik/etree"

	"rulemapper/fieldpath"
)

// TextKey addresses the text of the current element.
const TextKey = "#text"

type Accessor struct {
	root  string
	cdata bool
}

type Option func(*Accessor)

// WithCDATA writes text content as CDATA sections.
func WithCDATA() Option {
	return func(a *Accessor) { a.cdata = true }
}

// New returns an accessor whose targets are <rootTag> elements.
func New(rootTag string, opts ...Option) Accessor {
	a := Accessor{root: rootTag}
	for _, opt := range opts {
		opt(&a)
	}

	return a
}

func (a Accessor) Kind() string {
	return "xml:" + a.root
}

func (a Accessor) Get(obj any, key string) (any, bool, error) {
	var el *etree.Element

	switch o := obj.(type) {
	case *etree.Document:
		el = o.Root()
	case *etree.Element:
		el = o
	case []any:
		i, ok := fieldpath.Index(key)
		if !ok || i >= len(o) {
			return nil, false, nil
		}

		return o[i], true, nil
	case string:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("xml accessor cannot read %T", obj)
	}

	if el == nil {
		return nil, false, nil
	}

	if key == TextKey {
		return el.Text(), true, nil
	}

	if name, ok := fieldpath.Attr(key); ok {
		attr := el.SelectAttr(name)
		if attr == nil {
			return nil, false, nil
		}

		return attr.Value, true, nil
	}

	children := el.SelectElements(key)

	switch len(children) {
	case 0:
		return nil, false, nil
	case 1:
		return valueOf(children[0]), true, nil
	}

	items := make([]any, len(children))
	for i, c := range children {
		items[i] = valueOf(c)
	}

	return items, true, nil
}

func valueOf(el *etree.Element) any {
	if len(el.ChildElements()) == 0 && len(el.Attr) == 0 {
		return el.Text()
	}

	return el
}

// Set writes value under path. Existing children with the final tag are
// replaced; lists produce one element per item and maps one child per key.
func (a Accessor) Set(obj any, path fieldpath.Path, value any) error {
	el, err := elementOf(obj)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	if path.IsEmpty() {
		return fmt.Errorf("set: empty path")
	}

	segs := path.Segments()
	for _, seg := range segs[:len(segs)-1] {
		if _, ok := fieldpath.Attr(seg); ok {
			return fmt.Errorf("set %s: attribute %q must be last", path, seg)
		}

		next := el.SelectElement(seg)
		if next == nil {
			next = el.CreateElement(seg)
		}

		el = next
	}

	last := segs[len(segs)-1]

	if name, ok := fieldpath.Attr(last); ok {
		el.CreateAttr(name, text(value))

		return nil
	}

	if last == TextKey {
		a.setText(el, text(value))

		return nil
	}

	for _, old := range el.SelectElements(last) {
		el.RemoveChild(old)
	}

	return a.write(el, last, value)
}

func (a Accessor) write(parent *etree.Element, tag string, value any) error {
	switch v := value.(type) {
	case nil:
		parent.CreateElement(tag)

		return nil

	case *etree.Element:
		c := v.Copy()
		c.Tag = tag
		parent.AddChild(c)

		return nil

	case *etree.Document:
		if v.Root() == nil {
			return errors.New("empty document")
		}

		return a.write(parent, tag, v.Root())

	case map[string]any:
		child := parent.CreateElement(tag)

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			err := a.Set(child, fieldpath.FromSegments(k), v[k])
			if err != nil {
				return err
			}
		}

		return nil

	case string, []byte:
		a.setText(parent.CreateElement(tag), text(v))

		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			err := a.write(parent, tag, rv.Index(i).Interface())
			if err != nil {
				return err
			}
		}

		return nil
	}

	a.setText(parent.CreateElement(tag), text(value))

	return nil
}

func (a Accessor) setText(el *etree.Element, s string) {
	if a.cdata {
		el.SetCData(s)

		return
	}

	el.SetText(s)
}

// NewEmpty returns a new <root> element.
func (a Accessor) NewEmpty() (any, error) {
	return etree.NewElement(a.root), nil
}

func elementOf(obj any) (*etree.Element, error) {
	switch o := obj.(type) {
	case *etree.Element:
		return o, nil
	case *etree.Document:
		if o.Root() == nil {
			return nil, errors.New("empty document")
		}

		return o.Root(), nil
	default:
		return nil, fmt.Errorf("xml accessor cannot write %T", obj)
	}
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
		return x.Format(time.RFC3339)
	case *etree.Element:
		return x.Text()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// ReadRoot parses an XML document and returns its root element. A non-empty
// rootTag must match the root element's tag.
func ReadRoot(r io.Reader, rootTag string) (*etree.Element, error) {
	doc := etree.NewDocument()

	_, err := doc.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read xml: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.New("read xml: no root element")
	}

	if rootTag != "" && root.Tag != rootTag {
		return nil, fmt.Errorf("read xml: root is <%s>, want <%s>", root.Tag, rootTag)
	}

	return root, nil
}

// Write serializes el as an indented XML document.
func Write(w io.Writer, el *etree.Element) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(el.Copy())
	doc.Indent(2)

	_, err := doc.WriteTo(w)

	return err
}
