package structaccess

import (
	"reflect"
	"sync"

	"rulemapper/internal/match"
)

// TagKey is the struct tag that renames a field for rule paths.
// `conv:"-"` hides a field from rule paths.
const TagKey = "conv"

// FieldInfo describes an exported, visible struct field.
type FieldInfo struct {
	Name     string            // Go field name
	Tag      reflect.StructTag // Raw struct tag
	Type     reflect.Type      // Field type
	Embedded bool              // Whether the field is embedded (anonymous)
	Index    []int             // Index sequence for reflect.Value.FieldByIndex
}

// TagName returns the name part of the tag key, or "" if absent.
func (f *FieldInfo) TagName(key string) string {
	tag := f.Tag.Get(key)
	if tag == "" || tag == "-" {
		return ""
	}

	// Parse first part before comma
	for i := range len(tag) {
		if tag[i] == ',' {
			return tag[:i]
		}
	}

	return tag
}

// JSONName returns the JSON tag name if present, otherwise the field name.
func (f *FieldInfo) JSONName() string {
	if name := f.TagName("json"); name != "" {
		return name
	}

	return f.Name
}

// Hidden reports whether the field opted out of rule paths.
func (f *FieldInfo) Hidden() bool {
	return f.Tag.Get(TagKey) == "-"
}

// typeFields indexes the fields of one struct type by every name a rule
// path may use for them.
type typeFields struct {
	byTag  map[string]*FieldInfo
	byJSON map[string]*FieldInfo
	byName map[string]*FieldInfo
	names  []string
	fields []FieldInfo
}

var cache sync.Map // reflect.Type -> *typeFields

// Fields returns the exported, visible fields of struct type t, including
// fields promoted from embedded structs.
func Fields(t reflect.Type) []FieldInfo {
	return fieldsOf(t).fields
}

func fieldsOf(t reflect.Type) *typeFields {
	if tf, ok := cache.Load(t); ok {
		return tf.(*typeFields) //nolint:forcetypeassert
	}

	tf := &typeFields{
		byTag:  map[string]*FieldInfo{},
		byJSON: map[string]*FieldInfo{},
		byName: map[string]*FieldInfo{},
	}

	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() {
			continue
		}

		tf.fields = append(tf.fields, FieldInfo{
			Name:     sf.Name,
			Tag:      sf.Tag,
			Type:     sf.Type,
			Embedded: sf.Anonymous,
			Index:    sf.Index,
		})
	}

	for i := range tf.fields {
		f := &tf.fields[i]
		if f.Hidden() {
			continue
		}

		if name := f.TagName(TagKey); name != "" {
			tf.byTag[name] = f
		}

		if name := f.TagName("json"); name != "" {
			tf.byJSON[name] = f
		}

		// Promoted fields never shadow a shallower field of the same name.
		if prev, ok := tf.byName[f.Name]; !ok || len(prev.Index) > len(f.Index) {
			tf.byName[f.Name] = f
		}

		tf.names = append(tf.names, f.Name)
	}

	actual, _ := cache.LoadOrStore(t, tf)

	return actual.(*typeFields) //nolint:forcetypeassert
}

// lookup finds a field by conv tag, json tag, Go name, and finally by the
// normalized Go name, so "customer_id" finds CustomerID.
func (tf *typeFields) lookup(key string) (*FieldInfo, bool) {
	if f, ok := tf.byTag[key]; ok {
		return f, true
	}

	if f, ok := tf.byJSON[key]; ok {
		return f, true
	}

	if f, ok := tf.byName[key]; ok {
		return f, true
	}

	if name, ok := match.FindNormalized(key, tf.names); ok {
		return tf.byName[name], true
	}

	return nil, false
}
