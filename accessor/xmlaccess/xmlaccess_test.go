package xmlaccess_test

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulemapper/accessor/mapaccess"
	"rulemapper/accessor/xmlaccess"
	"rulemapper/convert"
	"rulemapper/fieldpath"
)

const orderXML = `<order id="7"><customer><name>Ann</name></customer>` +
	`<item sku="A">2</item><item sku="B">5</item>` +
	`<tag>a</tag><tag>b</tag><note/></order>`

func readOrder(t *testing.T) *etree.Element {
	t.Helper()

	root, err := xmlaccess.ReadRoot(strings.NewReader(orderXML), "order")
	require.NoError(t, err)

	return root
}

func TestGet(t *testing.T) {
	acc := xmlaccess.New("order")
	root := readOrder(t)

	get := func(obj any, key string) (any, bool) {
		t.Helper()

		v, ok, err := acc.Get(obj, key)
		require.NoError(t, err)

		return v, ok
	}

	v, ok := get(root, "@id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	customer, ok := get(root, "customer")
	require.True(t, ok)
	require.IsType(t, &etree.Element{}, customer)

	v, _ = get(customer, "name")
	assert.Equal(t, "Ann", v)

	v, _ = get(root, "tag")
	assert.Equal(t, []any{"a", "b"}, v)

	items, _ := get(root, "item")
	require.Len(t, items, 2)

	second, _ := get(items, "1")
	v, _ = get(second, "@sku")
	assert.Equal(t, "B", v)

	v, _ = get(second, xmlaccess.TextKey)
	assert.Equal(t, "5", v)

	v, ok = get(root, "note")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = get(root, "missing")
	assert.False(t, ok)

	_, ok = get(root, "@missing")
	assert.False(t, ok)

	_, ok = get("text", "child")
	assert.False(t, ok)

	_, _, err := acc.Get(42, "x")
	assert.Error(t, err)
}

func TestSetAndWrite(t *testing.T) {
	acc := xmlaccess.New("invoice")

	obj, err := acc.NewEmpty()
	require.NoError(t, err)

	raw := etree.NewElement("anything")
	raw.CreateAttr("kind", "raw")

	set := func(path string, value any) {
		t.Helper()
		require.NoError(t, acc.Set(obj, fieldpath.MustParse(path), value))
	}

	set("number", 7)
	set("customer.name", "Ann")
	set("@version", "2")
	set("lines", []any{"a", "b"})
	set("meta", map[string]any{"b": 1, "a": "x"})
	set("raw", raw)
	set("number", 8)

	var buf bytes.Buffer
	require.NoError(t, xmlaccess.Write(&buf, obj.(*etree.Element)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<invoice version="2">`)
	assert.Contains(t, out, `<meta>`)
	assert.Contains(t, out, `<raw kind="raw"/>`)
	assert.Equal(t, 1, strings.Count(out, "<number>"), "last write replaces")

	back, err := xmlaccess.ReadRoot(&buf, "invoice")
	require.NoError(t, err)

	v, _, _ := acc.Get(back, "number")
	assert.Equal(t, "8", v)

	v, _, _ = acc.Get(back, "lines")
	assert.Equal(t, []any{"a", "b"}, v)

	meta, _, _ := acc.Get(back, "meta")
	require.IsType(t, &etree.Element{}, meta)

	children := meta.(*etree.Element).ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Tag, "map keys are written in order")
}

func TestSetErrors(t *testing.T) {
	acc := xmlaccess.New("x")
	el := etree.NewElement("x")

	assert.Error(t, acc.Set(map[string]any{}, fieldpath.MustParse("a"), 1))
	assert.Error(t, acc.Set(el, fieldpath.MustParse("@a.b"), 1))
	assert.Error(t, acc.Set(el, fieldpath.Path{}, 1))
}

func TestCDATA(t *testing.T) {
	acc := xmlaccess.New("x", xmlaccess.WithCDATA())
	el := etree.NewElement("x")

	require.NoError(t, acc.Set(el, fieldpath.MustParse("body"), "<b>bold</b>"))

	var buf bytes.Buffer
	require.NoError(t, xmlaccess.Write(&buf, el))
	assert.Contains(t, buf.String(), "<![CDATA[<b>bold</b>]]>")
}

func TestReadRootErrors(t *testing.T) {
	_, err := xmlaccess.ReadRoot(strings.NewReader(orderXML), "invoice")
	assert.ErrorContains(t, err, "want <invoice>")

	_, err = xmlaccess.ReadRoot(strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestConvertXMLToMap(t *testing.T) {
	item := convert.MustDeclare("Item", xmlaccess.New("item"), mapaccess.New(), []convert.Entry{
		convert.E("sku", "@sku"),
		convert.E("qty", xmlaccess.TextKey, convert.Func(func(s string) (int, error) {
			return strconv.Atoi(s)
		})),
	})

	order := convert.MustDeclare("Order", xmlaccess.New("order"), mapaccess.New(), []convert.Entry{
		convert.E("id", "@id"),
		convert.E("customer", "customer.name"),
		convert.E("items", "item", convert.NestedMany(item)),
		convert.E("tags", "tag"),
	})

	out, err := convert.Convert(order, readOrder(t))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"id":       "7",
		"customer": "Ann",
		"items": []any{
			map[string]any{"sku": "A", "qty": 2},
			map[string]any{"sku": "B", "qty": 5},
		},
		"tags": []any{"a", "b"},
	}, out)
}

func TestConvertMapToXML(t *testing.T) {
	d := convert.MustDeclare("Invoice", mapaccess.New(), xmlaccess.New("invoice"), []convert.Entry{
		convert.E("@id", "id"),
		convert.E("customer.name", "buyer"),
		convert.E("line", "lines"),
	})

	out, err := convert.Convert(d, map[string]any{"id": 3, "buyer": "Bob", "lines": []any{"x", "y"}})
	require.NoError(t, err)

	el := out.(*etree.Element)
	assert.Equal(t, "invoice", el.Tag)
	assert.Equal(t, "3", el.SelectAttrValue("id", ""))
	assert.Equal(t, "Bob", el.FindElement("customer/name").Text())
	assert.Len(t, el.SelectElements("line"), 2)
}
