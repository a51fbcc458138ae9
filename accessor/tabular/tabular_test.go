package tabular

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulemapper/accessor/mapaccess"
	"rulemapper/convert"
	"rulemapper/fieldpath"
)

func TestRow(t *testing.T) {
	r, err := NewRow([]string{"a", "b"}, []any{1, 2})
	require.NoError(t, err)

	r.Set("b", 3)
	r.Set("c", 4)

	assert.Equal(t, []string{"a", "b", "c"}, r.Columns)
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, r.Map())

	_, ok := r.Get("z")
	assert.False(t, ok)

	_, err = NewRow([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestAccessor(t *testing.T) {
	acc := New()

	obj, err := acc.NewEmpty()
	require.NoError(t, err)

	require.NoError(t, acc.Set(obj, fieldpath.MustParse("id"), 1))
	require.NoError(t, acc.Set(obj, fieldpath.MustParse("customer.name"), "Ann"))

	row := obj.(*Row)
	assert.Equal(t, []string{"id", "customer.name"}, row.Columns)

	v, ok, err := acc.Get(row, "customer.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ann", v)

	v, ok, err = acc.Get(*row, "id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok, err = acc.Get(map[string]any{"k": "v"}, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, _ = acc.Get((*Row)(nil), "id")
	assert.False(t, ok)

	assert.Error(t, acc.Set(map[string]any{}, fieldpath.MustParse("id"), 1))
	assert.Equal(t, "tabular", acc.Kind())
}

func TestCSVRoundTrip(t *testing.T) {
	in := "id,name,note\n1,Ann,\"hello, world\"\n2,Bob,\n"

	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"id": "1", "name": "Ann", "note": "hello, world"}, rows[0].Map())

	rows[1].Set("extra", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	rows[1].Set("note", nil)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	assert.Equal(t,
		"id,name,note,extra\n1,Ann,\"hello, world\",\n2,Bob,,2024-01-02T03:04:05Z\n",
		buf.String())
}

func TestReadCSVErrors(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestScanRowsFromSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (id INTEGER, customer TEXT, total REAL, note BLOB);
		INSERT INTO orders VALUES (1, 'Ann', 9.5, 'fragile'), (2, 'Bob', 3, NULL);
	`)
	require.NoError(t, err)

	rs, err := db.Query(`SELECT id, customer, total, note FROM orders ORDER BY id`)
	require.NoError(t, err)

	t.Cleanup(func() { _ = rs.Close() })

	rows, err := ScanRows(rs)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, map[string]any{"id": int64(1), "customer": "Ann", "total": 9.5, "note": "fragile"}, rows[0].Map())
	assert.Nil(t, rows[1].Map()["note"])

	d := convert.MustDeclare("OrderRow", New(), mapaccess.New(), []convert.Entry{
		convert.E("id"),
		convert.E("buyer", "customer"),
		convert.E("note", "note", convert.Default("none")),
	})

	out, err := convert.Convert(d, rows[1])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(2), "buyer": "Bob", "note": "none"}, out)
}
