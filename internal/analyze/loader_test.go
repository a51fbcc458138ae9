package analyze

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

const ordersPkg = "rulemapper/examples/orders"

const shopSrc = `package shop

type Status string

type Audit struct {
	CreatedBy string ` + "`json:\"created_by\"`" + `
}

type Order struct {
	Audit
	ID       int64   ` + "`json:\"id\"`" + `
	Ref      string  ` + "`conv:\"reference\" json:\"ref\"`" + `
	Secret   string  ` + "`conv:\"-\"`" + `
	Status   Status
	Items    []*Item
	Tags     map[string]string
	Parent   *Order
	internal int
}

type Item struct {
	SKU string ` + "`json:\"sku,omitempty\"`" + `
}

type Alias = Item
`

// loadSource type-checks src and feeds it through the analyzer the way
// LoadPackages does.
func loadSource(t *testing.T, src string) *Analyzer {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "shop.go", src, 0)
	require.NoError(t, err)

	pkg, err := (&types.Config{}).Check("example.com/shop", fset, []*ast.File{file}, nil)
	require.NoError(t, err)

	a := NewAnalyzer()
	a.graph.Packages[pkg.Path()] = &PackageInfo{Path: pkg.Path(), Name: pkg.Name()}
	a.processPackage(&packages.Package{PkgPath: pkg.Path(), Name: pkg.Name(), Types: pkg})

	return a
}

func TestAnalyzer_LoadPackages(t *testing.T) {
	analyzer := NewAnalyzer()
	graph, err := analyzer.LoadPackages(ordersPkg)
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Contains(t, graph.Packages, ordersPkg)

	order, err := analyzer.Struct(TypeID{PkgPath: ordersPkg, Name: "StoreOrder"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer_id", "status", "total_cents", "items", "customer", "ordered_at"}, order.Keys())

	items, ok := order.Field("items")
	require.True(t, ok)
	assert.True(t, items.Type.IsList())
	assert.Equal(t, "StoreItem", TypeString(items.Type.ElemType))

	orderedAt, ok := order.Field("ordered_at")
	require.True(t, ok)
	assert.Equal(t, TypeKindExternal, orderedAt.Type.Kind)
	assert.Equal(t, "time.Time", TypeString(orderedAt.Type))

	customer, ok := order.Field("customer")
	require.True(t, ok)
	assert.Equal(t, TypeKindPointer, customer.Type.Kind)
	assert.Equal(t, TypeKindStruct, customer.Type.Deref().Kind)
}

func TestAnalyzer_LoadStruct(t *testing.T) {
	a := NewAnalyzer()
	a.Dir = "../../examples"

	line, err := a.LoadStruct("./orders.ShipmentLine")
	require.NoError(t, err)
	assert.Equal(t, TypeID{PkgPath: ordersPkg, Name: "ShipmentLine"}, line.ID)

	_, err = a.LoadStruct("./orders.Status")
	assert.ErrorIs(t, err, ErrNotStruct)

	_, err = a.LoadStruct("ShipmentLine")
	assert.Error(t, err)
}

func TestAnalyzer_LoadPackagesError(t *testing.T) {
	_, err := NewAnalyzer().LoadPackages("rulemapper/examples/missing")
	assert.Error(t, err)
}

func TestAnalyzer_Struct(t *testing.T) {
	a := loadSource(t, shopSrc)

	_, err := a.Struct(TypeID{PkgPath: "example.com/shop", Name: "Ordr"})
	require.ErrorIs(t, err, ErrTypeNotFound)
	assert.Contains(t, err.Error(), `did you mean "Order"`)

	_, err = a.Struct(TypeID{PkgPath: "example.com/shop", Name: "Status"})
	require.ErrorIs(t, err, ErrNotStruct)
	assert.Contains(t, err.Error(), "alias")

	alias, err := a.Struct(TypeID{PkgPath: "example.com/shop", Name: "Alias"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku"}, alias.Keys())
}

func TestAnalyzer_Fields(t *testing.T) {
	a := loadSource(t, shopSrc)

	order, err := a.Struct(TypeID{PkgPath: "example.com/shop", Name: "Order"})
	require.NoError(t, err)

	// embedded fields are promoted, hidden and unexported ones dropped
	assert.Equal(t, []string{"created_by", "id", "reference", "Status", "Items", "Tags", "Parent"}, order.Keys())

	createdBy, ok := order.Field("created_by")
	require.True(t, ok)
	assert.True(t, createdBy.Embedded)
	assert.Equal(t, []int{0, 0}, createdBy.Index)

	status, _ := order.Field("Status")
	assert.Equal(t, TypeKindAlias, status.Type.Kind)
	assert.Equal(t, TypeKindBasic, status.Type.Deref().Kind)

	items, _ := order.Field("Items")
	assert.Equal(t, "[]*Item", TypeString(items.Type))
	assert.Equal(t, TypeKindStruct, items.Type.ElemType.Deref().Kind)

	tags, _ := order.Field("Tags")
	assert.Equal(t, TypeKindMap, tags.Type.Kind)

	// recursive types resolve to the same TypeInfo
	parent, _ := order.Field("Parent")
	assert.Same(t, order, parent.Type.Deref())
}

func TestParseTypeID(t *testing.T) {
	id, err := ParseTypeID("rulemapper/examples/orders.StoreOrder")
	require.NoError(t, err)
	assert.Equal(t, TypeID{PkgPath: ordersPkg, Name: "StoreOrder"}, id)
	assert.Equal(t, "rulemapper/examples/orders.StoreOrder", id.String())

	id, err = ParseTypeID("example.com/shop.Order")
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", id.PkgPath)

	for _, bad := range []string{"Order", ".Order", "shop.", "example.com/.Order", "example.com/shop"} {
		_, err = ParseTypeID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTypeKind_String(t *testing.T) {
	assert.Equal(t, "basic", TypeKindBasic.String())
	assert.Equal(t, "struct", TypeKindStruct.String())
	assert.Equal(t, "map", TypeKindMap.String())
	assert.Equal(t, "external", TypeKindExternal.String())
	assert.Equal(t, "unknown", TypeKindUnknown.String())
}

func TestFieldInfo_Key(t *testing.T) {
	f1 := FieldInfo{Name: "MyField", Tag: `json:"my_field,omitempty"`}
	assert.Equal(t, "my_field", f1.Key())

	f2 := FieldInfo{Name: "MyField", Tag: `conv:"mine" json:"my_field"`}
	assert.Equal(t, "mine", f2.Key())
	assert.Equal(t, "my_field", f2.JSONName())

	f3 := FieldInfo{Name: "MyField", Tag: `json:"-"`}
	assert.Equal(t, "MyField", f3.Key())

	f4 := FieldInfo{Name: "MyField", Tag: `conv:"-"`}
	assert.True(t, f4.Hidden())
}

func TestTypePath(t *testing.T) {
	p := NewTypePath("Shipment").Field("lines").Slice().Field("qty")
	assert.Equal(t, "Shipment.lines[].qty", p.String())
}
