package analyze

import (
	"errors"
	"fmt"
	"go/types"
	"reflect"

	"golang.org/x/tools/go/packages"

	"rulemapper/internal/common"
	"rulemapper/internal/match"
)

// LoadMode specifies what information to load from packages.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports

// Analyzer loads Go packages and builds a type graph.
type Analyzer struct {
	// Dir is the directory package patterns are resolved in; empty means
	// the current directory.
	Dir string

	graph     *TypeGraph
	typeCache map[types.Type]*TypeInfo // Cache to handle recursive types
	roots     map[string][]string      // pattern -> loaded import paths
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		graph:     NewTypeGraph(),
		typeCache: make(map[types.Type]*TypeInfo),
		roots:     make(map[string][]string),
	}
}

// Graph returns the types loaded so far.
func (a *Analyzer) Graph() *TypeGraph {
	return a.graph
}

// LoadPackages loads the given packages and adds their types to the graph.
// Patterns are standard Go package patterns (e.g., "./orders", "example.com/shop").
func (a *Analyzer) LoadPackages(patterns ...string) (*TypeGraph, error) {
	_, err := a.load(patterns...)
	if err != nil {
		return nil, err
	}

	return a.graph, nil
}

// LoadStruct loads the package of a qualified type name and returns the
// struct. The package part may be an import path or a relative directory
// such as "./store".
func (a *Analyzer) LoadStruct(qualified string) (*TypeInfo, error) {
	id, err := ParseTypeID(qualified)
	if err != nil {
		return nil, err
	}

	roots, ok := a.roots[id.PkgPath]
	if !ok {
		roots, err = a.load(id.PkgPath)
		if err != nil {
			return nil, err
		}

		a.roots[id.PkgPath] = roots
	}

	if len(roots) != 1 {
		return nil, fmt.Errorf("%s: expected one package, got %d", id.PkgPath, len(roots))
	}

	id.PkgPath = roots[0]

	return a.Struct(id)
}

// load runs packages.Load and returns the import paths of the root packages.
func (a *Analyzer) load(patterns ...string) ([]string, error) {
	cfg := &packages.Config{
		Mode: LoadMode,
		Dir:  a.Dir,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []error

	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
	})

	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors: %w", errors.Join(errs...))
	}

	roots := make([]string, 0, len(pkgs))

	// register every root first so isExternalPackage sees the full set
	for _, pkg := range pkgs {
		a.graph.Packages[pkg.PkgPath] = &PackageInfo{Path: pkg.PkgPath, Name: pkg.Name}
		roots = append(roots, pkg.PkgPath)
	}

	for _, pkg := range pkgs {
		a.processPackage(pkg)
	}

	return roots, nil
}

// processPackage extracts exported named types from a package.
func (a *Analyzer) processPackage(pkg *packages.Package) {
	pkgInfo := a.graph.Packages[pkg.PkgPath]

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		typeName, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || !typeName.Exported() {
			continue
		}

		typeID := TypeID{PkgPath: pkg.PkgPath, Name: name}

		typeInfo := a.analyzeType(typeName.Type())
		typeInfo.ID = typeID

		a.graph.Types[typeID] = typeInfo
		pkgInfo.Types = append(pkgInfo.Types, typeID)
	}
}

// analyzeType recursively analyzes a go/types.Type and returns a TypeInfo.
func (a *Analyzer) analyzeType(t types.Type) *TypeInfo {
	if cached, ok := a.typeCache[t]; ok {
		return cached
	}

	info := &TypeInfo{
		GoType: t,
	}

	// Pre-cache to handle recursive types (we'll fill in details)
	a.typeCache[t] = info

	switch tt := t.(type) {
	case *types.Named:
		a.analyzeNamedType(tt, info)

	case *types.Alias:
		resolved := a.analyzeType(types.Unalias(tt))
		*info = *resolved

	case *types.Basic:
		info.Kind = TypeKindBasic

	case *types.Pointer:
		info.Kind = TypeKindPointer
		info.ElemType = a.analyzeType(tt.Elem())

	case *types.Slice:
		info.Kind = TypeKindSlice
		info.ElemType = a.analyzeType(tt.Elem())

	case *types.Array:
		info.Kind = TypeKindArray
		info.ElemType = a.analyzeType(tt.Elem())

	case *types.Map:
		info.Kind = TypeKindMap

	case *types.Struct:
		info.Kind = TypeKindStruct
		a.analyzeStructFields(tt, info, nil)

	default:
		// interfaces, channels, funcs
		info.Kind = TypeKindUnknown
	}

	return info
}

// analyzeNamedType analyzes a named type.
func (a *Analyzer) analyzeNamedType(named *types.Named, info *TypeInfo) {
	obj := named.Obj()
	if obj.Pkg() != nil {
		info.ID = TypeID{PkgPath: obj.Pkg().Path(), Name: obj.Name()}
	} else {
		info.ID = TypeID{Name: obj.Name()} // universe types such as error
	}

	switch ut := named.Underlying().(type) {
	case *types.Struct:
		if a.isExternalPackage(info.ID.PkgPath) {
			// time.Time and friends are opaque values, not records
			info.Kind = TypeKindExternal
			return
		}

		info.Kind = TypeKindStruct
		a.analyzeStructFields(ut, info, nil)

	case *types.Basic:
		// e.g. type OrderStatus string
		info.Kind = TypeKindAlias
		info.Underlying = a.analyzeType(ut)

	default:
		if a.isExternalPackage(info.ID.PkgPath) {
			info.Kind = TypeKindExternal
		} else {
			info.Kind = TypeKindAlias
			info.Underlying = a.analyzeType(ut)
		}
	}
}

// isExternalPackage returns true if the package is not in our analyzed set.
func (a *Analyzer) isExternalPackage(pkgPath string) bool {
	_, ok := a.graph.Packages[pkgPath]
	return !ok
}

// analyzeStructFields extracts visible fields from a struct type. Untagged
// embedded structs contribute their fields the way encoding/json promotes them.
func (a *Analyzer) analyzeStructFields(st *types.Struct, info *TypeInfo, prefix []int) {
	for i := range st.NumFields() {
		field := st.Field(i)
		if !field.Exported() {
			continue
		}

		fieldInfo := FieldInfo{
			Name:     field.Name(),
			Type:     a.analyzeType(field.Type()),
			Tag:      reflect.StructTag(st.Tag(i)),
			Embedded: len(prefix) > 0,
			Index:    append(append([]int{}, prefix...), i),
		}

		if fieldInfo.Hidden() {
			continue
		}

		if field.Embedded() && fieldInfo.TagName("json") == "" {
			if inner, ok := field.Type().Underlying().(*types.Struct); ok {
				a.analyzeStructFields(inner, info, fieldInfo.Index)
				continue
			}

			if ptr, ok := field.Type().Underlying().(*types.Pointer); ok {
				if inner, ok := ptr.Elem().Underlying().(*types.Struct); ok {
					a.analyzeStructFields(inner, info, fieldInfo.Index)
					continue
				}
			}
		}

		info.Fields = append(info.Fields, fieldInfo)
	}
}

// Struct returns the loaded struct type identified by id.
func (a *Analyzer) Struct(id TypeID) (*TypeInfo, error) {
	info := a.graph.GetType(id)
	if info == nil {
		err := fmt.Errorf("%w: %s", ErrTypeNotFound, id)

		if pkg, ok := a.graph.Packages[id.PkgPath]; ok {
			names := make([]string, 0, len(pkg.Types))
			for _, t := range pkg.Types {
				names = append(names, t.Name)
			}

			if s := match.Suggest(id.Name, names, match.DefaultSuggestions); len(s) > 0 {
				err = fmt.Errorf("%w (did you mean %s?)", err, common.QuoteList(s))
			}
		}

		return nil, err
	}

	if info.Kind != TypeKindStruct {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotStruct, id, info.Kind)
	}

	return info, nil
}
