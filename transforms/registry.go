// Package transforms holds named transforms and factories that rule files
// refer to by name.
package transforms

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"rulemapper/convert"
	"rulemapper/internal/common"
	"rulemapper/internal/match"
)

var (
	ErrUnknownTransform = errors.New("unknown transform")
	ErrUnknownFactory   = errors.New("unknown factory")
	ErrInvalidExpr      = errors.New("invalid expression")
)

// Registry maps names to transform and factory value rules.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]convert.ValueRule
	factories  map[string]convert.ValueRule
	programs   map[string]*vm.Program
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transforms: make(map[string]convert.ValueRule),
		factories:  make(map[string]convert.ValueRule),
		programs:   make(map[string]*vm.Program),
	}
}

// Add registers a transform under name, replacing any previous one.
func (r *Registry) Add(name string, fn convert.TransformFunc) {
	r.put(name, convert.Transform(fn).Named(name))
}

// AddFactory registers a factory under name, replacing any previous one.
func (r *Registry) AddFactory(name string, fn convert.FactoryFunc) {
	r.put(name, convert.Factory(fn).Named(name))
}

// AddFunc registers a typed Go function (see convert.Func). Zero-argument
// functions become factories, one-argument functions become transforms.
func (r *Registry) AddFunc(name string, fn any) error {
	vr := convert.Func(fn)

	err := vr.Err()
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	r.put(name, vr.Named(name))

	return nil
}

func (r *Registry) put(name string, vr convert.ValueRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// compiled expressions bind the functions known at compile time
	clear(r.programs)

	if vr.Kind() == convert.KindFactoryDefault {
		r.factories[name] = vr
		return
	}

	r.transforms[name] = vr
}

// Transform returns the transform registered under name.
func (r *Registry) Transform(name string) (convert.ValueRule, error) {
	r.mu.RLock()
	vr, ok := r.transforms[name]
	r.mu.RUnlock()

	if !ok {
		return convert.ValueRule{}, unknown(ErrUnknownTransform, name, r.Names())
	}

	return vr, nil
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (convert.ValueRule, error) {
	r.mu.RLock()
	vr, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return convert.ValueRule{}, unknown(ErrUnknownFactory, name, r.FactoryNames())
	}

	return vr, nil
}

// Has returns true if a transform with the given name exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.transforms[name]

	return exists
}

// HasFactory returns true if a factory with the given name exists.
func (r *Registry) HasFactory(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]

	return exists
}

// Names returns all transform names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.transforms)
}

// FactoryNames returns all factory names, sorted.
func (r *Registry) FactoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.factories)
}

// Expr compiles an expression into a transform. The source value is bound
// to `value`; every registered transform is callable by name as a function
// of one argument, e.g. `upper(trim(value))`. Compiled programs are cached.
func (r *Registry) Expr(source string) (convert.ValueRule, error) {
	program, err := r.compile(source)
	if err != nil {
		return convert.ValueRule{}, err
	}

	return convert.Transform(func(v any) (any, error) {
		return expr.Run(program, map[string]any{"value": v})
	}).Named("expr(" + source + ")"), nil
}

func (r *Registry) compile(source string) (*vm.Program, error) {
	r.mu.RLock()
	program, ok := r.programs[source]
	r.mu.RUnlock()

	if ok {
		return program, nil
	}

	opts := []expr.Option{expr.Env(map[string]any{"value": nil})}

	r.mu.RLock()
	for name, vr := range r.transforms {
		opts = append(opts, expr.Function(name, exprFunc(name, vr)))
	}
	r.mu.RUnlock()

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidExpr, source, err)
	}

	r.mu.Lock()
	r.programs[source] = program
	r.mu.Unlock()

	return program, nil
}

func exprFunc(name string, vr convert.ValueRule) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s requires 1 argument", name)
		}

		return convert.Apply(vr, params[0])
	}
}

func unknown(kind error, name string, known []string) error {
	suggestions := match.Suggest(name, known, match.DefaultSuggestions)
	if common.IsEmpty(suggestions) {
		return fmt.Errorf("%w %q", kind, name)
	}

	return fmt.Errorf("%w %q (did you mean %s?)", kind, name, common.QuoteList(suggestions))
}

func sortedKeys(m map[string]convert.ValueRule) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
