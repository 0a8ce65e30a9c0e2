package config

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/stateful/triptych/pkg/document"
)

const FilterTypeBlock = "FILTER_TYPE_BLOCK"

type Filter struct {
	Type      string `yaml:"type" validate:"required,oneof=FILTER_TYPE_BLOCK"`
	Condition string `yaml:"condition" validate:"required"`

	once       sync.Once
	program    *vm.Program
	compileErr error
}

// FilterBlockEnv is the environment a block is converted to before
// evaluating a filter.
//
// The `expr` tag is used to map the field to the corresponding variable.
// Without it, all variables start with capitalized letters.
type FilterBlockEnv struct {
	ID       string `expr:"id"`
	Type     string `expr:"type"`
	Index    int    `expr:"index"`
	Depth    int    `expr:"depth"`
	Level    int    `expr:"level"`
	Language string `expr:"language"`
	Caption  string `expr:"caption"`
	Content  string `expr:"content"`
}

// NewFilterBlockEnv describes the block at the given flattened index
// and nesting depth.
func NewFilterBlockEnv(b *document.Block, index, depth int) FilterBlockEnv {
	return FilterBlockEnv{
		ID:       b.ID,
		Type:     string(b.Type),
		Index:    index,
		Depth:    depth,
		Level:    b.Level,
		Language: b.Language,
		Caption:  b.Attrs.Caption,
		Content:  b.Content,
	}
}

// Compile checks the condition against [FilterBlockEnv]. Evaluate
// compiles lazily, so calling Compile first is optional.
func (f *Filter) Compile() error {
	f.once.Do(func() {
		program, err := expr.Compile(
			f.Condition,
			expr.Env(FilterBlockEnv{}),
			expr.AsBool(),
		)
		f.program, f.compileErr = program, errors.Wrap(err, "failed to compile filter program")
	})
	return f.compileErr
}

func (f *Filter) Evaluate(env FilterBlockEnv) (bool, error) {
	if err := f.Compile(); err != nil {
		return false, err
	}

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, errors.Wrap(err, "failed to run filter program")
	}
	return result.(bool), nil
}

// MatchAll reports whether env passes every filter.
func MatchAll(filters []*Filter, env FilterBlockEnv) (bool, error) {
	for _, f := range filters {
		ok, err := f.Evaluate(env)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
