package nanocol

import (
	"github.com/dop251/goja"
	"github.com/nolandb/nanocol/errors"
	"github.com/segmentio/ksuid"
)

// Transform is a named, reusable query pipeline (spec.md §3 "Transforms"): a
// small javascript expression compiled once with goja and invoked per
// document. It is the concrete realization of the spec's otherwise-abstract
// "mapping name -> reusable query pipeline spec".
type Transform struct {
	name    string
	program *goja.Program
}

// compileTransform compiles src (a javascript expression referencing a `doc`
// variable bound to the current document's value and returning a bool or a
// projected value) into a reusable Transform.
func compileTransform(name, src string) (*Transform, error) {
	program, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, errors.TypeError("failed to compile transform %q: %v", name, err)
	}
	return &Transform{name: name, program: program}, nil
}

// run executes the transform against doc, returning the script's result value
func (t *Transform) run(doc *Document) (any, error) {
	vm := newTransformVM(doc)
	v, err := vm.RunProgram(t.program)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "transform %q failed", t.name)
	}
	return v.Export(), nil
}

// newTransformVM builds a goja runtime scoped to a single document, mirroring
// the teacher's getJavascriptVM: a fresh VM per call, with well-known globals
// bound before user script runs.
func newTransformVM(doc *Document) *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	_ = vm.Set("doc", doc.Value())
	_ = vm.Set("ksuid", func() string { return ksuid.New().String() })
	return vm
}

// compileTransforms compiles every entry in named, failing on the first bad script
func compileTransforms(named map[string]string) (map[string]*Transform, error) {
	out := make(map[string]*Transform, len(named))
	for name, src := range named {
		t, err := compileTransform(name, src)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}
