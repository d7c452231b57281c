package nanocol

import (
	"strings"

	"github.com/samber/lo"
)

// nestedProperty is a registered virtual accessor (spec.md §6
// "nestedProperties"): a name plus the path segments it reads through. When
// any intermediate segment lands on a list, resolution flattens across every
// element instead of failing.
type nestedProperty struct {
	name string
	path []string
}

// newNestedProperty splits "a.b.c" into its segments, or uses path if given explicitly
func newNestedProperty(name string, path []string) nestedProperty {
	if len(path) == 0 {
		path = strings.Split(name, ".")
	}
	return nestedProperty{name: name, path: path}
}

// resolve walks doc's value through the registered path, returning a scalar
// when every intermediate segment is a single object, or a flattened list
// when any intermediate segment traverses a list.
func (n nestedProperty) resolve(doc *Document) any {
	root := map[string]any(doc.Value())
	return resolveSegments(root, n.path)
}

func resolveSegments(current any, path []string) any {
	if len(path) == 0 {
		return current
	}
	seg := path[0]
	rest := path[1:]
	switch v := current.(type) {
	case map[string]any:
		return resolveSegments(v[seg], rest)
	case []any:
		var out []any
		for _, elem := range v {
			resolved := resolveSegments(elem, path)
			if list, ok := resolved.([]any); ok {
				out = append(out, list...)
			} else {
				out = append(out, resolved)
			}
		}
		return out
	default:
		return nil
	}
}

// resolveAll applies every registered nested property to doc, returning a
// name -> resolved value map suitable for merging into a projection.
func resolveAll(doc *Document, props []nestedProperty) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		out[p.name] = p.resolve(doc)
	}
	return out
}

// registeredNames returns the names of every nested property, used by
// serialization to round-trip the registration list.
func registeredNames(props []nestedProperty) []string {
	return lo.Map(props, func(p nestedProperty, _ int) string { return p.name })
}

func findNestedProperty(props []nestedProperty, name string) (nestedProperty, bool) {
	for _, p := range props {
		if p.name == name {
			return p, true
		}
	}
	return nestedProperty{}, false
}

// NestedValue resolves a registered virtual accessor by name against doc,
// returning the resolved value and whether name names a registered property.
func (c *Collection) NestedValue(name string, doc *Document) (any, bool) {
	p, ok := findNestedProperty(c.opts.nestedProperties, name)
	if !ok {
		return nil, false
	}
	return p.resolve(doc), true
}

// NestedValues resolves every registered nested property against doc.
func (c *Collection) NestedValues(doc *Document) map[string]any {
	return resolveAll(doc, c.opts.nestedProperties)
}
