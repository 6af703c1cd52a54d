package model

import (
	"sort"

	"github.com/vango-dev/livemodel/pkg/mode"
)

// Base gives a composition builder access to one base model: its template
// and its methods, run against the composed model.
type Base struct {
	props  Props
	target **Model
}

// Bases maps base names to their accessors.
type Bases map[string]*Base

// Props returns a copy of the base template.
func (b *Base) Props() Props {
	out := make(Props, len(b.props))
	for k, v := range b.props {
		out[k] = v
	}
	return out
}

// Call runs the base implementation of method against the composed model.
// It panics with ErrBaseOutsideBuilder while the builder is still running
// and with ErrInvalidBaseMethod when the base has no such method.
func (b *Base) Call(method string, args ...any) any {
	target := *b.target
	if target == nil {
		fail(ErrBaseOutsideBuilder, "base method %s called before the model exists", method)
	}
	fn, ok := asMethod(b.props[method])
	if !ok {
		fail(ErrInvalidBaseMethod, "%s", method)
	}
	return target.Call(fn, args...)
}

func baseProps(v any) Props {
	switch x := v.(type) {
	case *Model:
		return x.template
	case Def:
		return x.Props
	case Props:
		return x
	case map[string]any:
		return Props(x)
	}
	fail(ErrInvalidProps, "cannot use %T as a base", v)
	return nil
}

// Compose builds a model from named bases. builder receives an accessor per
// base and returns the definition of the composed model; its methods may
// call base implementations through Base.Call.
func Compose(bases map[string]any, builder func(b Bases) Def) *Model {
	var target *Model
	accessors := make(Bases, len(bases))

	names := make([]string, 0, len(bases))
	for name := range bases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		accessors[name] = &Base{props: baseProps(bases[name]), target: &target}
	}

	def := builder(accessors)
	return build(def, nil, func(m *Model) { target = m })
}

// Clone builds a fresh, independent model from the same definition.
func (m *Model) Clone() *Model {
	return New(m.def)
}

// Extend builds a new model whose template is m's template with props
// merged over it. Hooks are inherited.
func (m *Model) Extend(props Props) *Model {
	def := m.def
	def.Props = mergeProps(m.template, props)
	return New(def)
}

// ExtendDef builds a new model from m's definition overlaid with def.
// Props, Fields and Meta are merged key by key; non-nil hooks in def
// replace m's.
func (m *Model) ExtendDef(def Def) *Model {
	return New(overlay(m.def, def))
}

// ExtendWith builds a new model through a builder that can reach m's
// template and call m's method implementations on the new model.
func (m *Model) ExtendWith(builder func(base *Base) Def) *Model {
	return Compose(map[string]any{"base": m}, func(b Bases) Def {
		return builder(b["base"])
	})
}

// ExtendSync builds a model from selector's projection of m plus props,
// and keeps it synced from m. md, when non-nil, wraps the sync handler.
func (m *Model) ExtendSync(props Props, selector func(src *Model) Data, md mode.Mode) *Model {
	initial := make(Props)
	for k, v := range selector(m) {
		initial[k] = v
	}
	child := Create(mergeProps(initial, props))
	child.Sync(m, selector, md)
	return child
}

func mergeProps(base, over Props) Props {
	out := make(Props, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func overlay(base, over Def) Def {
	out := base
	out.Props = mergeProps(base.Props, over.Props)

	if len(over.Fields) > 0 {
		out.Fields = make(map[string]FieldHooks, len(base.Fields)+len(over.Fields))
		for k, v := range base.Fields {
			out.Fields[k] = v
		}
		for k, v := range over.Fields {
			out.Fields[k] = v
		}
	}
	if len(over.Meta) > 0 {
		out.Meta = make(map[string]mode.Mode, len(base.Meta)+len(over.Meta))
		for k, v := range base.Meta {
			out.Meta[k] = v
		}
		for k, v := range over.Meta {
			out.Meta[k] = v
		}
	}
	if over.OnCreate != nil {
		out.OnCreate = over.OnCreate
	}
	if over.OnInit != nil {
		out.OnInit = over.OnInit
	}
	if over.OnChange != nil {
		out.OnChange = over.OnChange
	}
	if over.ValidateAll != nil {
		out.ValidateAll = over.ValidateAll
	}
	if over.OnStateChange != nil {
		out.OnStateChange = over.OnStateChange
	}
	if over.Key != "" {
		out.Key = over.Key
	}
	if over.KeyCompare != nil {
		out.KeyCompare = over.KeyCompare
	}
	return out
}
