package ir

import (
	"fmt"

	"github.com/retroenv/ilgbc/internal/il"
)

// FieldInfo describes the resolved storage of a field.
type FieldInfo struct {
	Offset int
	Width  Width
	Signed bool
}

// TypeLayout is the resolved memory layout of a struct or class.
type TypeLayout struct {
	Name   string
	Size   int
	Fields map[string]FieldInfo
}

// layoutResolver maps IL types to target memory layouts. Instance fields are
// packed in declaration order without padding, the target has no alignment
// requirements.
type layoutResolver struct {
	asm   *il.Assembly
	cache map[string]*TypeLayout
}

func newLayoutResolver(asm *il.Assembly) *layoutResolver {
	return &layoutResolver{
		asm:   asm,
		cache: map[string]*TypeLayout{},
	}
}

// layout resolves the layout of a named type definition.
func (r *layoutResolver) layout(name string) (*TypeLayout, error) {
	if layout, ok := r.cache[name]; ok {
		return layout, nil
	}

	def := r.asm.FindType(name)
	if def == nil {
		return nil, fmt.Errorf("type %s is not defined", name)
	}

	layout := &TypeLayout{
		Name:   name,
		Fields: map[string]FieldInfo{},
	}
	for _, field := range def.Fields {
		if field.Static {
			continue
		}
		width, signed, err := valueWidth(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", name, field.Name, err)
		}
		layout.Fields[field.Name] = FieldInfo{
			Offset: layout.Size,
			Width:  width,
			Signed: signed,
		}
		layout.Size += width.Size()
	}

	r.cache[name] = layout
	return layout, nil
}

// staticLayout assigns offsets in the static field region to all static
// fields of the assembly and builds the initializer image.
type staticLayout struct {
	size    int
	init    []byte
	slots   map[string]FieldInfo
	hasInit bool
}

func resolveStatics(asm *il.Assembly) (*staticLayout, error) {
	statics := &staticLayout{
		slots: map[string]FieldInfo{},
	}

	for i := range asm.Types {
		def := &asm.Types[i]
		for _, field := range def.Fields {
			if !field.Static {
				continue
			}
			width, signed, err := valueWidth(field.Type)
			if err != nil {
				return nil, fmt.Errorf("static field %s.%s: %w", def.Name, field.Name, err)
			}
			info := FieldInfo{
				Offset: statics.size,
				Width:  width,
				Signed: signed,
			}
			statics.slots[def.Name+"::"+field.Name] = info
			statics.size += width.Size()

			if len(field.Init) > 0 {
				statics.hasInit = true
			}
		}
	}

	if statics.hasInit {
		statics.init = make([]byte, statics.size)
		for i := range asm.Types {
			def := &asm.Types[i]
			for _, field := range def.Fields {
				if !field.Static || len(field.Init) == 0 {
					continue
				}
				info := statics.slots[def.Name+"::"+field.Name]
				if len(field.Init) > info.Width.Size() {
					return nil, fmt.Errorf("static field %s.%s initializer exceeds field size", def.Name, field.Name)
				}
				copy(statics.init[info.Offset:], field.Init)
			}
		}
	}
	return statics, nil
}

// valueWidth maps an IL type to its operand width. References and arrays are
// 16-bit pointers on the target.
func valueWidth(t il.Type) (Width, bool, error) {
	switch t.Kind {
	case il.KindBool, il.KindU8:
		return W8, false, nil
	case il.KindI8:
		return W8, true, nil
	case il.KindU16:
		return W16, false, nil
	case il.KindI16:
		return W16, true, nil
	case il.KindU32:
		return W32, false, nil
	case il.KindI32:
		return W32, true, nil
	case il.KindArray, il.KindRef:
		return W16, false, nil
	default:
		return WNone, false, fmt.Errorf("type %s has no storable width", t)
	}
}
