package il

import "fmt"

// TypeKind enumerates the primitive and composite kinds of the accepted
// type system subset.
type TypeKind uint8

const (
	KindVoid TypeKind = iota
	KindBool
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindArray // array of a primitive element kind
	KindRef   // non polymorphic struct or class reference
)

// Type describes a parameter, local, field or array element type.
type Type struct {
	Kind TypeKind
	Elem TypeKind // element kind for KindArray
	Name string   // type definition name for KindRef
}

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindU8:
		return "uint8"
	case KindI8:
		return "int8"
	case KindU16:
		return "uint16"
	case KindI16:
		return "int16"
	case KindU32:
		return "uint32"
	case KindI32:
		return "int32"
	case KindArray:
		return Type{Kind: t.Elem}.String() + "[]"
	case KindRef:
		return t.Name
	default:
		return "invalid"
	}
}

// Field is a field of a type definition.
type Field struct {
	Name   string
	Type   Type
	Static bool
	Init   []byte // initializer image for static fields, optional
}

// TypeDef is a flat struct or class definition.
type TypeDef struct {
	Name      string
	ValueType bool
	Fields    []Field
}

// Param describes a method parameter or local variable slot.
type Param struct {
	Name string
	Type Type
}

// Method is a method definition with its raw body byte stream.
type Method struct {
	Owner      string
	Name       string
	Params     []Param
	Locals     []Param
	Return     Type
	MaxStack   int
	Body       []byte
	EntryPoint bool
}

// FullName returns the owner qualified method name.
func (m *Method) FullName() string {
	return m.Owner + "::" + m.Name
}

// MethodRef references a method by owner and name for call resolution.
type MethodRef struct {
	Owner      string
	Name       string
	ParamCount int
}

// FullName returns the owner qualified method name.
func (r MethodRef) FullName() string {
	return r.Owner + "::" + r.Name
}

// FieldRef references a field by owner and name.
type FieldRef struct {
	Owner string
	Name  string
}

// Metadata token tables. A token is table<<24 | index, 1-based.
const (
	tableTypeRef   = 0x01
	tableFieldRef  = 0x04
	tableMethodRef = 0x0A
	tableString    = 0x70
)

// Token constructors, used by the container writer and by tests.
func MethodToken(index int) uint32 { return tableMethodRef<<24 | uint32(index+1) }
func FieldToken(index int) uint32  { return tableFieldRef<<24 | uint32(index+1) }
func TypeToken(index int) uint32   { return tableTypeRef<<24 | uint32(index+1) }
func StringToken(index int) uint32 { return tableString<<24 | uint32(index+1) }

// Assembly is a parsed IL assembly: type and method definitions plus the
// reference tables that method body tokens index into.
type Assembly struct {
	Name string

	Types      []TypeDef
	Methods    []*Method
	MethodRefs []MethodRef
	FieldRefs  []FieldRef
	TypeRefs   []Type
	Strings    []string
}

// MethodRef resolves a method token.
func (a *Assembly) MethodRef(token uint32) (MethodRef, error) {
	index, err := tokenIndex(token, tableMethodRef, len(a.MethodRefs))
	if err != nil {
		return MethodRef{}, err
	}
	return a.MethodRefs[index], nil
}

// FieldRef resolves a field token.
func (a *Assembly) FieldRef(token uint32) (FieldRef, error) {
	index, err := tokenIndex(token, tableFieldRef, len(a.FieldRefs))
	if err != nil {
		return FieldRef{}, err
	}
	return a.FieldRefs[index], nil
}

// TypeRef resolves a type token.
func (a *Assembly) TypeRef(token uint32) (Type, error) {
	index, err := tokenIndex(token, tableTypeRef, len(a.TypeRefs))
	if err != nil {
		return Type{}, err
	}
	return a.TypeRefs[index], nil
}

// String resolves a string token.
func (a *Assembly) String(token uint32) (string, error) {
	index, err := tokenIndex(token, tableString, len(a.Strings))
	if err != nil {
		return "", err
	}
	return a.Strings[index], nil
}

// FindMethod returns the method definition matching owner and name.
func (a *Assembly) FindMethod(owner, name string) *Method {
	for _, method := range a.Methods {
		if method.Owner == owner && method.Name == name {
			return method
		}
	}
	return nil
}

// FindType returns the type definition with the given name.
func (a *Assembly) FindType(name string) *TypeDef {
	for i := range a.Types {
		if a.Types[i].Name == name {
			return &a.Types[i]
		}
	}
	return nil
}

// EntryPoint returns the entry point method of the assembly.
func (a *Assembly) EntryPoint() *Method {
	for _, method := range a.Methods {
		if method.EntryPoint {
			return method
		}
	}
	return nil
}

func tokenIndex(token uint32, table byte, count int) (int, error) {
	if byte(token>>24) != table {
		return 0, fmt.Errorf("token 0x%08x references wrong table, expected 0x%02x", token, table)
	}
	index := int(token&0xFFFFFF) - 1
	if index < 0 || index >= count {
		return 0, fmt.Errorf("token 0x%08x index out of range, table has %d entries", token, count)
	}
	return index, nil
}
