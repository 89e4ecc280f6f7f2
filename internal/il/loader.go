package il

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Container format: a little endian record stream with a fixed magic.
// It carries the decoded view a full metadata reader exposes: type and
// method definitions, reference tables and string/data blobs.
var magic = [4]byte{'G', 'B', 'I', 'L'}

const containerVersion = 1

// maxStringLength bounds length prefixed strings to reject corrupt files early.
const maxStringLength = 0xFFFF

// LoadFile reads an assembly container from the given file path.
func LoadFile(path string) (*Assembly, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file '%s': %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return Load(file)
}

// Load reads an assembly container.
func Load(reader io.Reader) (*Assembly, error) {
	r := bufio.NewReader(reader)

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if header != magic {
		return nil, fmt.Errorf("invalid magic %q", header)
	}

	version, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if version != containerVersion {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}

	asm := &Assembly{}
	if asm.Name, err = readString(r); err != nil {
		return nil, fmt.Errorf("reading assembly name: %w", err)
	}

	if err := readTypes(r, asm); err != nil {
		return nil, err
	}
	if err := readMethods(r, asm); err != nil {
		return nil, err
	}
	if err := readRefs(r, asm); err != nil {
		return nil, err
	}
	return asm, nil
}

func readTypes(r *bufio.Reader, asm *Assembly) error {
	count, err := readU16(r)
	if err != nil {
		return fmt.Errorf("reading type count: %w", err)
	}

	asm.Types = make([]TypeDef, count)
	for i := range asm.Types {
		def := &asm.Types[i]
		if def.Name, err = readString(r); err != nil {
			return fmt.Errorf("reading type name: %w", err)
		}
		flags, err := readU8(r)
		if err != nil {
			return err
		}
		def.ValueType = flags&1 != 0

		fieldCount, err := readU16(r)
		if err != nil {
			return err
		}
		def.Fields = make([]Field, fieldCount)
		for j := range def.Fields {
			field := &def.Fields[j]
			if field.Name, err = readString(r); err != nil {
				return fmt.Errorf("reading field name: %w", err)
			}
			if field.Type, err = readType(r); err != nil {
				return err
			}
			fieldFlags, err := readU8(r)
			if err != nil {
				return err
			}
			field.Static = fieldFlags&1 != 0
			if field.Init, err = readBytes(r); err != nil {
				return err
			}
		}
	}
	return nil
}

func readMethods(r *bufio.Reader, asm *Assembly) error {
	count, err := readU16(r)
	if err != nil {
		return fmt.Errorf("reading method count: %w", err)
	}

	asm.Methods = make([]*Method, count)
	for i := range asm.Methods {
		method := &Method{}
		if method.Owner, err = readString(r); err != nil {
			return fmt.Errorf("reading method owner: %w", err)
		}
		if method.Name, err = readString(r); err != nil {
			return fmt.Errorf("reading method name: %w", err)
		}
		flags, err := readU8(r)
		if err != nil {
			return err
		}
		method.EntryPoint = flags&1 != 0

		if method.Return, err = readType(r); err != nil {
			return err
		}
		if method.Params, err = readParams(r); err != nil {
			return err
		}
		if method.Locals, err = readParams(r); err != nil {
			return err
		}
		maxStack, err := readU16(r)
		if err != nil {
			return err
		}
		method.MaxStack = int(maxStack)
		if method.Body, err = readBytes(r); err != nil {
			return err
		}
		asm.Methods[i] = method
	}
	return nil
}

func readRefs(r *bufio.Reader, asm *Assembly) error {
	count, err := readU16(r)
	if err != nil {
		return fmt.Errorf("reading method ref count: %w", err)
	}
	asm.MethodRefs = make([]MethodRef, count)
	for i := range asm.MethodRefs {
		ref := &asm.MethodRefs[i]
		if ref.Owner, err = readString(r); err != nil {
			return err
		}
		if ref.Name, err = readString(r); err != nil {
			return err
		}
		paramCount, err := readU8(r)
		if err != nil {
			return err
		}
		ref.ParamCount = int(paramCount)
	}

	if count, err = readU16(r); err != nil {
		return fmt.Errorf("reading field ref count: %w", err)
	}
	asm.FieldRefs = make([]FieldRef, count)
	for i := range asm.FieldRefs {
		ref := &asm.FieldRefs[i]
		if ref.Owner, err = readString(r); err != nil {
			return err
		}
		if ref.Name, err = readString(r); err != nil {
			return err
		}
	}

	if count, err = readU16(r); err != nil {
		return fmt.Errorf("reading type ref count: %w", err)
	}
	asm.TypeRefs = make([]Type, count)
	for i := range asm.TypeRefs {
		if asm.TypeRefs[i], err = readType(r); err != nil {
			return err
		}
	}

	if count, err = readU16(r); err != nil {
		return fmt.Errorf("reading string count: %w", err)
	}
	asm.Strings = make([]string, count)
	for i := range asm.Strings {
		if asm.Strings[i], err = readString(r); err != nil {
			return err
		}
	}
	return nil
}

func readParams(r *bufio.Reader) ([]Param, error) {
	count, err := readU8(r)
	if err != nil {
		return nil, err
	}
	params := make([]Param, count)
	for i := range params {
		if params[i].Name, err = readString(r); err != nil {
			return nil, err
		}
		if params[i].Type, err = readType(r); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func readType(r *bufio.Reader) (Type, error) {
	kind, err := readU8(r)
	if err != nil {
		return Type{}, err
	}
	t := Type{Kind: TypeKind(kind)}
	if t.Kind > KindRef {
		return Type{}, fmt.Errorf("invalid type kind %d", kind)
	}

	switch t.Kind {
	case KindArray:
		elem, err := readU8(r)
		if err != nil {
			return Type{}, err
		}
		if TypeKind(elem) >= KindArray {
			return Type{}, fmt.Errorf("invalid array element kind %d", elem)
		}
		t.Elem = TypeKind(elem)

	case KindRef:
		if t.Name, err = readString(r); err != nil {
			return Type{}, err
		}
	}
	return t, nil
}

func readU8(r *bufio.Reader) (byte, error) {
	return r.ReadByte()
}

func readU16(r *bufio.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readString(r *bufio.Reader) (string, error) {
	length, err := readU16(r)
	if err != nil {
		return "", err
	}
	if length > maxStringLength {
		return "", fmt.Errorf("string length %d exceeds limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	length, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
