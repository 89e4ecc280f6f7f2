package il

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Save writes an assembly in the container format. The counterpart of Load,
// used by tooling that produces containers and by the loader tests.
func Save(writer io.Writer, asm *Assembly) error {
	w := bufio.NewWriter(writer)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	writeU16(w, containerVersion)
	writeString(w, asm.Name)

	writeTypes(w, asm)
	writeMethods(w, asm)
	writeRefs(w, asm)

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing container: %w", err)
	}
	return nil
}

func writeTypes(w *bufio.Writer, asm *Assembly) {
	writeU16(w, uint16(len(asm.Types)))
	for i := range asm.Types {
		def := &asm.Types[i]
		writeString(w, def.Name)
		var flags byte
		if def.ValueType {
			flags |= 1
		}
		_ = w.WriteByte(flags)

		writeU16(w, uint16(len(def.Fields)))
		for j := range def.Fields {
			field := &def.Fields[j]
			writeString(w, field.Name)
			writeType(w, field.Type)
			var fieldFlags byte
			if field.Static {
				fieldFlags |= 1
			}
			_ = w.WriteByte(fieldFlags)
			writeBytes(w, field.Init)
		}
	}
}

func writeMethods(w *bufio.Writer, asm *Assembly) {
	writeU16(w, uint16(len(asm.Methods)))
	for _, method := range asm.Methods {
		writeString(w, method.Owner)
		writeString(w, method.Name)
		var flags byte
		if method.EntryPoint {
			flags |= 1
		}
		_ = w.WriteByte(flags)

		writeType(w, method.Return)
		writeParams(w, method.Params)
		writeParams(w, method.Locals)
		writeU16(w, uint16(method.MaxStack))
		writeBytes(w, method.Body)
	}
}

func writeRefs(w *bufio.Writer, asm *Assembly) {
	writeU16(w, uint16(len(asm.MethodRefs)))
	for _, ref := range asm.MethodRefs {
		writeString(w, ref.Owner)
		writeString(w, ref.Name)
		_ = w.WriteByte(byte(ref.ParamCount))
	}

	writeU16(w, uint16(len(asm.FieldRefs)))
	for _, ref := range asm.FieldRefs {
		writeString(w, ref.Owner)
		writeString(w, ref.Name)
	}

	writeU16(w, uint16(len(asm.TypeRefs)))
	for _, t := range asm.TypeRefs {
		writeType(w, t)
	}

	writeU16(w, uint16(len(asm.Strings)))
	for _, s := range asm.Strings {
		writeString(w, s)
	}
}

func writeParams(w *bufio.Writer, params []Param) {
	_ = w.WriteByte(byte(len(params)))
	for _, param := range params {
		writeString(w, param.Name)
		writeType(w, param.Type)
	}
}

func writeType(w *bufio.Writer, t Type) {
	_ = w.WriteByte(byte(t.Kind))
	switch t.Kind {
	case KindArray:
		_ = w.WriteByte(byte(t.Elem))
	case KindRef:
		writeString(w, t.Name)
	}
}

func writeU16(w *bufio.Writer, value uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	_, _ = w.Write(buf[:])
}

func writeString(w *bufio.Writer, s string) {
	writeU16(w, uint16(len(s)))
	_, _ = w.WriteString(s)
}

func writeBytes(w *bufio.Writer, buf []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	_, _ = w.Write(lenBuf[:])
	_, _ = w.Write(buf)
}
