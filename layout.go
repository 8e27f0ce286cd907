/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Kind classifies the type of a field.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindVoid
	KindStruct
	// KindOpaque is a non-struct type without a known encoding.
	KindOpaque
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindVoid:
		return "void"
	case KindStruct:
		return "struct"
	case KindOpaque:
		return "opaque"
	case KindPointer:
		return "pointer"
	}
	return "invalid"
}

var primitiveKinds = map[string]Kind{
	"char":     KindInt,
	"int8_t":   KindInt,
	"short":    KindInt,
	"int16_t":  KindInt,
	"int":      KindInt,
	"int32_t":  KindInt,
	"long":     KindInt,
	"int64_t":  KindInt,
	"uchar":    KindUint,
	"uint8_t":  KindUint,
	"ushort":   KindUint,
	"uint16_t": KindUint,
	"uint":     KindUint,
	"uint32_t": KindUint,
	"ulong":    KindUint,
	"uint64_t": KindUint,
	"bool":     KindUint,
	"float":    KindFloat,
	"double":   KindFloat,
	"void":     KindVoid,
}

// Field is a resolved struct member: where it lives inside the struct
// and how to interpret it.
type Field struct {
	FieldName

	TypeIndex int
	TypeName  string

	// StructIndex is the struct of the base type, or -1.
	StructIndex int

	// ElemSize is the size of one element: the pointer width for
	// pointers, otherwise the declared size of the type.
	ElemSize int
	Size     int
	Offset   int

	base Kind
}

// Kind returns KindPointer for pointers, and the kind of the base type
// otherwise.
func (f *Field) Kind() Kind {
	if f.PointerDepth > 0 {
		return KindPointer
	}
	return f.base
}

// BaseKind returns the kind of the type, ignoring indirection.
func (f *Field) BaseKind() Kind {
	return f.base
}

// IsPointer reports whether the field holds pointers.
func (f *Field) IsPointer() bool {
	return f.PointerDepth > 0
}

// Layout is the resolved memory layout of a DNA struct.
type Layout struct {
	StructIndex int
	TypeIndex   int
	Name        string
	Size        int
	Fields      []Field

	byName map[string]int
}

// Field looks up a field by its base name.
func (l *Layout) Field(name string) (*Field, bool) {
	i, ok := l.byName[name]
	if !ok {
		return nil, false
	}
	return &l.Fields[i], true
}

// newLayout resolves struct si. The sum of field sizes must equal the
// declared size of the struct.
func newLayout(d *DNA, si int, ptrWidth int) (*Layout, error) {
	s := &d.Structs[si]
	typ := d.Types[s.TypeIndex]
	l := &Layout{
		StructIndex: si,
		TypeIndex:   int(s.TypeIndex),
		Name:        typ.Name,
		Size:        int(typ.Size),
		Fields:      make([]Field, 0, len(s.Fields)),
		byName:      make(map[string]int, len(s.Fields)),
	}

	off := 0
	for _, sf := range s.Fields {
		fn, err := ParseFieldName(d.Names[sf.NameIndex])
		if err != nil {
			return nil, errors.Wrapf(ErrSchemaFormat, "struct %s: %v", l.Name, err)
		}

		ft := d.Types[sf.TypeIndex]
		f := Field{
			FieldName:   fn,
			TypeIndex:   int(sf.TypeIndex),
			TypeName:    ft.Name,
			StructIndex: -1,
			ElemSize:    int(ft.Size),
			Offset:      off,
		}
		if fsi, ok := d.StructIndex(f.TypeIndex); ok {
			f.StructIndex = fsi
			f.base = KindStruct
		} else if k, ok := primitiveKinds[ft.Name]; ok {
			f.base = k
		} else {
			f.base = KindOpaque
		}
		if fn.PointerDepth > 0 {
			f.ElemSize = ptrWidth
		}
		f.Size = f.ElemSize * fn.Len()
		off += f.Size

		if _, dup := l.byName[fn.Name]; !dup {
			l.byName[fn.Name] = len(l.Fields)
		}
		l.Fields = append(l.Fields, f)
	}

	if off != l.Size {
		return nil, errors.Wrapf(ErrSchemaFormat, "struct %s: fields add up to %d bytes, declared size is %d",
			l.Name, off, l.Size)
	}
	return l, nil
}

// resolveLayouts computes the layout of every struct up front, so
// lookups need no locking afterwards.
func resolveLayouts(d *DNA, ptrWidth int) ([]*Layout, error) {
	layouts := make([]*Layout, len(d.Structs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range d.Structs {
		i := i
		g.Go(func() error {
			l, err := newLayout(d, i, ptrWidth)
			if err != nil {
				return err
			}
			layouts[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layouts, nil
}
