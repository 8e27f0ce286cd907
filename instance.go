/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"bytes"
	"fmt"
	"math"
)

// Instance is a typed, read-only view of one struct value inside a
// block. Instances are small values; navigating creates new ones and
// never modifies the receiver. The zero Instance is not usable.
type Instance struct {
	f      *File
	block  int
	off    int
	layout *Layout
	index  int
}

func (f *File) instance(block, off int, l *Layout, index int) Instance {
	return Instance{f: f, block: block, off: off, layout: l, index: index}
}

// File returns the file the instance belongs to.
func (i Instance) File() *File { return i.f }

// Type returns the struct type name, eg. "Object".
func (i Instance) Type() string { return i.layout.Name }

// Layout returns the layout of the struct.
func (i Instance) Layout() *Layout { return i.layout }

// Fields returns the fields of the struct in declaration order.
func (i Instance) Fields() []Field { return i.layout.Fields }

// Block returns the block holding the instance.
func (i Instance) Block() *RawBlock { return &i.f.blocks[i.block] }

// Code returns the code of the block holding the instance.
func (i Instance) Code() BlockCode { return i.f.blocks[i.block].Code }

// Offset returns the byte offset of the instance within its block.
func (i Instance) Offset() int { return i.off }

// Index returns the element index for instances that are one of
// several structs in a block or an array.
func (i Instance) Index() int { return i.index }

// Address returns the saved memory address of the instance, or 0 if
// its block has none.
func (i Instance) Address() uint64 {
	b := &i.f.blocks[i.block]
	if b.Address == 0 {
		return 0
	}
	return b.Address + uint64(i.off)
}

// Describe returns a short label such as "Object@OB[3]+0".
func (i Instance) Describe() string {
	return fmt.Sprintf("%s@%s[%d]+%d", i.layout.Name, i.Code(), i.block, i.off)
}

func failf(kind error, format string, args ...interface{}) error {
	return &FieldError{Err: kind, Detail: fmt.Sprintf(format, args...)}
}

// annotate fills in the location of a FieldError that does not have
// one yet.
func annotate(err error, structName, path string) error {
	if fe, ok := err.(*FieldError); ok && fe.Path == "" {
		fe.Struct = structName
		fe.Path = path
	}
	return err
}

// window returns n bytes at off, relative to the instance.
func (i Instance) window(off, n int) ([]byte, error) {
	data := i.f.blocks[i.block].Data
	start := i.off + off
	if start < 0 || n < 0 || start+n > len(data) {
		return nil, failf(ErrOutOfBounds, "[%d, %d) of %d byte block", start, start+n, len(data))
	}
	return data[start : start+n], nil
}

func (i Instance) pointerAt(off int) (uint64, error) {
	pw := i.f.header.PointerWidth
	b, err := i.window(off, pw)
	if err != nil {
		return 0, err
	}
	return getPointer(b, pw, i.f.header.Order()), nil
}

// resolve walks all but the last component of path, and returns the
// instance owning the last field, the field and its indices.
func (i Instance) resolve(path string) (Instance, *Field, []int, error) {
	elems, err := parsePath(path)
	if err != nil {
		return Instance{}, nil, nil, failf(ErrUnknownField, "%v", err)
	}

	cur := i
	for k, e := range elems {
		f, ok := cur.layout.Field(e.name)
		if !ok {
			return Instance{}, nil, nil, failf(ErrUnknownField, "no field %q in %s", e.name, cur.layout.Name)
		}
		if err := checkIndices(f, e.idx); err != nil {
			return Instance{}, nil, nil, err
		}
		if k == len(elems)-1 {
			return cur, f, e.idx, nil
		}

		next, ok, err := cur.member(f, e.idx)
		if err != nil {
			return Instance{}, nil, nil, err
		}
		if !ok {
			return Instance{}, nil, nil, failf(ErrNilPointer, "%s is null", e.name)
		}
		cur = next
	}
	panic("unreachable")
}

// member returns the struct held or pointed to by f.
func (i Instance) member(f *Field, idx []int) (Instance, bool, error) {
	switch {
	case f.FuncPointer:
		return Instance{}, false, failf(ErrFieldTypeMismatch, "%s is a function pointer", f.Name)
	case len(idx) != len(f.Dims):
		return Instance{}, false, failf(ErrFieldTypeMismatch, "%s is an array, %d indices needed", f.Name, len(f.Dims))
	case f.PointerDepth == 0:
		if f.StructIndex < 0 {
			return Instance{}, false, failf(ErrFieldTypeMismatch, "%s is %s, not a struct", f.Name, f.TypeName)
		}
		off, _ := subArray(f, idx)
		index := 0
		if f.ElemSize > 0 {
			index = off / f.ElemSize
		}
		return i.f.instance(i.block, i.off+f.Offset+off, i.f.layouts[f.StructIndex], index), true, nil
	case f.PointerDepth == 1:
		off, _ := subArray(f, idx)
		addr, err := i.pointerAt(f.Offset + off)
		if err != nil {
			return Instance{}, false, err
		}
		return i.f.deref(f, addr)
	}
	return Instance{}, false, failf(ErrFieldTypeMismatch, "%s has pointer depth %d", f.Name, f.PointerDepth)
}

// deref returns the instance at addr. The static struct type of f
// governs the interpretation; for void and other non-struct pointers
// the type recorded for the target block is used.
func (f *File) deref(fd *Field, addr uint64) (Instance, bool, error) {
	if addr == 0 {
		return Instance{}, false, nil
	}
	pos, ok := f.addrs.Lookup(addr)
	if !ok {
		return Instance{}, false, failf(ErrUnresolvedPointer, "%s: no block at 0x%x", fd.Name, addr)
	}
	l, err := f.pointeeLayout(fd, pos)
	if err != nil {
		return Instance{}, false, err
	}
	return f.instance(pos, 0, l, 0), true, nil
}

func (f *File) pointeeLayout(fd *Field, pos int) (*Layout, error) {
	if fd.StructIndex >= 0 {
		return f.layouts[fd.StructIndex], nil
	}
	b := &f.blocks[pos]
	if isMetaCode(b.Code) || int(b.SDNAIndex) >= len(f.layouts) {
		return nil, failf(ErrFieldTypeMismatch, "%s points to %q block without struct type", fd.Name, b.Code.String())
	}
	return f.layouts[b.SDNAIndex], nil
}

// Get returns the struct stored inline in, or pointed to by, the field
// at path. For a null pointer it returns false and no error.
func (i Instance) Get(path string) (Instance, bool, error) {
	owner, f, idx, err := i.resolve(path)
	if err != nil {
		return Instance{}, false, annotate(err, i.Type(), path)
	}
	res, ok, err := owner.member(f, idx)
	if err != nil {
		return Instance{}, false, annotate(err, i.Type(), path)
	}
	return res, ok, nil
}

// HasField reports whether path names an existing field.
func (i Instance) HasField(path string) bool {
	_, _, _, err := i.resolve(path)
	return err == nil
}

// Has reports whether path names an existing field of the given kind.
// Pointer fields have KindPointer.
func (i Instance) Has(path string, kind Kind) bool {
	_, f, _, err := i.resolve(path)
	return err == nil && f.Kind() == kind
}

// Valid reports whether the pointer at path is non-null and points to
// a block in the file.
func (i Instance) Valid(path string) bool {
	owner, f, idx, err := i.resolve(path)
	if err != nil || f.PointerDepth == 0 || len(idx) != len(f.Dims) {
		return false
	}
	off, _ := subArray(f, idx)
	addr, err := owner.pointerAt(f.Offset + off)
	if err != nil {
		return false
	}
	_, ok := i.f.addrs.Lookup(addr)
	return ok
}

// Pointer returns the raw address stored in a pointer field.
func (i Instance) Pointer(path string) (uint64, error) {
	owner, f, idx, err := i.resolve(path)
	if err == nil && (f.PointerDepth == 0 || len(idx) != len(f.Dims)) {
		err = failf(ErrFieldTypeMismatch, "%s %s is not a single pointer", f.TypeName, f.FieldName)
	}
	if err != nil {
		return 0, annotate(err, i.Type(), path)
	}
	off, _ := subArray(f, idx)
	addr, err := owner.pointerAt(f.Offset + off)
	if err != nil {
		return 0, annotate(err, i.Type(), path)
	}
	return addr, nil
}

// accept decides whether a base kind and element size fit an accessor.
type accept func(k Kind, size int) bool

func exactly(kind Kind, size int) accept {
	return func(k Kind, sz int) bool { return k == kind && sz == size }
}

func anyInt(k Kind, size int) bool {
	return (k == KindInt || k == KindUint) && (size == 1 || size == 2 || size == 4 || size == 8)
}

func byteInt(k Kind, size int) bool {
	return (k == KindInt || k == KindUint) && size == 1
}

// scalar returns the bytes of a single non-pointer element.
func (i Instance) scalar(path string, ok accept, want string) (*Field, []byte, error) {
	owner, f, idx, err := i.resolve(path)
	if err == nil {
		switch {
		case f.IsPointer():
			err = failf(ErrFieldTypeMismatch, "%s is a pointer, want %s", f.FieldName, want)
		case !ok(f.base, f.ElemSize):
			err = failf(ErrFieldTypeMismatch, "%s is %s (%d bytes), want %s", f.FieldName, f.TypeName, f.ElemSize, want)
		case len(idx) != len(f.Dims):
			err = failf(ErrFieldTypeMismatch, "%s is an array, %d indices needed", f.FieldName, len(f.Dims))
		}
	}
	if err != nil {
		return nil, nil, annotate(err, i.Type(), path)
	}
	off, _ := subArray(f, idx)
	b, err := owner.window(f.Offset+off, f.ElemSize)
	if err != nil {
		return nil, nil, annotate(err, i.Type(), path)
	}
	return f, b, nil
}

func (i Instance) Int8(path string) (int8, error) {
	_, b, err := i.scalar(path, exactly(KindInt, 1), "int8")
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (i Instance) Uint8(path string) (uint8, error) {
	_, b, err := i.scalar(path, exactly(KindUint, 1), "uint8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (i Instance) Int16(path string) (int16, error) {
	_, b, err := i.scalar(path, exactly(KindInt, 2), "int16")
	if err != nil {
		return 0, err
	}
	return int16(i.f.header.Order().Uint16(b)), nil
}

func (i Instance) Uint16(path string) (uint16, error) {
	_, b, err := i.scalar(path, exactly(KindUint, 2), "uint16")
	if err != nil {
		return 0, err
	}
	return i.f.header.Order().Uint16(b), nil
}

func (i Instance) Int32(path string) (int32, error) {
	_, b, err := i.scalar(path, exactly(KindInt, 4), "int32")
	if err != nil {
		return 0, err
	}
	return int32(i.f.header.Order().Uint32(b)), nil
}

func (i Instance) Uint32(path string) (uint32, error) {
	_, b, err := i.scalar(path, exactly(KindUint, 4), "uint32")
	if err != nil {
		return 0, err
	}
	return i.f.header.Order().Uint32(b), nil
}

func (i Instance) Int64(path string) (int64, error) {
	_, b, err := i.scalar(path, exactly(KindInt, 8), "int64")
	if err != nil {
		return 0, err
	}
	return int64(i.f.header.Order().Uint64(b)), nil
}

func (i Instance) Uint64(path string) (uint64, error) {
	_, b, err := i.scalar(path, exactly(KindUint, 8), "uint64")
	if err != nil {
		return 0, err
	}
	return i.f.header.Order().Uint64(b), nil
}

func (i Instance) Float32(path string) (float32, error) {
	_, b, err := i.scalar(path, exactly(KindFloat, 4), "float32")
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(i.f.header.Order().Uint32(b)), nil
}

func (i Instance) Float64(path string) (float64, error) {
	_, b, err := i.scalar(path, exactly(KindFloat, 8), "float64")
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(i.f.header.Order().Uint64(b)), nil
}

// Bool reads a one byte integer field as a boolean.
func (i Instance) Bool(path string) (bool, error) {
	_, b, err := i.scalar(path, byteInt, "1 byte integer")
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Int reads an integer field of any width. Signed types are sign
// extended.
func (i Instance) Int(path string) (int64, error) {
	f, b, err := i.scalar(path, anyInt, "integer")
	if err != nil {
		return 0, err
	}
	order := i.f.header.Order()
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(order.Uint16(b))
	case 4:
		u = uint64(order.Uint32(b))
	case 8:
		u = order.Uint64(b)
	}
	if f.base == KindInt && len(b) < 8 {
		shift := 64 - 8*uint(len(b))
		return int64(u<<shift) >> shift, nil
	}
	return int64(u), nil
}

// Bytes returns the raw bytes of a non-pointer field, or of the
// element or row selected by the indices in path.
func (i Instance) Bytes(path string) ([]byte, error) {
	owner, f, idx, err := i.resolve(path)
	if err == nil && f.IsPointer() {
		err = failf(ErrFieldTypeMismatch, "%s is a pointer", f.FieldName)
	}
	if err != nil {
		return nil, annotate(err, i.Type(), path)
	}
	off, n := subArray(f, idx)
	b, err := owner.window(f.Offset+off, n*f.ElemSize)
	if err != nil {
		return nil, annotate(err, i.Type(), path)
	}
	return b, nil
}

// String reads a char array, up to the first zero byte.
func (i Instance) String(path string) (string, error) {
	owner, f, idx, err := i.resolve(path)
	if err == nil && (f.IsPointer() || !byteInt(f.base, f.ElemSize)) {
		err = failf(ErrFieldTypeMismatch, "%s %s is not a char array", f.TypeName, f.FieldName)
	}
	if err != nil {
		return "", annotate(err, i.Type(), path)
	}
	off, n := subArray(f, idx)
	b, err := owner.window(f.Offset+off, n)
	if err != nil {
		return "", annotate(err, i.Type(), path)
	}
	if end := bytes.IndexByte(b, 0); end >= 0 {
		b = b[:end]
	}
	return string(b), nil
}

// array returns the bytes of a primitive array: either an inline
// array field (or a row of it), or the whole block a pointer field
// points to. A null pointer yields no bytes.
func (i Instance) array(path string, ok accept, want string) ([]byte, int, error) {
	owner, f, idx, err := i.resolve(path)
	if err != nil {
		return nil, 0, annotate(err, i.Type(), path)
	}

	var b []byte
	size := f.ElemSize
	switch {
	case f.PointerDepth == 0 && len(f.Dims) > 0:
		if !ok(f.base, size) {
			err = failf(ErrFieldTypeMismatch, "%s is %s[], want %s[]", f.FieldName, f.TypeName, want)
			break
		}
		off, n := subArray(f, idx)
		b, err = owner.window(f.Offset+off, n*size)
	case f.PointerDepth == 1 && !f.FuncPointer && len(idx) == len(f.Dims):
		size = int(i.f.dna.Types[f.TypeIndex].Size)
		if size == 0 || !ok(f.base, size) {
			err = failf(ErrFieldTypeMismatch, "%s points to %s, want %s", f.FieldName, f.TypeName, want)
			break
		}
		b, err = owner.pointee(f, idx)
		b = b[:len(b)/size*size]
	default:
		err = failf(ErrFieldTypeMismatch, "%s %s is not an array of %s", f.TypeName, f.FieldName, want)
	}
	if err != nil {
		return nil, 0, annotate(err, i.Type(), path)
	}
	return b, size, nil
}

// pointee returns the payload of the block pointed to by f.
func (i Instance) pointee(f *Field, idx []int) ([]byte, error) {
	off, _ := subArray(f, idx)
	addr, err := i.pointerAt(f.Offset + off)
	if err != nil || addr == 0 {
		return nil, err
	}
	pos, ok := i.f.addrs.Lookup(addr)
	if !ok {
		return nil, failf(ErrUnresolvedPointer, "%s: no block at 0x%x", f.Name, addr)
	}
	return i.f.blocks[pos].Data, nil
}

func decodeAll[T any](b []byte, size int, dec func([]byte) T) []T {
	res := make([]T, len(b)/size)
	for k := range res {
		res[k] = dec(b[k*size:])
	}
	return res
}

func (i Instance) Int8s(path string) ([]int8, error) {
	b, sz, err := i.array(path, exactly(KindInt, 1), "int8")
	if err != nil {
		return nil, err
	}
	return decodeAll(b, sz, func(b []byte) int8 { return int8(b[0]) }), nil
}

func (i Instance) Uint8s(path string) ([]uint8, error) {
	b, sz, err := i.array(path, exactly(KindUint, 1), "uint8")
	if err != nil {
		return nil, err
	}
	return decodeAll(b, sz, func(b []byte) uint8 { return b[0] }), nil
}

func (i Instance) Int16s(path string) ([]int16, error) {
	b, sz, err := i.array(path, exactly(KindInt, 2), "int16")
	if err != nil {
		return nil, err
	}
	order := i.f.header.Order()
	return decodeAll(b, sz, func(b []byte) int16 { return int16(order.Uint16(b)) }), nil
}

func (i Instance) Uint16s(path string) ([]uint16, error) {
	b, sz, err := i.array(path, exactly(KindUint, 2), "uint16")
	if err != nil {
		return nil, err
	}
	return decodeAll(b, sz, i.f.header.Order().Uint16), nil
}

func (i Instance) Int32s(path string) ([]int32, error) {
	b, sz, err := i.array(path, exactly(KindInt, 4), "int32")
	if err != nil {
		return nil, err
	}
	order := i.f.header.Order()
	return decodeAll(b, sz, func(b []byte) int32 { return int32(order.Uint32(b)) }), nil
}

func (i Instance) Uint32s(path string) ([]uint32, error) {
	b, sz, err := i.array(path, exactly(KindUint, 4), "uint32")
	if err != nil {
		return nil, err
	}
	return decodeAll(b, sz, i.f.header.Order().Uint32), nil
}

func (i Instance) Int64s(path string) ([]int64, error) {
	b, sz, err := i.array(path, exactly(KindInt, 8), "int64")
	if err != nil {
		return nil, err
	}
	order := i.f.header.Order()
	return decodeAll(b, sz, func(b []byte) int64 { return int64(order.Uint64(b)) }), nil
}

func (i Instance) Uint64s(path string) ([]uint64, error) {
	b, sz, err := i.array(path, exactly(KindUint, 8), "uint64")
	if err != nil {
		return nil, err
	}
	return decodeAll(b, sz, i.f.header.Order().Uint64), nil
}

func (i Instance) Float32s(path string) ([]float32, error) {
	b, sz, err := i.array(path, exactly(KindFloat, 4), "float32")
	if err != nil {
		return nil, err
	}
	order := i.f.header.Order()
	return decodeAll(b, sz, func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) }), nil
}

func (i Instance) Float64s(path string) ([]float64, error) {
	b, sz, err := i.array(path, exactly(KindFloat, 8), "float64")
	if err != nil {
		return nil, err
	}
	order := i.f.header.Order()
	return decodeAll(b, sz, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }), nil
}

// Elements iterates over a contiguous run of structs: an inline
// struct array, or the block a struct pointer points to, which holds
// Count structs back to back. A null pointer yields nothing.
func (i Instance) Elements(path string) (Iterator, error) {
	owner, f, idx, err := i.resolve(path)
	if err != nil {
		return nil, annotate(err, i.Type(), path)
	}

	switch {
	case f.PointerDepth == 0 && f.StructIndex >= 0 && len(idx) < len(f.Dims):
		off, n := subArray(f, idx)
		return &strideIter{
			f:      i.f,
			block:  owner.block,
			off:    owner.off + f.Offset + off,
			layout: i.f.layouts[f.StructIndex],
			n:      n,
			where:  where{i.Type(), path},
		}, nil
	case f.PointerDepth == 1 && !f.FuncPointer && len(idx) == len(f.Dims):
		off, _ := subArray(f, idx)
		addr, err := owner.pointerAt(f.Offset + off)
		if err != nil {
			return nil, annotate(err, i.Type(), path)
		}
		first, ok, err := i.f.deref(f, addr)
		if err != nil {
			return nil, annotate(err, i.Type(), path)
		}
		if !ok {
			return &emptyIterator{}, nil
		}
		b := first.Block()
		n := int(b.Count)
		if sz := first.layout.Size; sz > 0 && len(b.Data)/sz < n {
			n = len(b.Data) / sz
		}
		return &strideIter{
			f:      i.f,
			block:  first.block,
			layout: first.layout,
			n:      n,
			where:  where{i.Type(), path},
		}, nil
	}
	return nil, annotate(failf(ErrFieldTypeMismatch, "%s %s is not a struct array or struct pointer",
		f.TypeName, f.FieldName), i.Type(), path)
}

// List iterates over a linked list headed by a ListBase-like struct
// field with "first" and "last" pointers. Elements are followed
// through their "next" pointer until it is null.
func (i Instance) List(path string) (Iterator, error) {
	head, ok, err := i.Get(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &emptyIterator{}, nil
	}

	first, ok := head.layout.Field("first")
	if _, hasLast := head.layout.Field("last"); !ok || !hasLast || first.PointerDepth != 1 || len(first.Dims) > 0 {
		return nil, annotate(failf(ErrFieldTypeMismatch, "%s is not a list base", head.layout.Name), i.Type(), path)
	}
	addr, err := head.pointerAt(first.Offset)
	if err != nil {
		return nil, annotate(err, i.Type(), path)
	}
	return &listIter{
		f:     i.f,
		elem:  first,
		addr:  addr,
		limit: i.f.opts.ListLimit,
		where: where{i.Type(), path},
	}, nil
}

// Pointers iterates over the structs referenced by an array of
// pointers: an inline pointer array such as "*mtex[18]", or a double
// pointer such as "**mat" whose block holds the addresses. Null
// entries are skipped.
func (i Instance) Pointers(path string) (Iterator, error) {
	owner, f, idx, err := i.resolve(path)
	if err != nil {
		return nil, annotate(err, i.Type(), path)
	}

	switch {
	case f.PointerDepth == 1 && !f.FuncPointer && len(idx) < len(f.Dims):
		off, n := subArray(f, idx)
		return &pointerIter{
			f:     i.f,
			block: owner.block,
			off:   owner.off + f.Offset + off,
			n:     n,
			elem:  f,
			where: where{i.Type(), path},
		}, nil
	case f.PointerDepth == 2 && len(idx) == len(f.Dims):
		off, _ := subArray(f, idx)
		addr, err := owner.pointerAt(f.Offset + off)
		if err != nil {
			return nil, annotate(err, i.Type(), path)
		}
		if addr == 0 {
			return &emptyIterator{}, nil
		}
		pos, ok := i.f.addrs.Lookup(addr)
		if !ok {
			return nil, annotate(failf(ErrUnresolvedPointer, "%s: no block at 0x%x", f.Name, addr), i.Type(), path)
		}
		return &pointerIter{
			f:     i.f,
			block: pos,
			n:     len(i.f.blocks[pos].Data) / i.f.header.PointerWidth,
			elem:  f,
			where: where{i.Type(), path},
		}, nil
	}
	return nil, annotate(failf(ErrFieldTypeMismatch, "%s %s is not a pointer array",
		f.TypeName, f.FieldName), i.Type(), path)
}
