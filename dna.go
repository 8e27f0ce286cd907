/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"bytes"
	"encoding/binary"

	"github.com/armon/go-radix"
	"github.com/pkg/errors"
)

// Type is an entry of the DNA type table.
type Type struct {
	Name string
	// Size is the declared size in bytes, as compiled by the writer
	// of the file.
	Size uint16
}

// StructField is one member of a DNA struct.
type StructField struct {
	TypeIndex uint16
	NameIndex uint16
}

// Struct is a struct definition in the DNA.
type Struct struct {
	TypeIndex uint16
	Fields    []StructField
}

// DNA is the schema stored in a blend file: the names, types and
// struct layouts of the Blender build that wrote it. It is immutable.
type DNA struct {
	Names   []string
	Types   []Type
	Structs []Struct

	// type index => struct index, or -1.
	structOfType []int

	// struct type name => struct index.
	byName *radix.Tree
}

// NewDNA validates the tables and builds the lookup indices.
func NewDNA(names []string, types []Type, structs []Struct) (*DNA, error) {
	d := &DNA{
		Names:        names,
		Types:        types,
		Structs:      structs,
		structOfType: make([]int, len(types)),
		byName:       radix.New(),
	}
	for i := range d.structOfType {
		d.structOfType[i] = -1
	}

	for i, s := range structs {
		if int(s.TypeIndex) >= len(types) {
			return nil, errors.Wrapf(ErrSchemaFormat, "struct %d: type index %d out of range [0, %d)",
				i, s.TypeIndex, len(types))
		}
		for j, f := range s.Fields {
			if int(f.TypeIndex) >= len(types) {
				return nil, errors.Wrapf(ErrSchemaFormat, "struct %d field %d: type index %d out of range [0, %d)",
					i, j, f.TypeIndex, len(types))
			}
			if int(f.NameIndex) >= len(names) {
				return nil, errors.Wrapf(ErrSchemaFormat, "struct %d field %d: name index %d out of range [0, %d)",
					i, j, f.NameIndex, len(names))
			}
		}

		// The first definition of a type wins.
		if d.structOfType[s.TypeIndex] < 0 {
			d.structOfType[s.TypeIndex] = i
			d.byName.Insert(types[s.TypeIndex].Name, i)
		}
	}
	return d, nil
}

// StructIndex returns the struct defining the type with the given
// index, if it is a struct.
func (d *DNA) StructIndex(typeIndex int) (int, bool) {
	if typeIndex < 0 || typeIndex >= len(d.structOfType) {
		return -1, false
	}
	si := d.structOfType[typeIndex]
	return si, si >= 0
}

// StructByName returns the index of the struct with the given type
// name.
func (d *DNA) StructByName(name string) (int, bool) {
	v, ok := d.byName.Get(name)
	if !ok {
		return -1, false
	}
	return v.(int), true
}

// StructsWithPrefix returns the indices of all structs whose type name
// starts with prefix, ordered by name.
func (d *DNA) StructsWithPrefix(prefix string) []int {
	var res []int
	d.byName.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		res = append(res, v.(int))
		return false
	})
	return res
}

// StructName returns the type name of a struct.
func (d *DNA) StructName(structIndex int) string {
	return d.Types[d.Structs[structIndex].TypeIndex].Name
}

// dnaDecoder reads the DNA payload. Offsets are relative to the start
// of the payload, which is what the section padding is computed
// against.
type dnaDecoder struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func (d *dnaDecoder) truncated(what string) error {
	return errors.Wrapf(ErrSchemaFormat, "%s: truncated at offset %d of %d", what, d.off, len(d.buf))
}

func (d *dnaDecoder) tag(want [4]byte) error {
	if d.off+4 > len(d.buf) {
		return d.truncated(string(want[:]))
	}
	if !bytes.Equal(d.buf[d.off:d.off+4], want[:]) {
		return errors.Wrapf(ErrSchemaFormat, "got tag %q at offset %d, want %q",
			d.buf[d.off:d.off+4], d.off, want[:])
	}
	d.off += 4
	return nil
}

func (d *dnaDecoder) u32(what string) (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, d.truncated(what)
	}
	v := d.order.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *dnaDecoder) u16(what string) (uint16, error) {
	if d.off+2 > len(d.buf) {
		return 0, d.truncated(what)
	}
	v := d.order.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

// count reads a table length and checks that at least min bytes per
// entry remain, so a corrupt count cannot trigger a huge allocation.
func (d *dnaDecoder) count(what string, min int) (int, error) {
	n, err := d.u32(what)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(min) > uint64(len(d.buf)-d.off) {
		return 0, errors.Wrapf(ErrSchemaFormat, "%s: count %d exceeds remaining %d bytes",
			what, n, len(d.buf)-d.off)
	}
	return int(n), nil
}

func (d *dnaDecoder) cstrings(what string, n int) ([]string, error) {
	res := make([]string, 0, n)
	for i := 0; i < n; i++ {
		end := bytes.IndexByte(d.buf[d.off:], 0)
		if end < 0 {
			return nil, d.truncated(what)
		}
		res = append(res, string(d.buf[d.off:d.off+end]))
		d.off += end + 1
	}
	return res, nil
}

// align skips padding up to the next multiple of 4.
func (d *dnaDecoder) align() {
	if rem := d.off % 4; rem != 0 {
		d.off += 4 - rem
	}
}

// DecodeDNA parses the payload of a DNA1 block.
func DecodeDNA(payload []byte, order binary.ByteOrder) (*DNA, error) {
	d := &dnaDecoder{buf: payload, order: order}

	if err := d.tag(dnaMagic); err != nil {
		return nil, err
	}

	if err := d.tag(tagNames); err != nil {
		return nil, err
	}
	n, err := d.count("names", 1)
	if err != nil {
		return nil, err
	}
	names, err := d.cstrings("names", n)
	if err != nil {
		return nil, err
	}
	d.align()

	if err := d.tag(tagTypes); err != nil {
		return nil, err
	}
	n, err = d.count("types", 1)
	if err != nil {
		return nil, err
	}
	typeNames, err := d.cstrings("types", n)
	if err != nil {
		return nil, err
	}
	d.align()

	if err := d.tag(tagTLen); err != nil {
		return nil, err
	}
	types := make([]Type, len(typeNames))
	for i, nm := range typeNames {
		sz, err := d.u16("type lengths")
		if err != nil {
			return nil, err
		}
		types[i] = Type{Name: nm, Size: sz}
	}
	d.align()

	if err := d.tag(tagStrc); err != nil {
		return nil, err
	}
	n, err = d.count("structs", 4)
	if err != nil {
		return nil, err
	}
	structs := make([]Struct, n)
	for i := range structs {
		typ, err := d.u16("structs")
		if err != nil {
			return nil, err
		}
		nf, err := d.u16("structs")
		if err != nil {
			return nil, err
		}
		if d.off+4*int(nf) > len(d.buf) {
			return nil, d.truncated("struct fields")
		}
		fields := make([]StructField, nf)
		for j := range fields {
			fields[j].TypeIndex = d.order.Uint16(d.buf[d.off:])
			fields[j].NameIndex = d.order.Uint16(d.buf[d.off+2:])
			d.off += 4
		}
		structs[i] = Struct{TypeIndex: typ, Fields: fields}
	}

	return NewDNA(names, types, structs)
}

// EncodeDNA serializes d into the payload of a DNA1 block.
func EncodeDNA(d *DNA, order binary.ByteOrder) []byte {
	buf := &bytes.Buffer{}
	pad := func() {
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
	}
	var scratch [4]byte
	u32 := func(v int) {
		order.PutUint32(scratch[:], uint32(v))
		buf.Write(scratch[:4])
	}
	u16 := func(v uint16) {
		order.PutUint16(scratch[:], v)
		buf.Write(scratch[:2])
	}

	buf.Write(dnaMagic[:])

	buf.Write(tagNames[:])
	u32(len(d.Names))
	for _, n := range d.Names {
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	pad()

	buf.Write(tagTypes[:])
	u32(len(d.Types))
	for _, t := range d.Types {
		buf.WriteString(t.Name)
		buf.WriteByte(0)
	}
	pad()

	buf.Write(tagTLen[:])
	for _, t := range d.Types {
		u16(t.Size)
	}
	pad()

	buf.Write(tagStrc[:])
	u32(len(d.Structs))
	for _, s := range d.Structs {
		u16(s.TypeIndex)
		u16(uint16(len(s.Fields)))
		for _, f := range s.Fields {
			u16(f.TypeIndex)
			u16(f.NameIndex)
		}
	}
	return buf.Bytes()
}
