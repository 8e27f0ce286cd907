/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// schema builds a DNA table by hand. Struct sizes are derived from the
// fields, so the same schema can be built for either pointer width.
type schema struct {
	t        *testing.T
	ptrWidth int
	names    []string
	types    []Type
	structs  []Struct
}

func newSchema(t *testing.T, ptrWidth int) *schema {
	s := &schema{t: t, ptrWidth: ptrWidth}
	for _, p := range []struct {
		name string
		size uint16
	}{
		{"char", 1}, {"uchar", 1}, {"short", 2}, {"ushort", 2},
		{"int", 4}, {"float", 4}, {"double", 8},
		{"int64_t", 8}, {"uint64_t", 8}, {"void", 0},
	} {
		s.types = append(s.types, Type{Name: p.name, Size: p.size})
	}
	return s
}

func (s *schema) typ(name string) uint16 {
	for i, t := range s.types {
		if t.Name == name {
			return uint16(i)
		}
	}
	s.types = append(s.types, Type{Name: name})
	return uint16(len(s.types) - 1)
}

func (s *schema) name(n string) uint16 {
	for i, nm := range s.names {
		if nm == n {
			return uint16(i)
		}
	}
	s.names = append(s.names, n)
	return uint16(len(s.names) - 1)
}

// add defines a struct from "type name" pairs such as "float loc[3]".
func (s *schema) add(structName string, fields ...string) *schema {
	ti := s.typ(structName)
	st := Struct{TypeIndex: ti}
	size := 0
	for _, decl := range fields {
		sp := strings.IndexByte(decl, ' ')
		require.Greater(s.t, sp, 0, decl)
		ft, fname := s.typ(decl[:sp]), decl[sp+1:]

		fn, err := ParseFieldName(fname)
		require.NoError(s.t, err)
		elem := int(s.types[ft].Size)
		if fn.PointerDepth > 0 {
			elem = s.ptrWidth
		}
		size += elem * fn.Len()

		st.Fields = append(st.Fields, StructField{TypeIndex: ft, NameIndex: s.name(fname)})
	}
	s.types[ti].Size = uint16(size)
	s.structs = append(s.structs, st)
	return s
}

func (s *schema) dna() *DNA {
	d, err := NewDNA(s.names, s.types, s.structs)
	require.NoError(s.t, err)
	return d
}

// sceneSchema is a small slice of the Blender schema.
func sceneSchema(t *testing.T, ptrWidth int) *DNA {
	return newSchema(t, ptrWidth).
		add("Link", "Link *next", "Link *prev").
		add("ID", "void *next", "void *prev", "char name[24]").
		add("ListBase", "void *first", "void *last").
		add("MVert", "float co[3]", "short no[3]", "char flag", "char bweight").
		add("Material", "ID id", "float r", "float g", "float b", "float alpha").
		add("Mesh", "ID id", "Material **mat", "MVert *mvert", "short totcol", "short flag", "int totvert").
		add("ModifierData", "ModifierData *next", "ModifierData *prev", "int type", "char name[12]").
		add("Object",
			"ID id",
			"void *data",
			"Object *parent",
			"Material *mtex[2]",
			"int *counts",
			"void (*callback)()",
			"ListBase modifiers",
			"float loc[3]",
			"float obmat[4][4]",
			"int lay",
			"short type",
			"char restrictflag",
			"uchar col[4]",
			"char pad",
			"double mass",
			"int64_t uid",
			"uint64_t session").
		add("Scene", "ID id", "ListBase objects", "Object *camera", "MVert cursor[2]").
		dna()
}

// record encodes one or more structs of a layout, addressed by field
// path.
type record struct {
	t       *testing.T
	layouts []*Layout
	l       *Layout
	hdr     FileHeader
	buf     []byte
}

func newRecord(t *testing.T, hdr FileHeader, d *DNA, structName string, count int) *record {
	layouts, err := resolveLayouts(d, hdr.PointerWidth)
	require.NoError(t, err)
	si, ok := d.StructByName(structName)
	require.True(t, ok, structName)
	l := layouts[si]
	return &record{t: t, layouts: layouts, l: l, hdr: hdr, buf: make([]byte, l.Size*count)}
}

// put writes vals starting at the field named by path in element
// elem. Consecutive values fill consecutive array elements.
func (r *record) put(elem int, path string, vals ...interface{}) *record {
	off := elem * r.l.Size
	l := r.l
	var f *Field
	comps := strings.Split(path, ".")
	for k, c := range comps {
		name, idx, err := splitIndices(c)
		require.NoError(r.t, err)
		var ok bool
		f, ok = l.Field(name)
		require.True(r.t, ok, path)
		sub, _ := subArray(f, idx)
		off += f.Offset + sub
		if k < len(comps)-1 {
			l = r.layouts[f.StructIndex]
		}
	}

	order := r.hdr.Order()
	for _, v := range vals {
		out := r.buf[off:]
		switch v := v.(type) {
		case string:
			copy(out, v)
			off += len(v)
			continue
		case uint64:
			if f.IsPointer() {
				putPointer(out, v, r.hdr.PointerWidth, order)
			} else {
				order.PutUint64(out, v)
			}
		case float64:
			if f.ElemSize == 4 {
				order.PutUint32(out, math.Float32bits(float32(v)))
			} else {
				order.PutUint64(out, math.Float64bits(v))
			}
		case int:
			switch f.ElemSize {
			case 1:
				out[0] = byte(v)
			case 2:
				order.PutUint16(out, uint16(v))
			case 4:
				order.PutUint32(out, uint32(v))
			case 8:
				order.PutUint64(out, uint64(v))
			}
		default:
			r.t.Fatalf("unsupported value %T", v)
		}
		off += f.ElemSize
	}
	return r
}

func (r *record) bytes() []byte { return r.buf }

// pointers encodes a block payload holding raw addresses.
func pointers(hdr FileHeader, addrs ...uint64) []byte {
	out := make([]byte, len(addrs)*hdr.PointerWidth)
	for i, a := range addrs {
		putPointer(out[i*hdr.PointerWidth:], a, hdr.PointerWidth, hdr.Order())
	}
	return out
}

// writeFile frames blocks and the DNA into a complete file.
func writeFile(t *testing.T, hdr FileHeader, d *DNA, blocks ...RawBlock) []byte {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, hdr)
	require.NoError(t, err)
	for i := range blocks {
		require.NoError(t, w.WriteBlock(&blocks[i]))
	}
	if d != nil {
		require.NoError(t, w.WriteDNA(d))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func structIndex(t *testing.T, d *DNA, name string) uint32 {
	si, ok := d.StructByName(name)
	require.True(t, ok, name)
	return uint32(si)
}

var (
	header64LE = FileHeader{PointerWidth: 8, Endianness: LittleEndian, Version: [3]byte{'2', '8', '0'}}
	header32BE = FileHeader{PointerWidth: 4, Endianness: BigEndian, Version: [3]byte{'2', '4', '9'}}
)

// Addresses used by the scene fixture.
const (
	addrCube     = 0x1000
	addrLamp     = 0x1100
	addrMesh     = 0x2000
	addrVerts    = 0x2100
	addrRed      = 0x3000
	addrBlue     = 0x3100
	addrMatArray = 0x4000
	addrCounts   = 0x5000
	addrMod1     = 0x6000
	addrMod2     = 0x6100
	addrScene    = 0x7000
	addrTest     = 0x9000
	addrDangling = 0xdead0
)

// sceneBlocks returns the blocks of a scene with two objects, a mesh
// with three vertices, two materials and a modifier stack.
func sceneBlocks(t *testing.T, hdr FileHeader, d *DNA) []RawBlock {
	rec := func(name string, count int) *record { return newRecord(t, hdr, d, name, count) }

	cube := rec("Object", 1).
		put(0, "id.next", uint64(addrLamp)).
		put(0, "id.name", "OBCube").
		put(0, "data", uint64(addrMesh)).
		put(0, "mtex", uint64(addrRed), uint64(0)).
		put(0, "counts", uint64(addrCounts)).
		put(0, "modifiers.first", uint64(addrMod1)).
		put(0, "modifiers.last", uint64(addrMod2)).
		put(0, "loc", 1.0, 2.0, 3.0).
		put(0, "obmat[0][0]", 1.0).
		put(0, "obmat[1][1]", 1.0).
		put(0, "obmat[2][2]", 1.0).
		put(0, "obmat[3]", 5.0, 6.0, 7.0, 1.0).
		put(0, "lay", 1).
		put(0, "type", 1).
		put(0, "restrictflag", 4).
		put(0, "col", 10, 20, 30, 255).
		put(0, "mass", 2.5).
		put(0, "uid", -7).
		put(0, "session", uint64(1)<<63)

	lamp := rec("Object", 1).
		put(0, "id.prev", uint64(addrCube)).
		put(0, "id.name", "OBLamp").
		put(0, "parent", uint64(addrCube)).
		put(0, "mtex[1]", uint64(addrDangling)).
		put(0, "type", 10).
		put(0, "restrictflag", -1).
		put(0, "loc", -1.0, 0.0, 4.0)

	mesh := rec("Mesh", 1).
		put(0, "id.name", "MECube").
		put(0, "mat", uint64(addrMatArray)).
		put(0, "mvert", uint64(addrVerts)).
		put(0, "totcol", 2).
		put(0, "totvert", 3)

	verts := rec("MVert", 3)
	for i := 0; i < 3; i++ {
		verts.put(i, "co", float64(i), float64(i)+0.5, -float64(i)).
			put(i, "flag", i+1)
	}

	red := rec("Material", 1).put(0, "id.name", "MARed").put(0, "r", 0.75).put(0, "alpha", 1.0)
	blue := rec("Material", 1).put(0, "id.name", "MABlue").put(0, "b", 0.5).put(0, "alpha", 1.0)

	mod1 := rec("ModifierData", 1).put(0, "next", uint64(addrMod2)).put(0, "type", 3).put(0, "name", "Subsurf")
	mod2 := rec("ModifierData", 1).put(0, "prev", uint64(addrMod1)).put(0, "type", 5).put(0, "name", "Mirror")

	scene := rec("Scene", 1).
		put(0, "id.name", "SCScene").
		put(0, "objects.first", uint64(addrCube)).
		put(0, "objects.last", uint64(addrLamp)).
		put(0, "camera", uint64(addrLamp)).
		put(0, "cursor[0].flag", 1).
		put(0, "cursor[1].co", 7.0, 8.0, 9.0)

	counts := make([]byte, 16)
	for i, v := range []uint32{4, 8, 15, 16} {
		hdr.Order().PutUint32(counts[i*4:], v)
	}

	si := func(name string) uint32 { return structIndex(t, d, name) }
	return []RawBlock{
		{Code: Code("OB"), Address: addrCube, SDNAIndex: si("Object"), Count: 1, Data: cube.bytes()},
		{Code: Code("OB"), Address: addrLamp, SDNAIndex: si("Object"), Count: 1, Data: lamp.bytes()},
		{Code: Code("ME"), Address: addrMesh, SDNAIndex: si("Mesh"), Count: 1, Data: mesh.bytes()},
		{Code: CodeData, Address: addrVerts, SDNAIndex: si("MVert"), Count: 3, Data: verts.bytes()},
		{Code: Code("MA"), Address: addrRed, SDNAIndex: si("Material"), Count: 1, Data: red.bytes()},
		{Code: Code("MA"), Address: addrBlue, SDNAIndex: si("Material"), Count: 1, Data: blue.bytes()},
		{Code: CodeData, Address: addrMatArray, SDNAIndex: si("Link"), Count: 1, Data: pointers(hdr, addrRed, addrBlue)},
		{Code: CodeData, Address: addrCounts, SDNAIndex: si("Link"), Count: 1, Data: counts},
		{Code: CodeData, Address: addrMod1, SDNAIndex: si("ModifierData"), Count: 1, Data: mod1.bytes()},
		{Code: CodeData, Address: addrMod2, SDNAIndex: si("ModifierData"), Count: 1, Data: mod2.bytes()},
		{Code: Code("SC"), Address: addrScene, SDNAIndex: si("Scene"), Count: 1, Data: scene.bytes()},
		{Code: CodeTest, Address: addrTest, Count: 1, Data: []byte("thumbnail")},
	}
}

func sceneFile(t *testing.T, hdr FileHeader) []byte {
	d := sceneSchema(t, hdr.PointerWidth)
	return writeFile(t, hdr, d, sceneBlocks(t, hdr, d)...)
}

func openScene(t *testing.T, hdr FileHeader, opts *Options) *File {
	f, err := OpenBytes(sceneFile(t, hdr), opts)
	require.NoError(t, err)
	return f
}

// objectByName finds an Object by its ID name.
func objectByName(t *testing.T, f *File, name string) Instance {
	objs, err := Collect(f.ByType("Object"))
	require.NoError(t, err)
	for _, o := range objs {
		n, err := o.String("id.name")
		require.NoError(t, err)
		if n == name {
			return o
		}
	}
	t.Fatalf("object %q not found", name)
	return Instance{}
}
