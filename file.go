/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// File is an opened blend file. All of its state is computed in Open
// and never modified afterwards, so a File may be queried from
// multiple goroutines.
type File struct {
	header FileHeader
	blocks []RawBlock

	dna      *DNA
	dnaBlock int
	layouts  []*Layout
	addrs    *AddressIndex

	// Positions of blocks that yield top-level instances, overall,
	// per code and per struct index.
	topLevel *roaring.Bitmap
	byCode   map[BlockCode]*roaring.Bitmap
	byStruct map[int]*roaring.Bitmap

	src  BlockSource
	opts Options
}

// OpenFile opens a blend file on local disk. Gzip compressed files are
// supported.
func OpenFile(name string, opts *Options) (*File, error) {
	src, err := NewFileBlockSource(name)
	if err != nil {
		return nil, err
	}
	if bs, ok := src.(*ByteBlockSource); ok {
		logInflated(opts, name, bs)
	}
	f, err := Open(src, opts)
	if err != nil {
		src.Close()
		return nil, err
	}
	return f, nil
}

// OpenBytes opens a blend file held in memory.
func OpenBytes(data []byte, opts *Options) (*File, error) {
	var src BlockSource = &ByteBlockSource{Source: data}
	if len(data) >= 2 && data[0] == gzipMagic0 && data[1] == gzipMagic1 {
		var err error
		if src, err = inflate(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		logInflated(opts, "<memory>", src.(*ByteBlockSource))
	}
	return Open(src, opts)
}

func logInflated(opts *Options, name string, bs *ByteBlockSource) {
	if opts != nil && opts.Logger != nil {
		opts.Logger.Debug("inflated gzip file", zap.String("name", name), zap.Int("size", len(bs.Source)))
	}
}

// Open reads all blocks of src, decodes the DNA and indexes the
// blocks. Any format error aborts the open.
func Open(src BlockSource, opts *Options) (*File, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.setDefaults()

	r, err := NewReader(src, &o)
	if err != nil {
		return nil, err
	}

	f := &File{
		header:   r.Header(),
		blocks:   r.Blocks(),
		dnaBlock: -1,
		topLevel: roaring.New(),
		byCode:   map[BlockCode]*roaring.Bitmap{},
		byStruct: map[int]*roaring.Bitmap{},
		src:      src,
		opts:     o,
	}

	for i := range f.blocks {
		if f.blocks[i].Code == CodeDNA {
			f.dnaBlock = i
			break
		}
	}
	if f.dnaBlock < 0 {
		return nil, errors.Wrap(ErrSchemaFormat, "no DNA1 block")
	}

	if f.dna, err = DecodeDNA(f.blocks[f.dnaBlock].Data, f.header.Order()); err != nil {
		return nil, err
	}
	if f.layouts, err = resolveLayouts(f.dna, f.header.PointerWidth); err != nil {
		return nil, err
	}
	f.addrs = NewAddressIndex(f.blocks, o.Logger)
	f.indexBlocks()

	o.Logger.Debug("opened blend file",
		zap.Stringer("header", f.header),
		zap.Int("blocks", len(f.blocks)),
		zap.Int("names", len(f.dna.Names)),
		zap.Int("types", len(f.dna.Types)),
		zap.Int("structs", len(f.dna.Structs)),
		zap.Int("addresses", f.addrs.Len()),
		zap.Uint64("instances", f.topLevel.GetCardinality()))
	return f, nil
}

func (f *File) indexBlocks() {
	for i := range f.blocks {
		b := &f.blocks[i]
		if isMetaCode(b.Code) || int(b.SDNAIndex) >= len(f.layouts) {
			continue
		}
		pos := uint32(i)
		f.topLevel.Add(pos)

		bm, ok := f.byCode[b.Code]
		if !ok {
			bm = roaring.New()
			f.byCode[b.Code] = bm
		}
		bm.Add(pos)

		si := int(b.SDNAIndex)
		bm, ok = f.byStruct[si]
		if !ok {
			bm = roaring.New()
			f.byStruct[si] = bm
		}
		bm.Add(pos)
	}
}

// Close releases the block source.
func (f *File) Close() error {
	return f.src.Close()
}

// Header returns the file header.
func (f *File) Header() FileHeader {
	return f.header
}

// Blocks returns all file-blocks in file order.
func (f *File) Blocks() []RawBlock {
	return f.blocks
}

// DNA returns the decoded schema.
func (f *File) DNA() *DNA {
	return f.dna
}

// Addresses returns the address index.
func (f *File) Addresses() *AddressIndex {
	return f.addrs
}

// Layout returns the layout of a struct.
func (f *File) Layout(structIndex int) *Layout {
	return f.layouts[structIndex]
}

// LayoutByName returns the layout of the struct with the given type
// name.
func (f *File) LayoutByName(name string) (*Layout, bool) {
	si, ok := f.dna.StructByName(name)
	if !ok {
		return nil, false
	}
	return f.layouts[si], true
}

// StructsWithPrefix returns the layouts of all structs whose type name
// starts with prefix, ordered by name.
func (f *File) StructsWithPrefix(prefix string) []*Layout {
	var res []*Layout
	for _, si := range f.dna.StructsWithPrefix(prefix) {
		res = append(res, f.layouts[si])
	}
	return res
}

// fittingElements returns how many structs of block b fit in its
// payload, at most b.Count.
func (f *File) fittingElements(b *RawBlock) int {
	size := f.layouts[b.SDNAIndex].Size
	n := int(b.Count)
	if size > 0 && len(b.Data)/size < n {
		n = len(b.Data) / size
	}
	return n
}

// Instances iterates over every element of every typed block.
func (f *File) Instances() Iterator {
	return f.blockIterator(f.topLevel)
}

// ByCode iterates over the elements of blocks with the given code. Two
// letter codes such as "OB" are padded with zero bytes.
func (f *File) ByCode(code string) Iterator {
	return f.blockIterator(f.byCode[Code(code)])
}

// ByType iterates over the elements of blocks whose struct type is
// the named one.
func (f *File) ByType(name string) Iterator {
	si, ok := f.dna.StructByName(name)
	if !ok {
		return &emptyIterator{}
	}
	return f.blockIterator(f.byStruct[si])
}

func (f *File) blockIterator(bm *roaring.Bitmap) Iterator {
	if bm == nil {
		return &emptyIterator{}
	}
	return &topLevelIter{f: f, it: bm.Iterator()}
}

// Resolve returns the instance stored at a saved memory address,
// typed by the block's own struct.
func (f *File) Resolve(addr uint64) (Instance, bool, error) {
	pos, ok := f.addrs.Lookup(addr)
	if !ok {
		return Instance{}, false, nil
	}
	b := &f.blocks[pos]
	if isMetaCode(b.Code) || int(b.SDNAIndex) >= len(f.layouts) {
		return Instance{}, false, errors.Wrapf(ErrFieldTypeMismatch,
			"block %q at 0x%x has no struct type", b.Code.String(), addr)
	}
	return f.instance(pos, 0, f.layouts[b.SDNAIndex], 0), true, nil
}

// Stats returns block statistics.
func (f *File) Stats() Stats {
	st := Stats{
		BlockStats: map[BlockCode]*BlockStats{},
		Header:     f.header,
	}
	for i := range f.blocks {
		b := &f.blocks[i]
		bs, ok := st.BlockStats[b.Code]
		if !ok {
			bs = &BlockStats{}
			st.BlockStats[b.Code] = bs
		}
		bs.Blocks++
		bs.Elements += int(b.Count)
		bs.Bytes += uint64(b.Len)
		st.Blocks++
		st.Bytes += uint64(b.Len)
	}
	return st
}
