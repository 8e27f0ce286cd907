// Copyright 2019 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blendfile

import "github.com/RoaringBitmap/roaring"

type emptyIterator struct {
}

func (e *emptyIterator) Next(*Instance) (bool, error) {
	return false, nil
}

// where records the accessor call that created an iterator, for
// error messages.
type where struct {
	structName string
	path       string
}

func (w where) annotate(err error) error {
	return annotate(err, w.structName, w.path)
}

// strideIter yields n structs laid out back to back.
type strideIter struct {
	f      *File
	block  int
	off    int
	layout *Layout
	n      int
	where  where

	// mutable
	k int
}

// Next implements the Iterator interface.
func (it *strideIter) Next(inst *Instance) (bool, error) {
	if it.k >= it.n {
		return false, nil
	}
	off := it.off + it.k*it.layout.Size
	if end := off + it.layout.Size; end > len(it.f.blocks[it.block].Data) {
		return false, it.where.annotate(failf(ErrOutOfBounds, "element %d ends at %d, past %d byte block",
			it.k, end, len(it.f.blocks[it.block].Data)))
	}
	*inst = it.f.instance(it.block, off, it.layout, it.k)
	it.k++
	return true, nil
}

// listIter follows the next pointers of a linked list.
type listIter struct {
	f     *File
	elem  *Field
	limit int
	where where

	// mutable
	addr uint64
	n    int
}

// Next implements the Iterator interface.
func (it *listIter) Next(inst *Instance) (bool, error) {
	if it.addr == 0 {
		return false, nil
	}
	if it.limit > 0 && it.n >= it.limit {
		return false, it.where.annotate(failf(ErrListLimit, "more than %d elements", it.limit))
	}

	cur, _, err := it.f.deref(it.elem, it.addr)
	if err != nil {
		it.addr = 0
		return false, it.where.annotate(err)
	}
	off, ok := it.f.findNext(cur.layout)
	if !ok {
		it.addr = 0
		return false, it.where.annotate(failf(ErrFieldTypeMismatch, "list element %s has no next pointer", cur.layout.Name))
	}
	next, err := cur.pointerAt(off)
	if err != nil {
		it.addr = 0
		return false, it.where.annotate(err)
	}

	cur.index = it.n
	*inst = cur
	it.addr = next
	it.n++
	return true, nil
}

// findNext returns the offset of the next pointer of a list element.
// Elements that embed their link in a leading member, such as ID
// blocks, are searched through the chain of first members.
func (f *File) findNext(l *Layout) (int, bool) {
	base := 0
	for depth := 0; depth <= len(f.layouts); depth++ {
		if fd, ok := l.Field("next"); ok && fd.PointerDepth == 1 && len(fd.Dims) == 0 {
			return base + fd.Offset, true
		}
		if len(l.Fields) == 0 {
			return 0, false
		}
		first := &l.Fields[0]
		if first.PointerDepth != 0 || first.StructIndex < 0 || len(first.Dims) > 0 {
			return 0, false
		}
		base += first.Offset
		l = f.layouts[first.StructIndex]
	}
	return 0, false
}

// pointerIter yields the targets of n consecutive pointers, skipping
// null entries.
type pointerIter struct {
	f     *File
	block int
	off   int
	n     int
	elem  *Field
	where where

	// mutable
	k int
}

// Next implements the Iterator interface.
func (it *pointerIter) Next(inst *Instance) (bool, error) {
	pw := it.f.header.PointerWidth
	data := it.f.blocks[it.block].Data
	for ; it.k < it.n; it.k++ {
		off := it.off + it.k*pw
		if off+pw > len(data) {
			return false, it.where.annotate(failf(ErrOutOfBounds, "pointer %d past %d byte block", it.k, len(data)))
		}
		addr := getPointer(data[off:], pw, it.f.header.Order())
		if addr == 0 {
			continue
		}
		res, _, err := it.f.deref(it.elem, addr)
		if err != nil {
			return false, it.where.annotate(err)
		}
		res.index = it.k
		it.k++
		*inst = res
		return true, nil
	}
	return false, nil
}

// topLevelIter yields every element of the blocks in a bitmap of
// block positions.
type topLevelIter struct {
	f  *File
	it roaring.IntIterable

	// mutable
	block  int
	layout *Layout
	elem   int
	count  int
}

// Next implements the Iterator interface.
func (it *topLevelIter) Next(inst *Instance) (bool, error) {
	for it.elem >= it.count {
		if !it.it.HasNext() {
			return false, nil
		}
		it.block = int(it.it.Next())
		b := &it.f.blocks[it.block]
		it.layout = it.f.layouts[b.SDNAIndex]
		it.elem = 0
		it.count = it.f.fittingElements(b)
	}
	*inst = it.f.instance(it.block, it.elem*it.layout.Size, it.layout, it.elem)
	it.elem++
	return true, nil
}

// Collect drains an iterator into a slice.
func Collect(it Iterator) ([]Instance, error) {
	var res []Instance
	for {
		var inst Instance
		ok, err := it.Next(&inst)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, nil
		}
		res = append(res, inst)
	}
}
