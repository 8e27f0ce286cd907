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

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// Writer writes a single blend file: the header, a sequence of
// blocks, and the ENDB terminator. It frames blocks only; payloads
// are written as given.
type Writer struct {
	out    io.Writer
	header FileHeader

	// offset where to write next block.
	next uint64

	// scratch space for block headers.
	buf []byte

	closed bool

	Stats Stats
}

// NewWriter creates a writer and writes the file header.
func NewWriter(out io.Writer, hdr FileHeader) (*Writer, error) {
	hdr.Magic = magic
	w := &Writer{
		out:    out,
		header: hdr,
		buf:    make([]byte, blockHeaderSize(8)),
	}
	w.Stats.BlockStats = map[BlockCode]*BlockStats{}
	w.Stats.Header = hdr

	hb := make([]byte, headerSize)
	if err := encodeHeader(hb, hdr); err != nil {
		return nil, err
	}
	if err := w.write(hb); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.out.Write(b)
	w.next += uint64(n)
	return err
}

// WriteBlock writes b. The length in the header is taken from b.Data;
// b.Offset is set to the position of the block header in the output.
func (w *Writer) WriteBlock(b *RawBlock) error {
	if w.closed {
		return errors.New("blendfile: write after Close")
	}
	if uint64(len(b.Data)) > math.MaxUint32 {
		return errors.Errorf("blendfile: block %s too large: %d bytes", b.Code, len(b.Data))
	}
	if b.Code == CodeEnd {
		return errors.New("blendfile: ENDB is written by Close")
	}
	if w.header.PointerWidth == 4 && b.Address > math.MaxUint32 {
		return errors.Errorf("blendfile: address 0x%x does not fit 4 byte pointers", b.Address)
	}

	b.Len = uint32(len(b.Data))
	b.Offset = w.next
	n := encodeBlockHeader(w.buf, b, w.header)
	if err := w.write(w.buf[:n]); err != nil {
		return err
	}
	if err := w.write(b.Data); err != nil {
		return err
	}

	bs, ok := w.Stats.BlockStats[b.Code]
	if !ok {
		bs = &BlockStats{}
		w.Stats.BlockStats[b.Code] = bs
	}
	bs.Blocks++
	bs.Elements += int(b.Count)
	bs.Bytes += uint64(b.Len)
	w.Stats.Blocks++
	w.Stats.Bytes += uint64(b.Len)
	return nil
}

// WriteDNA encodes d and writes it as the DNA1 block.
func (w *Writer) WriteDNA(d *DNA) error {
	return w.WriteBlock(&RawBlock{
		Code:  CodeDNA,
		Count: 1,
		Data:  EncodeDNA(d, w.header.Order()),
	})
}

// Close writes the ENDB block. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	end := RawBlock{Code: CodeEnd}
	n := encodeBlockHeader(w.buf, &end, w.header)
	return w.write(w.buf[:n])
}
