/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ByteBlockSource is an in-memory block source.
type ByteBlockSource struct {
	Source []byte
}

func (s *ByteBlockSource) Size() uint64 {
	return uint64(len(s.Source))
}

func (s *ByteBlockSource) ReadBlock(off uint64, sz int) ([]byte, error) {
	if off >= uint64(len(s.Source)) {
		return nil, nil
	}
	end := off + uint64(sz)
	if end > uint64(len(s.Source)) {
		end = uint64(len(s.Source))
	}
	return s.Source[off:end], nil
}

func (s *ByteBlockSource) Close() error {
	return nil
}

// Reader splits a blend file into its file-blocks.
type Reader struct {
	header FileHeader
	blocks []RawBlock

	src  BlockSource
	size uint64
}

// Close closes the underlying source.
func (r *Reader) Close() error {
	return r.src.Close()
}

// Header returns the file header.
func (r *Reader) Header() FileHeader {
	return r.header
}

// Blocks returns all file-blocks in file order, excluding the ENDB
// terminator.
func (r *Reader) Blocks() []RawBlock {
	return r.blocks
}

// NewReader reads the header and every file-block of src.
func NewReader(src BlockSource, opts *Options) (*Reader, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.setDefaults()

	r := &Reader{
		src:  src,
		size: src.Size(),
	}

	headblock, err := src.ReadBlock(0, headerSize)
	if err != nil {
		return nil, err
	}
	if r.header, err = decodeHeader(headblock); err != nil {
		return nil, err
	}

	if err := r.readBlocks(); err != nil {
		return nil, err
	}

	o.Logger.Debug("read blocks",
		zap.Stringer("header", r.header),
		zap.Int("blocks", len(r.blocks)),
		zap.Uint64("size", r.size))
	return r, nil
}

func (r *Reader) readBlocks() error {
	hsz := blockHeaderSize(r.header.PointerWidth)
	off := uint64(headerSize)
	for {
		if off >= r.size {
			return errors.Wrapf(ErrContainerFormat, "end of file at %d, missing ENDB", off)
		}
		buf, err := r.src.ReadBlock(off, hsz)
		if err != nil {
			return err
		}

		// Some writers emit a bare "ENDB" without the rest of the
		// block header.
		if len(buf) >= 4 && BlockCode(buf[:4]) == CodeEnd {
			return nil
		}

		b, ok := decodeBlockHeader(buf, r.header)
		if !ok {
			return errors.Wrapf(ErrContainerFormat, "block header at %d: truncated, missing ENDB", off)
		}
		b.Offset = off
		off += uint64(hsz)

		if off+uint64(b.Len) > r.size {
			return errors.Wrapf(ErrContainerFormat, "block %q at %d: payload of %d bytes exceeds file",
				b.Code.String(), b.Offset, b.Len)
		}
		data, err := r.src.ReadBlock(off, int(b.Len))
		if err != nil {
			return err
		}
		if len(data) != int(b.Len) {
			return errors.Wrapf(ErrContainerFormat, "block %q at %d: short read", b.Code.String(), b.Offset)
		}
		b.Data = data
		off += uint64(b.Len)

		r.blocks = append(r.blocks, b)
	}
}
