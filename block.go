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
	"encoding/binary"

	"github.com/pkg/errors"
)

// decodeHeader parses the 12 byte file header.
func decodeHeader(in []byte) (FileHeader, error) {
	var h FileHeader
	if len(in) < headerSize {
		return h, errors.Wrapf(ErrContainerFormat, "header: got %d bytes, want %d", len(in), headerSize)
	}

	copy(h.Magic[:], in[:7])
	if h.Magic != magic {
		return h, errors.Wrapf(ErrContainerFormat, "got magic %q, want %q", h.Magic[:], magic[:])
	}

	switch in[7] {
	case pointerTag32:
		h.PointerWidth = 4
	case pointerTag64:
		h.PointerWidth = 8
	default:
		return h, errors.Wrapf(ErrContainerFormat, "unknown pointer size tag %q", in[7])
	}

	switch in[8] {
	case endianTagLE:
		h.Endianness = LittleEndian
	case endianTagBE:
		h.Endianness = BigEndian
	default:
		return h, errors.Wrapf(ErrContainerFormat, "unknown endianness tag %q", in[8])
	}

	copy(h.Version[:], in[9:12])
	for _, c := range h.Version {
		if c < '0' || c > '9' {
			return h, errors.Wrapf(ErrContainerFormat, "bad version %q", h.Version[:])
		}
	}
	return h, nil
}

// encodeHeader writes h into out, which must hold headerSize bytes.
func encodeHeader(out []byte, h FileHeader) error {
	copy(out, magic[:])
	switch h.PointerWidth {
	case 4:
		out[7] = pointerTag32
	case 8:
		out[7] = pointerTag64
	default:
		return errors.Errorf("blendfile: invalid pointer width %d", h.PointerWidth)
	}
	if h.Endianness == BigEndian {
		out[8] = endianTagBE
	} else {
		out[8] = endianTagLE
	}
	copy(out[9:12], h.Version[:])
	return nil
}

// getPointer decodes a pointer of the given width.
func getPointer(in []byte, width int, order binary.ByteOrder) uint64 {
	if width == 4 {
		return uint64(order.Uint32(in))
	}
	return order.Uint64(in)
}

func putPointer(out []byte, v uint64, width int, order binary.ByteOrder) {
	if width == 4 {
		order.PutUint32(out, uint32(v))
		return
	}
	order.PutUint64(out, v)
}

// decodeBlockHeader parses a block header. The payload is not
// filled in.
func decodeBlockHeader(in []byte, h FileHeader) (b RawBlock, ok bool) {
	if len(in) < blockHeaderSize(h.PointerWidth) {
		return b, false
	}
	order := h.Order()
	copy(b.Code[:], in[:4])
	b.Len = order.Uint32(in[4:])
	b.Address = getPointer(in[8:], h.PointerWidth, order)
	in = in[8+h.PointerWidth:]
	b.SDNAIndex = order.Uint32(in)
	b.Count = order.Uint32(in[4:])
	return b, true
}

// encodeBlockHeader writes the header of b into out and returns the
// number of bytes written.
func encodeBlockHeader(out []byte, b *RawBlock, h FileHeader) int {
	order := h.Order()
	copy(out, b.Code[:])
	order.PutUint32(out[4:], b.Len)
	putPointer(out[8:], b.Address, h.PointerWidth, order)
	n := 8 + h.PointerWidth
	order.PutUint32(out[n:], b.SDNAIndex)
	order.PutUint32(out[n+4:], b.Count)
	return n + 8
}
