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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	for _, tc := range []struct {
		in    string
		width int
		end   Endianness
		ver   string
	}{
		{"BLENDER-v280", 8, LittleEndian, "2.80"},
		{"BLENDER_V249", 4, BigEndian, "2.49"},
		{"BLENDER_v300", 4, LittleEndian, "3.00"},
		{"BLENDER-V402", 8, BigEndian, "4.02"},
	} {
		h, err := decodeHeader([]byte(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.width, h.PointerWidth, tc.in)
		assert.Equal(t, tc.end, h.Endianness, tc.in)
		assert.Equal(t, tc.ver, h.VersionString(), tc.in)
		assert.Equal(t, magic, h.Magic)
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"BLENDER-v28",
		"BLENDEX-v280",
		"blender-v280",
		"BLENDER+v280",
		"BLENDER-x280",
		"BLENDER-v2a0",
	} {
		_, err := decodeHeader([]byte(in))
		assert.True(t, errors.Is(err, ErrContainerFormat), "%q: got %v", in, err)
	}
}

func TestEncodeHeader(t *testing.T) {
	out := make([]byte, headerSize)
	require.NoError(t, encodeHeader(out, header32BE))
	assert.Equal(t, "BLENDER_V249", string(out))

	require.NoError(t, encodeHeader(out, header64LE))
	assert.Equal(t, "BLENDER-v280", string(out))

	bad := header64LE
	bad.PointerWidth = 2
	assert.Error(t, encodeHeader(out, bad))
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	for _, h := range []FileHeader{header64LE, header32BE} {
		b := RawBlock{
			Code:      Code("OB"),
			Len:       216,
			Address:   0x7fff1234,
			SDNAIndex: 7,
			Count:     2,
		}
		out := make([]byte, blockHeaderSize(h.PointerWidth))
		n := encodeBlockHeader(out, &b, h)
		assert.Equal(t, blockHeaderSize(h.PointerWidth), n)

		got, ok := decodeBlockHeader(out, h)
		require.True(t, ok)
		assert.Equal(t, b, got, h.String())

		_, ok = decodeBlockHeader(out[:n-1], h)
		assert.False(t, ok)
	}
}

func TestBlockHeaderEndianness(t *testing.T) {
	b := RawBlock{Code: Code("ME"), Len: 1, Address: 0x01020304, SDNAIndex: 5, Count: 1}
	out := make([]byte, blockHeaderSize(4))
	encodeBlockHeader(out, &b, header32BE)
	assert.Equal(t, []byte{0, 0, 0, 1}, out[4:8])
	assert.Equal(t, []byte{1, 2, 3, 4}, out[8:12])

	le := header32BE
	le.Endianness = LittleEndian
	got, ok := decodeBlockHeader(out, le)
	require.True(t, ok)
	assert.Equal(t, uint32(0x01000000), got.Len)
	assert.Equal(t, uint64(0x04030201), got.Address)

	encodeBlockHeader(out, &b, le)
	assert.Equal(t, []byte{1, 0, 0, 0}, out[4:8])
	got, ok = decodeBlockHeader(out, header32BE)
	require.True(t, ok)
	assert.Equal(t, uint32(0x01000000), got.Len)
	assert.Equal(t, uint32(0x05000000), got.SDNAIndex)
}

func TestPointerWidth(t *testing.T) {
	buf := make([]byte, 8)
	putPointer(buf, 0xdeadbeef, 4, header32BE.Order())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}, buf)
	assert.Equal(t, uint64(0xdeadbeef), getPointer(buf, 4, header32BE.Order()))

	putPointer(buf, 0x1122334455667788, 8, header64LE.Order())
	assert.Equal(t, uint64(0x1122334455667788), getPointer(buf, 8, header64LE.Order()))
}
