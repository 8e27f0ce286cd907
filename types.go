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
	"fmt"
	"strings"
)

// Endianness is the byte order a file was written with.
type Endianness byte

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// Order returns the matching binary.ByteOrder.
func (e Endianness) Order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// FileHeader is the 12 byte header at the start of every blend file.
type FileHeader struct {
	Magic [7]byte

	// PointerWidth is 4 or 8. All pointer fields and block addresses
	// are this wide, regardless of the host.
	PointerWidth int
	Endianness   Endianness

	// Version holds the digits of the Blender version, "280" for 2.80.
	Version [3]byte
}

// Order returns the byte order of the file.
func (h FileHeader) Order() binary.ByteOrder {
	return h.Endianness.Order()
}

// VersionString formats the version as Blender does, eg. "2.80".
func (h FileHeader) VersionString() string {
	return fmt.Sprintf("%c.%c%c", h.Version[0], h.Version[1], h.Version[2])
}

func (h FileHeader) String() string {
	return fmt.Sprintf("%s v%s, %d-bit pointers, %s",
		h.Magic[:], h.VersionString(), h.PointerWidth*8, h.Endianness)
}

// BlockCode is the 4 byte identifier of a file-block. Codes of ID
// blocks are two letters padded with zero bytes, eg. "OB\x00\x00".
type BlockCode [4]byte

// Code builds a BlockCode from a string of at most 4 bytes, padding
// with zero bytes.
func Code(s string) BlockCode {
	var c BlockCode
	copy(c[:], s)
	return c
}

func (c BlockCode) String() string {
	return strings.TrimRight(string(c[:]), "\x00")
}

// RawBlock is one file-block: the block header and its payload.
type RawBlock struct {
	Code BlockCode
	Len  uint32

	// Address is the memory address of the data when the file was
	// saved. 0 means the block cannot be pointed to.
	Address uint64

	// SDNAIndex is an index into the DNA struct table.
	SDNAIndex uint32

	// Count is the number of structs packed back to back in Data.
	Count uint32

	Data []byte

	// Offset of the block header in the file.
	Offset uint64
}

func (b *RawBlock) String() string {
	return fmt.Sprintf("%q len=%d addr=0x%x sdna=%d count=%d",
		b.Code.String(), b.Len, b.Address, b.SDNAIndex, b.Count)
}

// BlockStats provides statistics for blocks of one code.
type BlockStats struct {
	Blocks   int
	Elements int
	Bytes    uint64
}

// Stats provides general statistics of a file.
type Stats struct {
	// code => stats
	BlockStats map[BlockCode]*BlockStats
	Blocks     int
	Bytes      uint64

	Header FileHeader
}
