/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

var magic = [7]byte{'B', 'L', 'E', 'N', 'D', 'E', 'R'}

const headerSize = 12

// Pointer width and endianness tags of the file header.
const (
	pointerTag32 = '_'
	pointerTag64 = '-'
	endianTagLE  = 'v'
	endianTagBE  = 'V'
)

// blockHeaderSize returns the size of a block header for the given
// pointer width: code, length, address, sdna index, count.
func blockHeaderSize(ptrWidth int) int {
	return 4 + 4 + ptrWidth + 4 + 4
}

// DNA payload tags.
var (
	dnaMagic = [4]byte{'S', 'D', 'N', 'A'}
	tagNames = [4]byte{'N', 'A', 'M', 'E'}
	tagTypes = [4]byte{'T', 'Y', 'P', 'E'}
	tagTLen  = [4]byte{'T', 'L', 'E', 'N'}
	tagStrc  = [4]byte{'S', 'T', 'R', 'C'}
)

// Block codes with special meaning.
var (
	CodeDNA  = BlockCode{'D', 'N', 'A', '1'}
	CodeEnd  = BlockCode{'E', 'N', 'D', 'B'}
	CodeData = BlockCode{'D', 'A', 'T', 'A'}
	CodeRend = BlockCode{'R', 'E', 'N', 'D'}
	CodeTest = BlockCode{'T', 'E', 'S', 'T'}
	CodeGlob = BlockCode{'G', 'L', 'O', 'B'}
	CodeUser = BlockCode{'U', 'S', 'E', 'R'}
)

// isMetaCode reports whether blocks with this code are excluded from
// top-level instance iteration. REND and TEST carry raw, untyped data.
func isMetaCode(c BlockCode) bool {
	switch c {
	case CodeDNA, CodeEnd, CodeRend, CodeTest:
		return true
	}
	return false
}

const gzipMagic0, gzipMagic1 = 0x1f, 0x8b
