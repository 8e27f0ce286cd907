/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import "go.uber.org/zap"

// AddressIndex maps the saved memory address of each block to its
// position in the block list.
type AddressIndex struct {
	pos map[uint64]int
}

// NewAddressIndex indexes all blocks with a nonzero address. If two
// blocks share an address the later one wins and a warning is logged.
func NewAddressIndex(blocks []RawBlock, logger *zap.Logger) *AddressIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &AddressIndex{pos: make(map[uint64]int, len(blocks))}
	for i := range blocks {
		addr := blocks[i].Address
		if addr == 0 {
			continue
		}
		if prev, ok := x.pos[addr]; ok {
			logger.Warn("duplicate block address",
				zap.Uint64("address", addr),
				zap.Int("previous", prev),
				zap.Int("block", i))
		}
		x.pos[addr] = i
	}
	return x
}

// Lookup returns the position of the block saved at addr. The null
// address is never found.
func (x *AddressIndex) Lookup(addr uint64) (int, bool) {
	if addr == 0 {
		return -1, false
	}
	i, ok := x.pos[addr]
	return i, ok
}

// Len returns the number of indexed addresses.
func (x *AddressIndex) Len() int {
	return len(x.pos)
}
