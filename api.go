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

// Package blendfile reads Blender .blend files. Field layouts are not
// compiled in: they are derived at runtime from the DNA block that
// every file carries, so files of any Blender version can be queried
// by field name.
package blendfile

import "go.uber.org/zap"

// BlockSource is an interface for reading blend file bytes.
type BlockSource interface {
	Size() uint64
	ReadBlock(off uint64, size int) ([]byte, error)
	Close() error
}

// Iterator is an iterator over instances.
type Iterator interface {
	// Reads the next instance (returning true), or returns false if
	// there are no more instances.
	Next(inst *Instance) (bool, error)
}

// Options define how a file is opened.
type Options struct {
	// Logger receives debug and warning messages. If nil, nothing is
	// logged.
	Logger *zap.Logger

	// ListLimit bounds the number of elements List will visit. 0
	// means unlimited; a cyclic list then never terminates.
	ListLimit int
}

func (opts *Options) setDefaults() {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
}
