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
	"strings"

	"github.com/pkg/errors"
)

// pathElem is one component of a field path: a field name and the
// indices applied to it.
type pathElem struct {
	name string
	idx  []int
}

// parsePath splits a path such as "data.mat[1][2]" into its
// components.
func parsePath(path string) ([]pathElem, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}
	var elems []pathElem
	for _, comp := range strings.Split(path, ".") {
		if comp == "" {
			return nil, errors.Errorf("empty component in %q", path)
		}
		name, idx, err := splitIndices(comp)
		if err != nil {
			return nil, err
		}
		elems = append(elems, pathElem{name, idx})
	}
	return elems, nil
}

// subArray returns the byte offset of the element selected by idx
// within field f, and the number of base elements it spans. idx may
// select a whole row of a multi-dimensional array.
func subArray(f *Field, idx []int) (off, n int) {
	n = 1
	for _, d := range f.Dims[len(idx):] {
		n *= d
	}
	stride := n
	for k := len(idx) - 1; k >= 0; k-- {
		off += idx[k] * stride
		stride *= f.Dims[k]
	}
	return off * f.ElemSize, n
}

// checkIndices verifies idx against the dimensions of f.
func checkIndices(f *Field, idx []int) error {
	if len(idx) > len(f.Dims) {
		return failf(ErrFieldTypeMismatch, "%d indices on field with %d dimensions", len(idx), len(f.Dims))
	}
	for k, n := range idx {
		if n >= f.Dims[k] {
			return failf(ErrFieldTypeMismatch, "index %d out of range [0, %d)", n, f.Dims[k])
		}
	}
	return nil
}
