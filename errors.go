/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned while opening a file. They abort the open.
var (
	// ErrContainerFormat is returned for a malformed file header or
	// block stream.
	ErrContainerFormat = errors.New("blendfile: malformed container")

	// ErrSchemaFormat is returned if the DNA block is missing,
	// truncated or inconsistent.
	ErrSchemaFormat = errors.New("blendfile: malformed DNA")
)

// Errors returned by Instance accessors. They are always wrapped in a
// *FieldError.
var (
	ErrUnknownField      = errors.New("unknown field")
	ErrFieldTypeMismatch = errors.New("field type mismatch")
	ErrUnresolvedPointer = errors.New("unresolved pointer")

	// ErrNilPointer is returned when a field path goes through a null
	// pointer.
	ErrNilPointer = errors.New("nil pointer in path")

	// ErrOutOfBounds is returned when a read would fall outside of the
	// payload of a block.
	ErrOutOfBounds = errors.New("read out of block bounds")

	// ErrListLimit is returned when a list is longer than
	// Options.ListLimit.
	ErrListLimit = errors.New("list limit exceeded")
)

// FieldError describes a failed field access.
type FieldError struct {
	// Struct is the type name of the instance the path was applied to.
	Struct string
	Path   string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("blendfile: %s.%s: %v", e.Struct, e.Path, e.Err)
	}
	return fmt.Sprintf("blendfile: %s.%s: %v: %s", e.Struct, e.Path, e.Err, e.Detail)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
