/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FieldName is the decomposition of a field name as spelled in the
// DNA, eg. "*next", "mat[4][4]" or "(*func)()".
type FieldName struct {
	Name         string
	PointerDepth int

	// Dims are the array extents, outermost first. Empty for scalars.
	Dims []int

	// FuncPointer is set for function pointers; their PointerDepth
	// is 1.
	FuncPointer bool
}

// Len returns the number of elements: the product of the dimensions,
// or 1 for a scalar.
func (n FieldName) Len() int {
	l := 1
	for _, d := range n.Dims {
		l *= d
	}
	return l
}

func (n FieldName) String() string {
	if n.FuncPointer {
		return "(*" + n.Name + ")()"
	}
	var sb strings.Builder
	sb.WriteString(strings.Repeat("*", n.PointerDepth))
	sb.WriteString(n.Name)
	for _, d := range n.Dims {
		sb.WriteString("[" + strconv.Itoa(d) + "]")
	}
	return sb.String()
}

// ParseFieldName decomposes a DNA field name. Leading '*' count as
// pointer indirections, trailing bracketed numbers are array
// dimensions.
func ParseFieldName(s string) (FieldName, error) {
	if strings.HasPrefix(s, "(*") {
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return FieldName{}, errors.Errorf("field name %q: unterminated function pointer", s)
		}
		name, args := s[2:end], s[end+1:]
		if name == "" || !strings.HasPrefix(args, "(") || !strings.HasSuffix(args, ")") {
			return FieldName{}, errors.Errorf("field name %q: malformed function pointer", s)
		}
		return FieldName{Name: name, PointerDepth: 1, FuncPointer: true}, nil
	}

	depth := 0
	for depth < len(s) && s[depth] == '*' {
		depth++
	}

	name, dims, err := splitIndices(s[depth:])
	if err != nil {
		return FieldName{}, errors.Wrapf(err, "field name %q", s)
	}
	for _, d := range dims {
		if d <= 0 {
			return FieldName{}, errors.Errorf("field name %q: non-positive dimension %d", s, d)
		}
	}
	return FieldName{Name: name, PointerDepth: depth, Dims: dims}, nil
}

// splitIndices splits "name[1][2]" into "name" and [1, 2].
func splitIndices(s string) (string, []int, error) {
	br := strings.IndexByte(s, '[')
	if br < 0 {
		br = len(s)
	}
	name, rest := s[:br], s[br:]
	if name == "" {
		return "", nil, errors.New("empty name")
	}
	if strings.ContainsAny(name, "]*()") {
		return "", nil, errors.Errorf("invalid character in %q", name)
	}

	var idx []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, errors.Errorf("unbalanced brackets in %q", s)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil || n < 0 {
			return "", nil, errors.Errorf("bad index %q", rest[1:end])
		}
		idx = append(idx, n)
		rest = rest[end+1:]
	}
	return name, idx, nil
}
