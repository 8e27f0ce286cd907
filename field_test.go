/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package blendfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldName(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want FieldName
	}{
		{"value", FieldName{Name: "value"}},
		{"*pmd", FieldName{Name: "pmd", PointerDepth: 1}},
		{"error[64]", FieldName{Name: "error", Dims: []int{64}}},
		{"*next", FieldName{Name: "next", PointerDepth: 1}},
		{"**mat", FieldName{Name: "mat", PointerDepth: 2}},
		{"loc[3]", FieldName{Name: "loc", Dims: []int{3}}},
		{"obmat[4][4]", FieldName{Name: "obmat", Dims: []int{4, 4}}},
		{"*mtex[18]", FieldName{Name: "mtex", PointerDepth: 1, Dims: []int{18}}},
		{"(*func)()", FieldName{Name: "func", PointerDepth: 1, FuncPointer: true}},
		{"(*poll)(void *, int)", FieldName{Name: "poll", PointerDepth: 1, FuncPointer: true}},
	} {
		got, err := ParseFieldName(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseFieldNameErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"*",
		"[3]",
		"loc[",
		"loc[3",
		"loc]3[",
		"loc[x]",
		"loc[0]",
		"loc[-1]",
		"loc[3]x",
		"(*func",
		"(*)()",
		"(*func)",
		"na(me",
	} {
		_, err := ParseFieldName(in)
		assert.Error(t, err, "%q", in)
	}
}

func TestFieldNameString(t *testing.T) {
	for _, in := range []string{"flag", "**mat", "obmat[4][4]", "*mtex[18]", "(*func)()"} {
		fn, err := ParseFieldName(in)
		require.NoError(t, err)
		assert.Equal(t, in, fn.String())
	}
}

func TestFieldNameLen(t *testing.T) {
	fn, err := ParseFieldName("m[2][3][4]")
	require.NoError(t, err)
	assert.Equal(t, 24, fn.Len())

	fn, err = ParseFieldName("*p")
	require.NoError(t, err)
	assert.Equal(t, 1, fn.Len())
}

func TestParsePath(t *testing.T) {
	elems, err := parsePath("id.name")
	require.NoError(t, err)
	assert.Equal(t, []pathElem{{name: "id"}, {name: "name"}}, elems)

	elems, err = parsePath("obmat[3][1]")
	require.NoError(t, err)
	assert.Equal(t, []pathElem{{name: "obmat", idx: []int{3, 1}}}, elems)

	for _, in := range []string{"", ".", "a..b", "a.", "a[", "a[x]"} {
		_, err := parsePath(in)
		assert.Error(t, err, "%q", in)
	}
}

func TestSubArray(t *testing.T) {
	f := &Field{FieldName: FieldName{Name: "m", Dims: []int{2, 3, 4}}, ElemSize: 4}

	for _, tc := range []struct {
		idx []int
		off int
		n   int
	}{
		{nil, 0, 24},
		{[]int{1}, 48, 12},
		{[]int{1, 2}, 80, 4},
		{[]int{1, 2, 3}, 92, 1},
		{[]int{0, 0, 1}, 4, 1},
	} {
		off, n := subArray(f, tc.idx)
		assert.Equal(t, tc.off, off, "%v", tc.idx)
		assert.Equal(t, tc.n, n, "%v", tc.idx)
	}

	assert.NoError(t, checkIndices(f, []int{1, 2, 3}))
	assert.Error(t, checkIndices(f, []int{2}))
	assert.Error(t, checkIndices(f, []int{0, 0, 0, 0}))
}
