package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   []Range
		want []Range
	}{
		{
			name: "empty",
			in:   nil,
			want: []Range{},
		},
		{
			name: "unsorted disjoint",
			in:   []Range{{Start: 30, End: 40}, {Start: 0, End: 10}},
			want: []Range{{Start: 0, End: 10}, {Start: 30, End: 40}},
		},
		{
			name: "overlapping merged",
			in:   []Range{{Start: 0, End: 15}, {Start: 10, End: 20}},
			want: []Range{{Start: 0, End: 20}},
		},
		{
			name: "adjacent merged",
			in:   []Range{{Start: 0, End: 10}, {Start: 10, End: 20}},
			want: []Range{{Start: 0, End: 20}},
		},
		{
			name: "zero duration dropped",
			in:   []Range{{Start: 5, End: 5}, {Start: 0, End: 10}},
			want: []Range{{Start: 0, End: 10}},
		},
		{
			name: "contained absorbed",
			in:   []Range{{Start: 0, End: 100}, {Start: 20, End: 30}},
			want: []Range{{Start: 0, End: 100}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestIntersect(t *testing.T) {
	a := []Range{{Start: 0, End: 10}, {Start: 20, End: 30}}
	b := []Range{{Start: 5, End: 25}}

	got := Intersect(a, b)
	assert.Equal(t, []Range{{Start: 5, End: 10}, {Start: 20, End: 25}}, got)

	assert.Nil(t, Intersect(a, []Range{{Start: 10, End: 20}}))
}

func TestUnion(t *testing.T) {
	a := []Range{{Start: 0, End: 10}}
	b := []Range{{Start: 5, End: 20}, {Start: 30, End: 40}}

	got := Union(a, b)
	assert.Equal(t, []Range{{Start: 0, End: 20}, {Start: 30, End: 40}}, got)
}

func TestComplement(t *testing.T) {
	within := Range{Start: 0, End: 100}

	cases := []struct {
		name   string
		ranges []Range
		want   []Range
	}{
		{
			name: "nothing covered",
			want: []Range{{Start: 0, End: 100}},
		},
		{
			name:   "fully covered",
			ranges: []Range{{Start: 0, End: 100}},
			want:   nil,
		},
		{
			name:   "interior gap",
			ranges: []Range{{Start: 0, End: 40}, {Start: 60, End: 100}},
			want:   []Range{{Start: 40, End: 60}},
		},
		{
			name:   "uncovered edges",
			ranges: []Range{{Start: 20, End: 80}},
			want:   []Range{{Start: 0, End: 20}, {Start: 80, End: 100}},
		},
		{
			name:   "range outside window clipped",
			ranges: []Range{{Start: -50, End: 10}, {Start: 90, End: 150}},
			want:   []Range{{Start: 10, End: 90}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Complement(tc.ranges, within))
		})
	}
}

func TestRangeIntersect(t *testing.T) {
	a := Range{Start: 0, End: 10}

	got := a.Intersect(Range{Start: 5, End: 20})
	assert.Equal(t, Range{Start: 5, End: 10}, got)

	disjoint := a.Intersect(Range{Start: 50, End: 60})
	assert.Equal(t, int64(0), disjoint.Duration())
}

func TestRangeContainsOverlaps(t *testing.T) {
	r := Range{Start: 10, End: 20}

	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(19))
	assert.False(t, r.Contains(20))
	assert.False(t, r.Contains(9))

	assert.True(t, r.Overlaps(Range{Start: 19, End: 30}))
	assert.False(t, r.Overlaps(Range{Start: 20, End: 30}))
	assert.False(t, r.Overlaps(Range{Start: 0, End: 10}))
}

func TestTotalDuration(t *testing.T) {
	assert.Equal(t, int64(0), TotalDuration(nil))
	assert.Equal(t, int64(30), TotalDuration([]Range{{Start: 0, End: 10}, {Start: 50, End: 70}}))
}
