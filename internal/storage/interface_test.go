package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageArgs_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageArgs
		want PageArgs
	}{
		{"defaults", PageArgs{}, PageArgs{Page: 1, Limit: 10}},
		{"negative", PageArgs{Page: -3, Limit: -1}, PageArgs{Page: 1, Limit: 10}},
		{"limit capped", PageArgs{Page: 2, Limit: 1000}, PageArgs{Page: 2, Limit: MaxLimit}},
		{"huge page", PageArgs{Page: math.MaxInt, Limit: MaxLimit}, PageArgs{Page: MaxPage, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(10))
		})
	}
}

func TestPageArgs_OffsetNeverNegative(t *testing.T) {
	for _, page := range []int{1, 2, MaxPage, math.MaxInt / 2, math.MaxInt} {
		p := PageArgs{Page: page, Limit: MaxLimit}.Normalize(10)
		assert.GreaterOrEqual(t, p.Offset(), 0, "page %d", page)
	}
	assert.Equal(t, 20, PageArgs{Page: 3, Limit: 10}.Offset())
}
