package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedRecords returns n records {"i": 0..n-1}.
func numberedRecords(n int) []Value {
	out := make([]Value, n)
	for i := range out {
		out[i] = Object(M("i", Number(float64(i))))
	}
	return out
}

func TestBuildDataset_Empty(t *testing.T) {
	d, err := BuildDataset(nil)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestBuildDataset_WrapsRecordIndex(t *testing.T) {
	deep := Object(M("a", Object(M("b", Object(M("c", Number(1)))))))

	_, err := Flattener{MaxDepth: 2}.BuildDataset([]Value{Object(), deep})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDepthExceeded)
	assert.True(t, strings.HasPrefix(err.Error(), "record 1:"), err.Error())
}

func TestDataset_Columns(t *testing.T) {
	records := numberedRecords(12)
	// A key that only appears past the first page still becomes a column.
	records[11] = Object(M("late", String("x")), M("i", Number(11)))
	records[3] = Object(M("i", Number(3)), M("extra", Bool(true)))

	d, err := BuildDataset(records)
	require.NoError(t, err)

	assert.Equal(t, []string{"i", "extra", "late"}, d.Columns())
	assert.Equal(t, d.Columns(), d.Columns())
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			assert.Equal(t, tt.want, PageCount(tt.n, tt.size))
		})
	}
}

func TestDataset_Page(t *testing.T) {
	d, err := BuildDataset(numberedRecords(25))
	require.NoError(t, err)

	indexes := func(recs []FlatRecord) []int {
		out := make([]int, len(recs))
		for i, r := range recs {
			v, _ := r.Get("i")
			out[i] = int(v.NumberValue())
		}
		return out
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indexes(d.Page(1, 10)))
	assert.Equal(t, []int{20, 21, 22, 23, 24}, indexes(d.Page(3, 10)))
	assert.Empty(t, d.Page(4, 10))
	assert.Empty(t, d.Page(0, 10))
}

func TestValidatePage(t *testing.T) {
	assert.NoError(t, ValidatePage(1, 3))
	assert.NoError(t, ValidatePage(3, 3))
	assert.ErrorIs(t, ValidatePage(0, 3), ErrPageOutOfRange)
	assert.ErrorIs(t, ValidatePage(-1, 3), ErrPageOutOfRange)
	assert.ErrorIs(t, ValidatePage(4, 3), ErrPageOutOfRange)
	assert.ErrorIs(t, ValidatePage(1, 0), ErrPageOutOfRange)
}

func TestDataset_NilSafe(t *testing.T) {
	var d *Dataset
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Columns())
	assert.Nil(t, d.Page(1, 10))
	assert.Equal(t, 0, d.Collisions())
}
