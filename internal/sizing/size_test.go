package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestRoundUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, block uint64
		want     uint64
		ok       bool
	}{
		{0, 16, 0, true},
		{1, 16, 16, true},
		{16, 16, 16, true},
		{23, 16, 32, true},
		{33, 16, 48, true},
		{7, 0, 7, true},
		{math.MaxUint64, 16, 0, false},
	}
	for _, tt := range tests {
		got, ok := RoundUp(tt.n, tt.block)
		assert.Equal(t, tt.ok, ok, "RoundUp(%d, %d)", tt.n, tt.block)
		assert.Equal(t, tt.want, got, "RoundUp(%d, %d)", tt.n, tt.block)
	}
}

func TestAddAndMul(t *testing.T) {
	t.Parallel()

	_, ok := AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
	sum, ok := AddUint64(40, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), sum)

	_, ok = MulUint64(math.MaxUint64, 2)
	assert.False(t, ok)
	product, ok := MulUint64(288, 4)
	assert.True(t, ok)
	assert.Equal(t, uint64(1152), product)
}

func TestFits(t *testing.T) {
	t.Parallel()

	assert.True(t, Fits(0, 10, 10))
	assert.True(t, Fits(10, 0, 10))
	assert.False(t, Fits(5, 6, 10))
	assert.False(t, Fits(math.MaxUint64, 2, 10))
}

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(12, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = ToInt(math.MaxUint64, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}
