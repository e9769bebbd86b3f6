package block

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRowCount(t *testing.T) {
	for n := 0; n <= 8; n++ {
		data := make([]byte, n)
		rows := slices.Collect(Decode(data))
		require.Len(t, rows, n)
		for i, r := range rows {
			assert.Equal(t, i, r.Offset)
		}
	}
}

func TestDecodeAbsentTrailingValues(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	n := len(data)
	for r := range Decode(data) {
		assert.Equal(t, r.Offset+1 < n, r.HasInt, "int presence at %d", r.Offset)
		assert.Equal(t, r.Offset+3 < n, r.HasFloat, "float presence at %d", r.Offset)
		if !r.HasInt {
			assert.Zero(t, r.Int)
		}
		if !r.HasFloat {
			assert.Zero(t, r.Float)
		}
	}
}

func TestDecodeKnownBuffer(t *testing.T) {
	data := []byte{0x00, 0x01, 0x3F, 0x80, 0x00, 0x00}
	rows := slices.Collect(Decode(data))
	require.Len(t, rows, 6)

	r0 := rows[0]
	assert.Equal(t, byte(0), r0.Byte)
	assert.False(t, r0.Bool)
	require.True(t, r0.HasInt)
	assert.Equal(t, int16(1), r0.Int)
	require.True(t, r0.HasFloat)
	assert.Equal(t, math.Float32frombits(0x00013F80), r0.Float)

	r2 := rows[2]
	assert.True(t, r2.Bool)
	assert.Equal(t, int16(0x3F80), r2.Int)
	require.True(t, r2.HasFloat)
	assert.Equal(t, float32(1.0), r2.Float)
}

func TestDecodeThreeBytes(t *testing.T) {
	rows := slices.Collect(Decode([]byte{0xFF, 0x00, 0x01}))
	require.Len(t, rows, 3)

	assert.True(t, rows[0].HasInt)
	assert.Equal(t, int16(-256), rows[0].Int)
	assert.False(t, rows[0].HasFloat)

	assert.True(t, rows[1].HasInt)
	assert.Equal(t, int16(1), rows[1].Int)

	assert.False(t, rows[2].HasInt)
	assert.False(t, rows[2].HasFloat)
	assert.True(t, rows[2].Bool)
}

func TestDecodeSignedInt(t *testing.T) {
	r := RowAt([]byte{0x80, 0x00}, 0)
	assert.Equal(t, int16(math.MinInt16), r.Int)
}

func TestDecodeSpecialFloats(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		check func(float32) bool
	}{
		{"nan", []byte{0x7F, 0xC0, 0x00, 0x00}, func(f float32) bool { return math.IsNaN(float64(f)) }},
		{"+inf", []byte{0x7F, 0x80, 0x00, 0x00}, func(f float32) bool { return math.IsInf(float64(f), 1) }},
		{"-inf", []byte{0xFF, 0x80, 0x00, 0x00}, func(f float32) bool { return math.IsInf(float64(f), -1) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := RowAt(tc.data, 0)
			require.True(t, r.HasFloat)
			assert.True(t, tc.check(r.Float))
		})
	}
}

func TestDecodeRestartable(t *testing.T) {
	seq := Decode([]byte{9, 8, 7})
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
}

func TestDecodeEarlyStop(t *testing.T) {
	count := 0
	for r := range Decode(make([]byte, 100)) {
		count++
		if r.Offset == 4 {
			break
		}
	}
	assert.Equal(t, 5, count)
}

func TestNewCopiesData(t *testing.T) {
	src := []byte{1, 2, 3}
	b := New(7, src, time.Unix(0, 0))
	src[0] = 99

	assert.Equal(t, 7, b.DB)
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, byte(1), b.Data[0])
}

func TestNilBlock(t *testing.T) {
	var b *Block
	assert.Equal(t, 0, b.Size())
	assert.Empty(t, slices.Collect(b.Rows()))
}
