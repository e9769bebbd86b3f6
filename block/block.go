// Package block holds a raw S7 data block and decodes it into per-offset rows.
package block

import (
	"encoding/binary"
	"iter"
	"math"
	"time"
)

// Block is the raw content of one data block as returned by a single read.
// Data must not be modified after the block is created.
type Block struct {
	DB     int
	Data   []byte
	ReadAt time.Time
}

// New copies data into a new Block.
func New(db int, data []byte, readAt time.Time) *Block {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Block{DB: db, Data: buf, ReadAt: readAt}
}

// Size returns the number of bytes in the block.
func (b *Block) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Rows returns the decoded rows of the block.
func (b *Block) Rows() iter.Seq[Row] {
	if b == nil {
		return Decode(nil)
	}
	return Decode(b.Data)
}

// Row is one offset of a block read as every supported interpretation.
// Rows overlap: the INT at offset i shares its low byte with the INT at i+1.
type Row struct {
	Offset   int
	Byte     byte
	Bool     bool
	Int      int16
	HasInt   bool
	Float    float32
	HasFloat bool
}

// Decode returns a lazy sequence of rows, one per byte of data, in offset order.
// The sequence can be ranged over any number of times.
func Decode(data []byte) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := range data {
			if !yield(RowAt(data, i)) {
				return
			}
		}
	}
}

// RowAt decodes the row at offset i. Multi-byte values are big-endian (native S7 order)
// and are left absent when fewer than 2 (INT) or 4 (REAL) bytes remain.
func RowAt(data []byte, i int) Row {
	r := Row{
		Offset: i,
		Byte:   data[i],
		Bool:   data[i] != 0,
	}
	if i+1 < len(data) {
		r.Int = int16(binary.BigEndian.Uint16(data[i : i+2]))
		r.HasInt = true
	}
	if i+3 < len(data) {
		r.Float = math.Float32frombits(binary.BigEndian.Uint32(data[i : i+4]))
		r.HasFloat = true
	}
	return r
}
