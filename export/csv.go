// Package export writes decoded data block rows as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"plclogger/block"
)

// Header is the first record of every export.
var Header = []string{"Byte Offset", "Raw Byte", "As Bool", "As Int", "As Float"}

// FileName returns the export file name for a DB read at t.
func FileName(db int, t time.Time) string {
	return fmt.Sprintf("plc_db%d_data_%s.csv", db, t.Format("20060102_150405"))
}

// WriteCSV writes the header followed by one record per row and returns the number
// of data records written.
func WriteCSV(w io.Writer, rows iter.Seq[block.Row]) (int, error) {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	n := 0
	record := make([]string, len(Header))
	for r := range rows {
		record[0] = strconv.Itoa(r.Offset)
		record[1] = strconv.Itoa(int(r.Byte))
		record[2] = formatBool(r.Bool)
		record[3] = ""
		if r.HasInt {
			record[3] = strconv.Itoa(int(r.Int))
		}
		record[4] = ""
		if r.HasFloat {
			record[4] = FormatFloat(r.Float)
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("write row %d: %w", r.Offset, err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}

// ToFile creates or truncates path and writes rows to it.
// The write is not atomic; a failure can leave a partial file behind.
func ToFile(path string, rows iter.Seq[block.Row]) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, rows)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatFloat renders a REAL as the shortest decimal that round-trips the value
// widened to float64, keeping ".0" on integral values and switching to exponent form
// outside [1e-4, 1e16).
func FormatFloat(f float32) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil {
		return sci
	}
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
