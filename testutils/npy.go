// Package testutils writes the on-disk datasets used by tests.
package testutils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"testing"

	"go.viam.com/test"
)

// WriteNpy writes rows as a C-ordered little endian float64 NumPy array.
func WriteNpy(t *testing.T, path string, rows [][]float64) {
	t.Helper()
	WriteNpyArray(t, path, rows, "<f8", false)
}

// WriteNpyArray writes rows as a little endian NumPy array of descr ("<f8" or "<f4"), laid out
// column major when fortran is set.
func WriteNpyArray(t *testing.T, path string, rows [][]float64, descr string, fortran bool) {
	t.Helper()
	test.That(t, descr == "<f8" || descr == "<f4", test.ShouldBeTrue)
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	for _, row := range rows {
		test.That(t, row, test.ShouldHaveLength, cols)
	}
	order := "False"
	if fortran {
		order = "True"
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': (%d, %d), }", descr, order, len(rows), cols)
	// magic, version and header length take 10 bytes; the header ends in a newline
	if pad := (64 - (10+len(header)+1)%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	values := make([]float64, 0, len(rows)*cols)
	if fortran {
		for c := 0; c < cols; c++ {
			for _, row := range rows {
				values = append(values, row[c])
			}
		}
	} else {
		for _, row := range rows {
			values = append(values, row...)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	test.That(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))), test.ShouldBeNil)
	buf.WriteString(header)
	if descr == "<f4" {
		values32 := make([]float32, len(values))
		for i, v := range values {
			values32[i] = float32(v)
		}
		test.That(t, binary.Write(&buf, binary.LittleEndian, values32), test.ShouldBeNil)
	} else {
		test.That(t, binary.Write(&buf, binary.LittleEndian, values), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(path, buf.Bytes(), 0o600), test.ShouldBeNil)
}
