package fmatrix

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestFileName(t *testing.T) {
	test.That(t, FileName(8, 0, 1), test.ShouldEqual, "fundemental_matrix_08_00_01.txt")
	test.That(t, FileName(4, 12, 3), test.ShouldEqual, "fundemental_matrix_04_12_03.txt")
	test.That(t, Path("data", 8, 2, 0), test.ShouldEqual,
		filepath.Join("data", "fundemental_matrix", "fundemental_matrix_08_02_00.txt"))
}

func TestEncode(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		0, 0, -1.25e-4,
		0, 1.25e-4, 1,
	})
	var buf bytes.Buffer
	test.That(t, Encode(&buf, m), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual,
		"0.000000000000 0.000000000000 0.000000000000 "+
			"0.000000000000 0.000000000000 -0.000125000000 "+
			"0.000000000000 0.000125000000 1.000000000000\n")

	test.That(t, Encode(&buf, mat.NewDense(2, 3, nil)), test.ShouldNotBeNil)
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(8, 1, 0))
	m := mat.NewDense(3, 3, []float64{
		1e-7, -2.5e-6, 3.1e-3,
		4.25e-6, 0, -0.0125,
		-0.003, 0.0117, 1,
	})
	test.That(t, WriteFile(path, m), test.ShouldBeNil)

	got, err := ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.EqualApprox(got, m, 1e-12), test.ShouldBeTrue)

	first, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, WriteFile(path, got), test.ShouldBeNil)
	second, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldResemble, first)
	test.That(t, strings.Count(string(first), "\n"), test.ShouldEqual, 1)
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"1 2 3 4 5 6 7 8",
		"1 2 3 4 5 6 7 8 9 10",
		"1 2 3 4 five 6 7 8 9",
	} {
		_, err := Decode(strings.NewReader(input))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrMalformed), test.ShouldBeTrue)
	}

	m, err := Decode(strings.NewReader("1 2 3\n4 5 6\n7 8 9\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.At(2, 0), test.ShouldEqual, 7.0)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}
