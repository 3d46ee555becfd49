// Package fmatrix reads and writes fundamental matrices as single-line text files.
package fmatrix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// DirName is the directory, relative to the dataset root, that holds the matrix files.
const DirName = "fundemental_matrix"

// precision is the number of decimals written per element.
const precision = 12

// ErrMalformed is returned when a matrix file does not hold exactly nine numbers.
var ErrMalformed = errors.New("malformed fundamental matrix file")

// FileName returns the file name of the matrix mapping image i (reference) to image j (local).
func FileName(factor, i, j int) string {
	return fmt.Sprintf("fundemental_matrix_%02d_%02d_%02d.txt", factor, i, j)
}

// Path returns the location of the (i, j) matrix file under datadir.
func Path(datadir string, factor, i, j int) string {
	return filepath.Join(datadir, DirName, FileName(factor, i, j))
}

// Encode writes the 9 elements of a 3x3 matrix in row-major order on one line.
func Encode(out io.Writer, m mat.Matrix) error {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return errors.Errorf("expected a 3x3 matrix, got %dx%d", r, c)
	}
	var sb strings.Builder
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i+j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(m.At(i, j), 'f', precision, 64))
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(out, sb.String())
	return err
}

// Decode reads a matrix written by Encode. Any whitespace separates elements.
func Decode(in io.Reader) (*mat.Dense, error) {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	data := make([]float64, 0, 9)
	for scanner.Scan() {
		if len(data) == 9 {
			return nil, errors.Wrap(ErrMalformed, "more than 9 elements")
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "invalid element %d %q", len(data), scanner.Text())
		}
		data = append(data, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) != 9 {
		return nil, errors.Wrapf(ErrMalformed, "expected 9 elements, got %d", len(data))
	}
	return mat.NewDense(3, 3, data), nil
}

// WriteFile writes m to path, replacing any previous content.
func WriteFile(path string, m mat.Matrix) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return Encode(f, m)
}

// ReadFile reads the matrix stored at path.
func ReadFile(path string) (*mat.Dense, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	m, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return m, nil
}
