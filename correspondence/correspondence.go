// Package correspondence loads the SIFT correspondences matched across image triples.
package correspondence

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"
)

// DirName is the directory, relative to the dataset root, that holds the correspondence files.
const DirName = "orginal_sift_correspondences"

// valuesPerRow is the number of values of one correspondence: x, y for the anchor and both images.
const valuesPerRow = 6

// ErrMissingInput is returned when the correspondence directory or a correspondence file does not exist.
var ErrMissingInput = errors.New("missing correspondence input")

// Key identifies the correspondences of an anchor image with a pair of other images.
type Key struct {
	Anchor int
	First  int
	Second int
}

// String returns the key formatted as kkk_iii_jjj.
func (k Key) String() string {
	return fmt.Sprintf("%03d_%03d_%03d", k.Anchor, k.First, k.Second)
}

// Correspondence is one point seen in the anchor image and both images of the pair.
type Correspondence struct {
	Anchor r2.Point
	First  r2.Point
	Second r2.Point
}

// Set is the ordered list of correspondences of one key. It may be empty.
type Set []Correspondence

// AnchorPoints returns the anchor image point of every correspondence.
func (s Set) AnchorPoints() []r2.Point {
	return lo.Map(s, func(c Correspondence, _ int) r2.Point { return c.Anchor })
}

// FirstPoints returns the first image point of every correspondence.
func (s Set) FirstPoints() []r2.Point {
	return lo.Map(s, func(c Correspondence, _ int) r2.Point { return c.First })
}

// SecondPoints returns the second image point of every correspondence.
func (s Set) SecondPoints() []r2.Point {
	return lo.Map(s, func(c Correspondence, _ int) r2.Point { return c.Second })
}

// Sets holds every loaded set by key. It is only read once loaded.
type Sets map[Key]Set

// Lookup returns the set of (k, i, j) and whether it was loaded.
func (s Sets) Lookup(k, i, j int) (Set, bool) {
	set, ok := s[Key{Anchor: k, First: i, Second: j}]
	return set, ok
}

// A Loader returns the correspondences of anchor k with the pair (i, j).
type Loader interface {
	Load(ctx context.Context, k, i, j int) (Set, error)
}

// FileLoader reads correspondences from the text files of a dataset directory.
type FileLoader struct {
	dir    string
	factor int
}

// NewFileLoader returns a loader over <datadir>/orginal_sift_correspondences. The directory
// must exist.
func NewFileLoader(datadir string, factor int) (*FileLoader, error) {
	dir := filepath.Join(datadir, DirName)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingInput, "no correspondence directory %s", dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrMissingInput, "%s is not a directory", dir)
	}
	return &FileLoader{dir: dir, factor: factor}, nil
}

// FileName returns the name of the correspondence file of anchor k and pair (i, j).
func FileName(factor, k, i, j int) string {
	return fmt.Sprintf("sift_%02d_%02d_%02d_%02d.txt", factor, k, i, j)
}

// Path returns the location of the correspondence file for (k, i, j).
func (fl *FileLoader) Path(k, i, j int) string {
	return filepath.Join(fl.dir, FileName(fl.factor, k, i, j))
}

// Load reads and parses the correspondence file of (k, i, j).
func (fl *FileLoader) Load(ctx context.Context, k, i, j int) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := fl.Path(k, i, j)
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingInput, "no correspondence file %s", path)
		}
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	set, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return set, nil
}

// Parse reads one correspondence per non-empty line. A line holds six numbers separated by
// whitespace or commas: the anchor, first and second image points in that order.
func Parse(in io.Reader) (Set, error) {
	set := Set{}
	scanner := bufio.NewScanner(in)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(tokens) != valuesPerRow {
			return nil, errors.Errorf("line %d: expected %d values, got %d", lineNum, valuesPerRow, len(tokens))
		}
		var vals [valuesPerRow]float64
		for n, token := range tokens {
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid value %q", lineNum, token)
			}
			vals[n] = v
		}
		set = append(set, Correspondence{
			Anchor: r2.Point{X: vals[0], Y: vals[1]},
			First:  r2.Point{X: vals[2], Y: vals[3]},
			Second: r2.Point{X: vals[4], Y: vals[5]},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadAll loads the set of every key, stopping at the first error.
func LoadAll(ctx context.Context, loader Loader, keys []Key) (Sets, error) {
	sets := make(Sets, len(keys))
	for _, key := range keys {
		set, err := loader.Load(ctx, key.Anchor, key.First, key.Second)
		if err != nil {
			return nil, errors.Wrapf(err, "loading correspondences %s", key)
		}
		sets[key] = set
	}
	return sets, nil
}
