package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/epipolar/correspondence"
	"go.viam.com/epipolar/logging"
	"go.viam.com/epipolar/rimage"
)

const (
	// MaskDirName is the directory, relative to the dataset root, that holds the masks.
	MaskDirName = "mask"
	// MaskRectFileName is the table of every mask rectangle.
	MaskRectFileName = "mask_rect.txt"
)

// MaskFileName returns the name of the mask of anchor k over the pair (i, j).
func MaskFileName(factor, k, i, j int) string {
	return fmt.Sprintf("mask_%02d_%02d_%02d_%02d.png", factor, k, i, j)
}

// MaskRecord is the rectangle covering the anchor points of one correspondence set.
type MaskRecord struct {
	Key  correspondence.Key
	Rect image.Rectangle
	Path string
}

// String formats the record as a row of the rectangle table: k i j x y w h.
func (mr MaskRecord) String() string {
	return fmt.Sprintf("%d %d %d %d %d %d %d",
		mr.Key.Anchor, mr.Key.First, mr.Key.Second,
		mr.Rect.Min.X, mr.Rect.Min.Y, mr.Rect.Dx(), mr.Rect.Dy())
}

// BoundingRect returns the tightest rectangle around the points after truncating their
// coordinates toward zero. Its width and height are max-min, so the points on the right and
// bottom edges lie just outside it. No points give the empty rectangle at the origin.
func BoundingRect(points []r2.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	truncated := lo.Map(points, func(pt r2.Point, _ int) r2.Point {
		return r2.Point{X: math.Trunc(pt.X), Y: math.Trunc(pt.Y)}
	})
	bound := r2.RectFromPoints(truncated...)
	return image.Rect(int(bound.X.Lo), int(bound.Y.Lo), int(bound.X.Hi), int(bound.Y.Hi))
}

// GenerateMasks writes one mask per triple under <datadir>/mask and then the rectangle
// table, in Triples order.
func GenerateMasks(
	ctx context.Context,
	cfg *Config,
	shape rimage.ImageShape,
	n int,
	sets correspondence.Sets,
	logger logging.Logger,
) ([]MaskRecord, error) {
	dir := filepath.Join(cfg.DataDir, MaskDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "couldn't create mask directory")
	}

	keys := Triples(n)
	records := make([]MaskRecord, len(keys))
	var empty atomic.Int64
	err := forEach(ctx, cfg.workers(), len(keys), func(ctx context.Context, idx int) error {
		key := keys[idx]
		set, ok := sets.Lookup(key.Anchor, key.First, key.Second)
		if !ok {
			return errors.Wrapf(correspondence.ErrMissingInput, "no correspondences for %s", key)
		}
		rect := BoundingRect(set.AnchorPoints())
		mask, err := rimage.NewMaskImage(shape.Width, shape.Height, shape.Channels, rect)
		if err != nil {
			return errors.Wrapf(err, "mask %s", key)
		}
		path := filepath.Join(dir, MaskFileName(cfg.Factor, key.Anchor, key.First, key.Second))
		if err := rimage.WriteImageToFile(path, mask); err != nil {
			return err
		}
		records[idx] = MaskRecord{Key: key, Rect: rect, Path: path}
		if len(set) == 0 {
			empty.Add(1)
			logger.Debugw("empty correspondence set", "key", key.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rectPath := filepath.Join(dir, MaskRectFileName)
	if err := WriteMaskRects(rectPath, records); err != nil {
		return nil, errors.Wrap(err, "writing mask rectangles")
	}
	logger.Infow("wrote masks", "count", len(records), "empty", empty.Load(), "dir", dir)
	return records, nil
}

// WriteMaskRects writes one line per record to path.
func WriteMaskRects(path string, records []MaskRecord) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	for _, record := range records {
		if _, err := fmt.Fprintln(w, record.String()); err != nil {
			return err
		}
	}
	return w.Flush()
}
