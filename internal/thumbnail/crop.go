// Package thumbnail normalizes generated images into size-bounded 16:9 JPEG
// thumbnails.
package thumbnail

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// TargetRatio is the width/height ratio every thumbnail is cropped to.
	TargetRatio = 16.0 / 9.0

	// RatioTolerance is how far an image may be from the target ratio and
	// still be left uncropped.
	RatioTolerance = 0.01
)

// ErrDegenerateCrop is returned when the crop would leave no pixels, either
// because the source has no area or its aspect ratio is too extreme.
var ErrDegenerateCrop = errors.New("crop would produce an empty image")

// CropBox returns the largest centered rectangle of a w×h image whose
// aspect ratio is exactly ratio. Images already within RatioTolerance of
// ratio are returned whole.
func CropBox(w, h int, ratio float64) (image.Rectangle, error) {
	if w <= 0 || h <= 0 || ratio <= 0 {
		return image.Rectangle{}, ErrDegenerateCrop
	}

	current := float64(w) / float64(h)
	if math.Abs(current-ratio) <= RatioTolerance {
		return image.Rect(0, 0, w, h), nil
	}

	if current < ratio {
		// Too tall: keep the width, trim top and bottom.
		newH := int(math.Floor(float64(w) / ratio))
		if newH == 0 {
			return image.Rectangle{}, ErrDegenerateCrop
		}
		top := (h - newH) / 2
		return image.Rect(0, top, w, top+newH), nil
	}

	// Too wide: keep the height, trim left and right.
	newW := int(math.Floor(float64(h) * ratio))
	if newW == 0 {
		return image.Rectangle{}, ErrDegenerateCrop
	}
	left := (w - newW) / 2
	return image.Rect(left, 0, left+newW, h), nil
}

// Crop cuts img down to ratio using CropBox. The returned image always has
// its origin at (0, 0).
func Crop(img image.Image, ratio float64) (*image.NRGBA, error) {
	bounds := img.Bounds()
	box, err := CropBox(bounds.Dx(), bounds.Dy(), ratio)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, box.Add(bounds.Min)), nil
}
