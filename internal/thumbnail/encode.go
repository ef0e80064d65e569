package thumbnail

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// StartQuality is the first rung of the quality ladder.
	StartQuality = 95

	// QualityStep is how much quality drops between attempts.
	QualityStep = 5

	// DefaultQualityFloor is the lowest quality tried before the ceiling is
	// given up on.
	DefaultQualityFloor = 10
)

// Encoded is a JPEG byte stream together with the quality that produced it.
type Encoded struct {
	Data     []byte
	Quality  int
	Attempts int
}

// Size returns the encoded length in bytes.
func (e Encoded) Size() int {
	return len(e.Data)
}

// MaxAttempts returns how many encodes EncodeBounded performs at most for
// the given floor.
func MaxAttempts(floor int) int {
	if floor <= 0 {
		floor = DefaultQualityFloor
	}
	n := 1
	for q := StartQuality; q > floor; q -= QualityStep {
		n++
	}
	return n
}

// EncodeBounded encodes img as JPEG, walking the quality ladder down from
// StartQuality until the output is smaller than maxBytes or the quality
// reaches floor. The floor result is accepted even when it is still over
// maxBytes, so callers must treat the ceiling as best-effort.
func EncodeBounded(img image.Image, maxBytes int64, floor int) (Encoded, error) {
	if floor <= 0 {
		floor = DefaultQualityFloor
	}

	var buf bytes.Buffer
	quality := StartQuality
	attempts := 0
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(max(quality, 1))); err != nil {
			return Encoded{}, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
		}
		attempts++

		if int64(buf.Len()) < maxBytes || quality <= floor {
			data := make([]byte, buf.Len())
			copy(data, buf.Bytes())
			return Encoded{Data: data, Quality: quality, Attempts: attempts}, nil
		}

		quality -= QualityStep
	}
}

// Flatten returns an opaque 8-bit RGB copy of img. Alpha is discarded, not
// composited: each pixel keeps its colour channels as stored.
func Flatten(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
