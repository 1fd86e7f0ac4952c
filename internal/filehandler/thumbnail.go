// Package filehandler decodes, resizes, and re-encodes images for thumbnail
// generation.
package filehandler

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	// Decoders are registered for content sniffing; a key's extension is not
	// trusted to describe its bytes.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedFormat is returned for an output extension the encoder
// cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported thumbnail format")

// JPEGQuality is the encoder quality used for JPEG thumbnails.
const JPEGQuality = jpeg.DefaultQuality

// Format is an output image format.
type Format int

const (
	FormatPNG Format = iota + 1
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// FormatForExtension maps a source extension (without the dot) to the
// format its thumbnail is written in.
func FormatForExtension(ext string) (Format, error) {
	switch strings.ToLower(ext) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return 0, fmt.Errorf("%w: %q (only jpg, jpeg, png are supported)", ErrUnsupportedFormat, ext)
	}
}

// DecodeImage decodes r, detecting the format from its content. It returns
// the image and the detected format name.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// FitDimensions returns the largest width and height with the aspect ratio
// of width x height that fit within size x size. Small images are scaled up.
// Each side is at least 1.
func FitDimensions(width, height, size int) (int, int) {
	wRatio := float64(size) / float64(width)
	hRatio := float64(size) / float64(height)
	ratio := math.Min(wRatio, hRatio)

	newWidth := max(int(math.Round(float64(width)*ratio)), 1)
	newHeight := max(int(math.Round(float64(height)*ratio)), 1)
	return newWidth, newHeight
}

// ResizeToFit scales img to fit within size x size using Lanczos3
// resampling, preserving its aspect ratio.
func ResizeToFit(img image.Image, size int) (image.Image, error) {
	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth <= 0 || origHeight <= 0 {
		return nil, fmt.Errorf("cannot resize empty image (%dx%d)", origWidth, origHeight)
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}

	newWidth, newHeight := FitDimensions(origWidth, origHeight, size)
	resized := resize.Resize(uint(newWidth), uint(newHeight), img, resize.Lanczos3)

	log.Debug().
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Msg("Image resized")

	return resized, nil
}

// EncodeImage writes img to w in format f.
func EncodeImage(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s thumbnail: %w", f, err)
	}
	return nil
}
