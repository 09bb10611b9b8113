package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// ErrInvalidBounds is returned when a thumbnail is requested with a non-positive bound.
var ErrInvalidBounds = errors.New("thumbnail bounds must be positive")

const defaultJPEGQuality = 85

// fileStorage defines the interface for reading the source image and writing thumbnails.
type fileStorage interface {
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
}

// Processor generates thumbnails of placed images.
type Processor struct {
	fileStorage fileStorage
	quality     int
}

// Option configures a Processor.
type Option func(*Processor)

// WithJPEGQuality sets the quality used when thumbnails are encoded as JPEG.
func WithJPEGQuality(q int) Option {
	return func(p *Processor) {
		if q > 0 && q <= 100 {
			p.quality = q
		}
	}
}

// New creates a new Processor with the given file storage backend.
func New(fs fileStorage, opts ...Option) *Processor {
	p := &Processor{fileStorage: fs, quality: defaultJPEGQuality}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Thumbnail writes to dst the biggest version of src that fits within
// maxWidth x maxHeight, keeping the aspect ratio. Images already inside the bounds
// are copied as is. The output format follows the extension of dst.
// A non-empty watermark is drawn in the bottom-right corner.
func (p *Processor) Thumbnail(ctx context.Context, src, dst string, maxWidth, maxHeight int, watermark string) error {
	if maxWidth <= 0 || maxHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBounds, maxWidth, maxHeight)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return fmt.Errorf("unsupported thumbnail format for %s: %w", dst, err)
	}

	// Load the placed image.
	srcReader, err := p.fileStorage.Open(src)
	if err != nil {
		return fmt.Errorf("failed to load original image: %w", err)
	}
	defer srcReader.Close()

	// Decode into an image object.
	img, err := imaging.Decode(srcReader, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	// Fit into the bounds.
	var thumb image.Image = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	if watermark != "" {
		thumb = drawWatermark(thumb, watermark)
	}

	out, err := p.fileStorage.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}

	if err := imaging.Encode(out, thumb, format, imaging.JPEGQuality(p.quality)); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return nil
}

// drawWatermark draws text in the bottom-right corner of img.
func drawWatermark(img image.Image, text string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetColor(color.White)
	dc.SetFontFace(basicfont.Face7x13)

	margin := 4.0
	x := float64(dc.Width()) - margin
	y := float64(dc.Height()) - margin

	dc.DrawStringAnchored(text, x, y, 1, 0) // bottom-right corner
	dc.Fill()

	return dc.Image()
}
