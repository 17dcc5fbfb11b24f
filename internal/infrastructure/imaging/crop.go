package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// Cropper cuts a query region out of a dashboard photograph. The box is
// clamped to the image bounds rather than rejected, matching how partial
// selections at the frame edge behave.
type Cropper struct{}

func NewCropper() *Cropper {
	return &Cropper{}
}

// Crop decodes the image at path (PNG or JPEG), clamps box to its bounds
// and returns the region re-encoded as PNG.
func (c *Cropper) Crop(path string, box domain.Rect) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "open image", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}

	bounds := img.Bounds()
	region := clamp(box, bounds)
	if region.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "crop image",
			fmt.Errorf("box [%d %d %d %d] is outside image bounds %v", box.X0, box.Y0, box.X1, box.Y1, bounds))
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	cropped := image.Image(nil)
	if ok {
		cropped = sub.SubImage(region)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
		for y := region.Min.Y; y < region.Max.Y; y++ {
			for x := region.Min.X; x < region.Max.X; x++ {
				rgba.Set(x-region.Min.X, y-region.Min.Y, img.At(x, y))
			}
		}
		cropped = rgba
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(box domain.Rect, bounds image.Rectangle) image.Rectangle {
	x0 := max(box.X0, bounds.Min.X)
	y0 := max(box.Y0, bounds.Min.Y)
	x1 := min(box.X1, bounds.Max.X)
	y1 := min(box.Y1, bounds.Max.Y)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return image.Rect(x0, y0, x1, y1)
}
