// Package texture loads material images as RGBA pixel data and uploads them as GPU textures.
package texture

import (
	"errors"
	"fmt"
	"image"

	// Decoders registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/Faultbox/newengine/internal/gpu"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Load decodes the image at path into tightly packed RGBA. When maxSize is
// positive, images whose larger side exceeds it are downscaled keeping aspect.
func Load(path string, maxSize int) (*image.RGBA, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return ToRGBA(img, maxSize)
}

// ToRGBA converts img to RGBA, downscaling to maxSize when set.
func ToRGBA(img image.Image, maxSize int) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	if w, h, ok := fitSize(b.Dx(), b.Dy(), maxSize); ok {
		return transform.Resize(img, w, h, transform.Linear), nil
	}

	return clone.AsRGBA(img), nil
}

// fitSize returns the downscaled size for w x h bounded by maxSize.
func fitSize(w, h, maxSize int) (int, int, bool) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h, false
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w), true
	}
	return max(1, w*maxSize/h), maxSize, true
}

// Upload creates an RGBA8 texture and fills it with img.
func Upload(f gpu.Factory, img *image.RGBA) (gpu.Texture, error) {
	b := img.Bounds()
	tex, err := f.CreateTexture(gpu.TextureCreateInfo{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: gpu.FormatRGBA8,
	})
	if err != nil {
		return 0, fmt.Errorf("creating texture: %w", err)
	}
	if err := f.UploadTextureData(tex, packed(img)); err != nil {
		f.DestroyTexture(tex)
		return 0, fmt.Errorf("uploading texture: %w", err)
	}
	return tex, nil
}

// packed returns the pixels of img without row padding.
func packed(img *image.RGBA) []byte {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	if img.Stride == rowLen && len(img.Pix) == rowLen*b.Dy() {
		return img.Pix
	}
	out := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[i:i+rowLen]...)
	}
	return out
}
