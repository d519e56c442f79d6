// Package codec moves images and meshes between their transport encodings and
// in-memory rasters.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// OrientationNormal is the EXIF value for an upright raster.
const OrientationNormal = 1

// Raster is a decoded image together with the EXIF orientation it was stored
// with. The pixels are not rotated yet.
type Raster struct {
	Image       image.Image
	Orientation int
}

func (r Raster) Size() (int, int) {
	b := r.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Decode decodes a base64 image, optionally wrapped in a data URI, into an RGB
// raster.
func Decode(encoded string) (Raster, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return Raster{}, entity.NewJobError(entity.ErrDecode, "invalid base64 image", err)
	}
	return DecodeBytes(raw)
}

// DecodeMask is Decode followed by grayscale conversion.
func DecodeMask(encoded string) (Raster, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return Raster{}, entity.NewJobError(entity.ErrDecode, "invalid base64 mask", err)
	}
	return DecodeMaskBytes(raw)
}

func DecodeBytes(raw []byte) (Raster, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Raster{}, entity.NewJobError(entity.ErrDecode, "cannot identify image file", err)
	}
	return Raster{Image: toRGB(img), Orientation: readOrientation(raw)}, nil
}

func DecodeMaskBytes(raw []byte) (Raster, error) {
	r, err := DecodeBytes(raw)
	if err != nil {
		return Raster{}, err
	}
	r.Image = toGray(r.Image)
	return r, nil
}

// Encode writes img as PNG and returns it base64 encoded.
func Encode(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeMesh(glb []byte) string {
	return base64.StdEncoding.EncodeToString(glb)
}

func DecodeMesh(encoded string) ([]byte, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, entity.NewJobError(entity.ErrDecode, "invalid base64 mesh", err)
	}
	return raw, nil
}

// decodeBase64 drops a "data:<mime>;base64," prefix when present.
func decodeBase64(s string) ([]byte, error) {
	if _, payload, found := strings.Cut(s, ","); found {
		s = payload
	}
	s = strings.TrimSpace(s)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return raw, nil
}

func readOrientation(raw []byte) int {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return OrientationNormal
	}
	return v
}

// toRGB drops the alpha channel without compositing.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return dst
}
