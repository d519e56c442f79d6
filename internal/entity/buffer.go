package entity

import (
	"image"
	"image/color"
)

// ImageBuffer is an RGB raster, row-major, three samples per pixel.
type ImageBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewImageBuffer drops alpha and copies img into a packed RGB buffer.
func NewImageBuffer(img image.Image) *ImageBuffer {
	b := img.Bounds()
	buf := &ImageBuffer{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]uint8, b.Dx()*b.Dy()*3),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf.Pix[i] = c.R
			buf.Pix[i+1] = c.G
			buf.Pix[i+2] = c.B
			i += 3
		}
	}
	return buf
}

// Shape returns (height, width, channels).
func (b *ImageBuffer) Shape() (int, int, int) {
	return b.Height, b.Width, 3
}

func (b *ImageBuffer) RGB(x, y int) (uint8, uint8, uint8) {
	i := (y*b.Width + x) * 3
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Image renders the buffer as an opaque NRGBA image.
func (b *ImageBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+4 {
		img.Pix[j] = b.Pix[i]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// MaskBuffer is a single-channel binary mask, values in {0,1}.
type MaskBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// Shape returns (height, width).
func (m *MaskBuffer) Shape() (int, int) {
	return m.Height, m.Width
}

func (m *MaskBuffer) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Image renders the mask as 0/255 grayscale.
func (m *MaskBuffer) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// AlignedPair is the only input form the reconstruction model accepts.
type AlignedPair struct {
	Image *ImageBuffer
	Mask  *MaskBuffer
}

func (p AlignedPair) Aligned() bool {
	if p.Image == nil || p.Mask == nil {
		return false
	}
	return p.Image.Width == p.Mask.Width && p.Image.Height == p.Mask.Height
}
