package processor

import (
	"image"
	"image/color"
	"testing"

	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAligner(t *testing.T) (ImageAligner, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewImageAligner(logger), hook
}

// TestAlignMatchingSizes проверяет, что маска совпадающего размера меняется только бинаризацией
func TestAlignMatchingSizes(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{name: "landscape", width: 64, height: 48},
		{name: "portrait", width: 48, height: 64},
		{name: "square", width: 50, height: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner, hook := newTestAligner(t)

			img := image.NewNRGBA(image.Rect(0, 0, tt.width, tt.height))
			fillImageWithColor(img, color.NRGBA{R: 100, G: 150, B: 200, A: 255})
			mask := diagonalMask(tt.width, tt.height)

			pair := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: mask, Orientation: 1})

			require.True(t, pair.Aligned())
			assert.Equal(t, tt.width, pair.Mask.Width)
			assert.Equal(t, tt.height, pair.Mask.Height)
			for y := 0; y < tt.height; y++ {
				for x := 0; x < tt.width; x++ {
					want := uint8(0)
					if mask.GrayAt(x, y).Y > BinarizeThreshold {
						want = 1
					}
					require.Equal(t, want, pair.Mask.At(x, y), "pixel (%d,%d)", x, y)
				}
			}
			assert.Empty(t, hook.AllEntries(), "no rotation or resampling expected")
		})
	}
}

// TestAlignSquareMaskNotRotated проверяет, что квадратная маска не поворачивается
func TestAlignSquareMaskNotRotated(t *testing.T) {
	aligner, _ := newTestAligner(t)

	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	mask := image.NewGray(image.Rect(0, 0, 40, 40))
	// закрашиваем только левую половину
	for y := 0; y < 40; y++ {
		for x := 0; x < 20; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	pair := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: mask, Orientation: 1})

	assert.Equal(t, uint8(1), pair.Mask.At(0, 0))
	assert.Equal(t, uint8(1), pair.Mask.At(19, 39))
	assert.Equal(t, uint8(0), pair.Mask.At(20, 0))
	assert.Equal(t, uint8(0), pair.Mask.At(39, 39))
}

// TestAlignSwappedAxes проверяет поворот маски с переставленными осями
func TestAlignSwappedAxes(t *testing.T) {
	aligner, hook := newTestAligner(t)

	img := image.NewNRGBA(image.Rect(0, 0, 512, 384))
	fillImageWithColor(img, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	mask := image.NewGray(image.Rect(0, 0, 384, 512))
	mask.SetGray(0, 0, color.Gray{Y: 255})
	mask.SetGray(383, 511, color.Gray{Y: 200})

	pair := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: mask, Orientation: 1})

	require.True(t, pair.Aligned())
	assert.Equal(t, 512, pair.Mask.Width)
	assert.Equal(t, 384, pair.Mask.Height)

	// поворот на 90° по часовой: левый верхний угол уходит в правый верхний
	assert.Equal(t, uint8(1), pair.Mask.At(511, 0))
	assert.Equal(t, uint8(1), pair.Mask.At(0, 383))
	assert.Equal(t, uint8(0), pair.Mask.At(0, 0))

	ones := 0
	for _, v := range pair.Mask.Pix {
		require.LessOrEqual(t, v, uint8(1))
		ones += int(v)
	}
	assert.Equal(t, 2, ones)

	require.NotEmpty(t, hook.AllEntries())
	assert.Contains(t, hook.AllEntries()[0].Message, "rotating mask 90 degrees clockwise")
}

// TestAlignResizesMismatchedMask проверяет принудительный ресайз ближайшим соседом
func TestAlignResizesMismatchedMask(t *testing.T) {
	tests := []struct {
		name       string
		maskWidth  int
		maskHeight int
	}{
		{name: "smaller mask", maskWidth: 50, maskHeight: 40},
		{name: "larger mask", maskWidth: 300, maskHeight: 160},
		{name: "different aspect", maskWidth: 80, maskHeight: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner, hook := newTestAligner(t)

			img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
			mask := image.NewGray(image.Rect(0, 0, tt.maskWidth, tt.maskHeight))
			for y := 0; y < tt.maskHeight; y++ {
				for x := 0; x < tt.maskWidth/2; x++ {
					mask.SetGray(x, y, color.Gray{Y: 255})
				}
			}

			pair := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: mask, Orientation: 1})

			require.True(t, pair.Aligned())
			assert.Equal(t, uint8(1), pair.Mask.At(0, 0))
			assert.Equal(t, uint8(0), pair.Mask.At(99, 79))
			for _, v := range pair.Mask.Pix {
				require.LessOrEqual(t, v, uint8(1))
			}

			last := hook.LastEntry()
			require.NotNil(t, last)
			assert.Contains(t, last.Message, "nearest neighbor")
		})
	}
}

// TestBinarizeBoundary проверяет порог бинаризации
func TestBinarizeBoundary(t *testing.T) {
	values := []uint8{0, 1, 127, 128, 129, 200, 255}
	want := []uint8{0, 0, 0, 0, 1, 1, 1}

	mask := image.NewGray(image.Rect(0, 0, len(values), 1))
	copy(mask.Pix, values)

	got := Binarize(mask)
	assert.Equal(t, want, got.Pix)

	// тот же результат для многоканального изображения
	rgba := image.NewNRGBA(image.Rect(0, 0, len(values), 1))
	for i, v := range values {
		rgba.SetNRGBA(i, 0, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	assert.Equal(t, want, Binarize(rgba).Pix)
}

// TestAlignIdempotent проверяет, что повторное выравнивание ничего не меняет
func TestAlignIdempotent(t *testing.T) {
	aligner, _ := newTestAligner(t)

	img := image.NewNRGBA(image.Rect(0, 0, 30, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 30; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x * y), A: 255})
		}
	}
	mask := diagonalMask(20, 30)

	first := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: mask, Orientation: 1})
	second := aligner.Align(
		codec.Raster{Image: first.Image.Image(), Orientation: 1},
		codec.Raster{Image: first.Mask.Image(), Orientation: 1},
	)

	assert.Equal(t, first.Image, second.Image)
	assert.Equal(t, first.Mask, second.Mask)
}

// TestAlignAppliesOrientation проверяет нормализацию EXIF ориентации до сравнения размеров
func TestAlignAppliesOrientation(t *testing.T) {
	tests := []struct {
		name             string
		imageOrientation int
		maskOrientation  int
		maskWidth        int
		maskHeight       int
	}{
		{name: "only image rotated by camera", imageOrientation: 6, maskOrientation: 1, maskWidth: 20, maskHeight: 40},
		{name: "both rotated by camera", imageOrientation: 8, maskOrientation: 8, maskWidth: 40, maskHeight: 20},
		{name: "mirrored image", imageOrientation: 2, maskOrientation: 1, maskWidth: 40, maskHeight: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner, hook := newTestAligner(t)

			// stored 40x20, upright size depends on orientation
			img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
			mask := image.NewGray(image.Rect(0, 0, tt.maskWidth, tt.maskHeight))

			pair := aligner.Align(
				codec.Raster{Image: img, Orientation: tt.imageOrientation},
				codec.Raster{Image: mask, Orientation: tt.maskOrientation},
			)

			require.True(t, pair.Aligned())
			upright := Orient(img, tt.imageOrientation).Bounds().Size()
			assert.Equal(t, upright.X, pair.Image.Width)
			assert.Equal(t, upright.Y, pair.Image.Height)
			assert.Empty(t, hook.AllEntries())
		})
	}
}

func TestOrient(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		orientation int
		size        image.Point
		marker      image.Point
	}{
		{orientation: 1, size: image.Pt(4, 2), marker: image.Pt(0, 0)},
		{orientation: 2, size: image.Pt(4, 2), marker: image.Pt(3, 0)},
		{orientation: 3, size: image.Pt(4, 2), marker: image.Pt(3, 1)},
		{orientation: 4, size: image.Pt(4, 2), marker: image.Pt(0, 1)},
		{orientation: 5, size: image.Pt(2, 4), marker: image.Pt(0, 0)},
		{orientation: 6, size: image.Pt(2, 4), marker: image.Pt(1, 0)},
		{orientation: 7, size: image.Pt(2, 4), marker: image.Pt(1, 3)},
		{orientation: 8, size: image.Pt(2, 4), marker: image.Pt(0, 3)},
		{orientation: 0, size: image.Pt(4, 2), marker: image.Pt(0, 0)},
	}

	for _, tt := range tests {
		out := Orient(img, tt.orientation)
		assert.Equal(t, tt.size, out.Bounds().Size(), "orientation %d", tt.orientation)
		r, _, _, _ := out.At(tt.marker.X, tt.marker.Y).RGBA()
		assert.Equal(t, uint32(0xffff), r, "orientation %d marker", tt.orientation)
	}
}

func TestImageBufferShape(t *testing.T) {
	aligner, _ := newTestAligner(t)

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	pair := aligner.Align(codec.Raster{Image: img, Orientation: 1}, codec.Raster{Image: image.NewGray(image.Rect(0, 0, 3, 2)), Orientation: 1})

	h, w, c := pair.Image.Shape()
	assert.Equal(t, []int{2, 3, 3}, []int{h, w, c})
	r, g, b := pair.Image.RGB(2, 1)
	assert.Equal(t, []uint8{1, 2, 3}, []uint8{r, g, b})
	assert.Len(t, pair.Image.Pix, 2*3*3)
}

// fillImageWithColor заполняет изображение одним цветом
func fillImageWithColor(img *image.NRGBA, c color.NRGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// diagonalMask строит маску с градиентом, покрывающим весь диапазон значений
func diagonalMask(w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask.SetGray(x, y, color.Gray{Y: uint8((x*255/w + y*255/h) / 2)})
		}
	}
	return mask
}
