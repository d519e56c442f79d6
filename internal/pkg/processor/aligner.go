package processor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/sirupsen/logrus"
)

// BinarizeThreshold: mask samples strictly above it become 1.
const BinarizeThreshold = 128

// EXIF orientation values
const (
	orientationNormal     = 1
	orientationFlipH      = 2
	orientationRotate180  = 3
	orientationFlipV      = 4
	orientationTranspose  = 5
	orientationRotate270  = 6
	orientationTransverse = 7
	orientationRotate90   = 8
)

type ImageAligner interface {
	Align(img, mask codec.Raster) entity.AlignedPair
}

type imageAligner struct {
	log logrus.FieldLogger
}

func NewImageAligner(log logrus.FieldLogger) ImageAligner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &imageAligner{log: log}
}

// Align brings the mask onto the image grid. It never fails: when orientation
// repair does not help the mask is resampled to the image size.
func (a *imageAligner) Align(img, mask codec.Raster) entity.AlignedPair {
	upright := Orient(img.Image, img.Orientation)
	maskUpright := Orient(mask.Image, mask.Orientation)

	target := upright.Bounds().Size()
	aligned := a.matchDimensions(target, maskUpright)

	return entity.AlignedPair{
		Image: entity.NewImageBuffer(upright),
		Mask:  Binarize(aligned),
	}
}

func (a *imageAligner) matchDimensions(target image.Point, mask image.Image) image.Image {
	size := mask.Bounds().Size()
	if size == target {
		return mask
	}

	entry := a.log.WithFields(logrus.Fields{
		"image_size": target.String(),
		"mask_size":  size.String(),
	})

	if size.X == target.Y && size.Y == target.X {
		entry.Info("mask axes are swapped, rotating mask 90 degrees clockwise")
		mask = imaging.Rotate270(mask)

		// best effort: only dimensions are checked, not the semantic orientation
		if mask.Bounds().Size() != target {
			entry.Warn("mask still mismatched, rotating a further 180 degrees")
			mask = imaging.Rotate180(mask)
		}
	}

	if mask.Bounds().Size() != target {
		entry.Warn("mask size mismatch persists, resampling with nearest neighbor")
		mask = imaging.Resize(mask, target.X, target.Y, imaging.NearestNeighbor)
	}
	return mask
}

// Orient applies an EXIF orientation so the raster is upright.
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case orientationFlipH:
		return imaging.FlipH(img)
	case orientationRotate180:
		return imaging.Rotate180(img)
	case orientationFlipV:
		return imaging.FlipV(img)
	case orientationTranspose:
		return imaging.Transpose(img)
	case orientationRotate270:
		return imaging.Rotate270(img)
	case orientationTransverse:
		return imaging.Transverse(img)
	case orientationRotate90:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Binarize thresholds the luminance of img and collapses it to one channel.
func Binarize(img image.Image) *entity.MaskBuffer {
	b := img.Bounds()
	m := &entity.MaskBuffer{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]uint8, b.Dx()*b.Dy()),
	}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < m.Height; y++ {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			row := gray.Pix[off : off+m.Width]
			for x, v := range row {
				m.Pix[y*m.Width+x] = binary(v)
			}
		}
		return m
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			m.Pix[y*m.Width+x] = binary(v)
		}
	}
	return m
}

func binary(v uint8) uint8 {
	if v > BinarizeThreshold {
		return 1
	}
	return 0
}
