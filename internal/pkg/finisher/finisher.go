// Package finisher prepares the reconstructed mesh for delivery.
package finisher

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

type MeshFinisher interface {
	Finish(glb []byte) ([]byte, error)
}

type meshFinisher struct {
	log logrus.FieldLogger
}

func NewMeshFinisher(log logrus.FieldLogger) MeshFinisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &meshFinisher{log: log}
}

// Finish forces vertex color alpha to fully opaque and returns the GLB.
// Meshes without RGBA vertex colors are returned byte for byte.
func (f *meshFinisher) Finish(glb []byte) ([]byte, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(glb)).Decode(doc); err != nil {
		return nil, entity.NewJobError(entity.ErrInference, "model produced an unreadable GLB", err)
	}

	touched := OpaqueVertexColors(doc)
	if touched == 0 {
		return glb, nil
	}
	f.log.WithField("accessors", touched).Debug("vertex color alpha forced to opaque")

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, entity.NewJobError(entity.ErrInternal, "cannot serialize GLB", err)
	}
	return buf.Bytes(), nil
}

// OpaqueVertexColors rewrites the alpha component of every RGBA COLOR_n
// accessor in place and reports how many accessors were changed.
func OpaqueVertexColors(doc *gltf.Document) int {
	touched := 0
	done := make(map[int]bool)
	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			for name, idx := range prim.Attributes {
				i := int(idx)
				if !strings.HasPrefix(name, "COLOR_") || done[i] || i >= len(doc.Accessors) {
					continue
				}
				done[i] = true
				if opaqueAccessor(doc, doc.Accessors[i]) {
					touched++
				}
			}
		}
	}
	return touched
}

func opaqueAccessor(doc *gltf.Document, acr *gltf.Accessor) bool {
	if acr.Type != gltf.AccessorVec4 || acr.BufferView == nil {
		return false
	}

	var size int
	switch acr.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentFloat:
		size = 4
	default:
		return false
	}

	bvIdx := int(*acr.BufferView)
	if bvIdx >= len(doc.BufferViews) {
		return false
	}
	bv := doc.BufferViews[bvIdx]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return false
	}
	data := doc.Buffers[bv.Buffer].Data

	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = 4 * size
	}
	base := int(bv.ByteOffset) + int(acr.ByteOffset)

	for i := 0; i < int(acr.Count); i++ {
		off := base + i*stride + 3*size
		if off+size > len(data) {
			return false
		}
		switch size {
		case 1:
			data[off] = math.MaxUint8
		case 2:
			binary.LittleEndian.PutUint16(data[off:], math.MaxUint16)
		case 4:
			binary.LittleEndian.PutUint32(data[off:], math.Float32bits(1))
		}
	}
	return true
}
