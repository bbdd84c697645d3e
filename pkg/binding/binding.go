// Package binding defines the records a binding library stores: the pose of an
// application object relative to a persistent anchor (PointRecord) and the set
// of such poses that places the object in a recognized scene (SceneRecord).
//
// Records are plain values. The library layer treats them as opaque and only
// relies on their binary encoding.
package binding

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a record cannot be decoded.
var ErrMalformed = errors.New("malformed binding record")

// Kind identifies one of the two record collections of a library.
type Kind int

const (
	KindPoint Kind = iota
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindScene:
		return "scene"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind returns the Kind named by s ("point" or "scene").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "point", "pcf":
		return KindPoint, nil
	case "scene", "landscape":
		return KindScene, nil
	}
	return 0, fmt.Errorf("unknown binding kind %q", s)
}

// PointRecord binds an object to a single persistent anchor. Position and
// Orientation (x, y, z, w quaternion) are expressed in the anchor's frame.
type PointRecord struct {
	AnchorID    string
	Position    [3]float32
	Orientation [4]float32
}

// SceneRecord binds an object to a recognized scene through several anchors.
type SceneRecord struct {
	Points []PointRecord
}

const (
	fieldAnchorID    protowire.Number = 1
	fieldPosition    protowire.Number = 2
	fieldOrientation protowire.Number = 3

	fieldScenePoint protowire.Number = 1
)

// Size returns the length of the encoding of r.
func (r PointRecord) Size() int {
	return protowire.SizeTag(fieldAnchorID) + protowire.SizeBytes(len(r.AnchorID)) +
		protowire.SizeTag(fieldPosition) + protowire.SizeBytes(4*len(r.Position)) +
		protowire.SizeTag(fieldOrientation) + protowire.SizeBytes(4*len(r.Orientation))
}

// Size returns the length of the encoding of s.
func (s SceneRecord) Size() int {
	size := 0
	for _, p := range s.Points {
		size += protowire.SizeTag(fieldScenePoint) + protowire.SizeBytes(p.Size())
	}
	return size
}

// AppendBinary appends the encoding of r to b.
func (r PointRecord) AppendBinary(b []byte) ([]byte, error) {
	b = protowire.AppendTag(b, fieldAnchorID, protowire.BytesType)
	b = protowire.AppendString(b, r.AnchorID)
	b = appendFloats(b, fieldPosition, r.Position[:])
	b = appendFloats(b, fieldOrientation, r.Orientation[:])
	return b, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r PointRecord) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, r.Size()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *PointRecord) UnmarshalBinary(data []byte) error {
	var out PointRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldAnchorID, fieldPosition, fieldOrientation:
			if typ != protowire.BytesType {
				return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]

			var err error
			switch num {
			case fieldAnchorID:
				out.AnchorID = string(v)
			case fieldPosition:
				err = consumeFloats(v, out.Position[:])
			case fieldOrientation:
				err = consumeFloats(v, out.Orientation[:])
			}
			if err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	*r = out
	return nil
}

// AppendBinary appends the encoding of s to b.
func (s SceneRecord) AppendBinary(b []byte) ([]byte, error) {
	for _, p := range s.Points {
		b = protowire.AppendTag(b, fieldScenePoint, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(p.Size()))
		var err error
		if b, err = p.AppendBinary(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s SceneRecord) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, s.Size()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *SceneRecord) UnmarshalBinary(data []byte) error {
	var out SceneRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldScenePoint {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if typ != protowire.BytesType {
			return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var p PointRecord
		if err := p.UnmarshalBinary(v); err != nil {
			return err
		}
		out.Points = append(out.Points, p)
	}
	*s = out
	return nil
}

// Clone returns a copy of s that shares no memory with it. A scene with no
// points is returned as the zero SceneRecord, the form UnmarshalBinary produces.
func (s SceneRecord) Clone() SceneRecord {
	if len(s.Points) == 0 {
		return SceneRecord{}
	}
	points := make([]PointRecord, len(s.Points))
	copy(points, s.Points)
	return SceneRecord{Points: points}
}

func appendFloats(b []byte, num protowire.Number, fs []float32) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(fs)))
	for _, f := range fs {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b
}

func consumeFloats(b []byte, dst []float32) error {
	if len(b) != 4*len(dst) {
		return fmt.Errorf("%w: expected %d packed floats, got %d bytes", ErrMalformed, len(dst), len(b))
	}
	for i := range dst {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		dst[i] = math.Float32frombits(v)
		b = b[n:]
	}
	return nil
}
