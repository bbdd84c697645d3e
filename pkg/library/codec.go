package library

import (
	"bytes"
	"fmt"

	"github.com/ldsec/bindlib/pkg/binding"
	"google.golang.org/protobuf/encoding/protowire"
)

// Library data layout: the magic header followed by a protobuf-wire message
//
//	1: varint  format version
//	2: bytes   point entry {1: key, 2: binding.PointRecord}  (repeated)
//	3: bytes   scene entry {1: key, 2: binding.SceneRecord}  (repeated)
//
// Entries are written in key order.
const (
	blobMagic     = "BLIB"
	formatVersion = 1

	fieldVersion protowire.Number = 1
	fieldPoint   protowire.Number = 2
	fieldScene   protowire.Number = 3

	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

// snapshot is the complete state of a library, as written to and read from a medium.
type snapshot struct {
	points   map[string]binding.PointRecord
	scenes   map[string]binding.SceneRecord
	sizeHint int
}

type recordAppender interface {
	AppendBinary(b []byte) ([]byte, error)
	Size() int
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *snapshot) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, len(blobMagic)+2+s.sizeHint)
	b = append(b, blobMagic...)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, formatVersion)

	var entry []byte
	var err error
	for _, key := range sortedKeys(s.points) {
		if entry, err = appendEntry(entry[:0], key, s.points[key]); err != nil {
			return nil, fmt.Errorf("could not encode point binding %q: %w", key, err)
		}
		b = protowire.AppendTag(b, fieldPoint, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	for _, key := range sortedKeys(s.scenes) {
		if entry, err = appendEntry(entry[:0], key, s.scenes[key]); err != nil {
			return nil, fmt.Errorf("could not encode scene binding %q: %w", key, err)
		}
		b = protowire.AppendTag(b, fieldScene, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. On error s is left unchanged.
func (s *snapshot) UnmarshalBinary(data []byte) error {
	if !bytes.HasPrefix(data, []byte(blobMagic)) {
		return fmt.Errorf("%w: missing header", ErrMalformed)
	}
	data = data[len(blobMagic):]

	version := uint64(0)
	points := make(map[string]binding.PointRecord)
	scenes := make(map[string]binding.SceneRecord)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			if v != formatVersion {
				return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
			}
			version = v

		case (num == fieldPoint || num == fieldScene) && typ == protowire.BytesType:
			if version == 0 {
				return fmt.Errorf("%w: entries before format version", ErrMalformed)
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]

			key, value, err := consumeEntry(v)
			if err != nil {
				return err
			}
			if num == fieldPoint {
				var rec binding.PointRecord
				if err := rec.UnmarshalBinary(value); err != nil {
					return fmt.Errorf("%w: point binding %q: %v", ErrMalformed, key, err)
				}
				points[key] = rec
			} else {
				var rec binding.SceneRecord
				if err := rec.UnmarshalBinary(value); err != nil {
					return fmt.Errorf("%w: scene binding %q: %v", ErrMalformed, key, err)
				}
				scenes[key] = rec
			}

		case num == fieldVersion || num == fieldPoint || num == fieldScene:
			return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if version == 0 {
		return fmt.Errorf("%w: missing format version", ErrMalformed)
	}

	s.points, s.scenes = points, scenes
	return nil
}

func appendEntry(b []byte, key string, rec recordAppender) ([]byte, error) {
	b = protowire.AppendTag(b, fieldEntryKey, protowire.BytesType)
	b = protowire.AppendString(b, key)
	b = protowire.AppendTag(b, fieldEntryValue, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(rec.Size()))
	return rec.AppendBinary(b)
}

func consumeEntry(data []byte) (key string, value []byte, err error) {
	var hasKey bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType || (num != fieldEntryKey && num != fieldEntryValue) {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		if num == fieldEntryKey {
			key, hasKey = string(v), true
		} else {
			value = v
		}
	}
	if !hasKey {
		return "", nil, fmt.Errorf("%w: entry without key", ErrMalformed)
	}
	return key, value, nil
}
