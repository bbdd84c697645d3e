package binding

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var testPoint = PointRecord{
	AnchorID:    "pcf-7b1c",
	Position:    [3]float32{0.5, -1.25, 3},
	Orientation: [4]float32{0, 0.7071, 0, 0.7071},
}

func TestPointRecordEncoding(t *testing.T) {
	data, err := testPoint.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, testPoint.Size())

	var got PointRecord
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, testPoint, got)
}

func TestSceneRecordEncoding(t *testing.T) {
	scene := SceneRecord{Points: []PointRecord{testPoint, {AnchorID: "pcf-2", Position: [3]float32{1, 2, 3}}}}

	data, err := scene.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, scene.Size())

	var got SceneRecord
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, scene, got)
}

func TestPointRecordSkipsUnknownFields(t *testing.T) {
	data, err := testPoint.MarshalBinary()
	require.NoError(t, err)
	data = protowire.AppendTag(data, 15, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)

	var got PointRecord
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, testPoint, got)
}

func TestMalformedRecords(t *testing.T) {
	valid, err := testPoint.MarshalBinary()
	require.NoError(t, err)

	badFloats := protowire.AppendTag(nil, fieldPosition, protowire.BytesType)
	badFloats = protowire.AppendBytes(badFloats, []byte{1, 2, 3})

	badType := protowire.AppendTag(nil, fieldAnchorID, protowire.VarintType)
	badType = protowire.AppendVarint(badType, 1)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "truncated", data: valid[:len(valid)-3]},
		{name: "short-floats", data: badFloats},
		{name: "wrong-wire-type", data: badType},
		{name: "garbage", data: []byte{0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PointRecord
			require.ErrorIs(t, p.UnmarshalBinary(tt.data), ErrMalformed)

			scene := protowire.AppendTag(nil, fieldScenePoint, protowire.BytesType)
			scene = protowire.AppendBytes(scene, tt.data)
			var s SceneRecord
			require.Error(t, s.UnmarshalBinary(scene))
		})
	}
}

func TestSceneRecordClone(t *testing.T) {
	scene := SceneRecord{Points: []PointRecord{testPoint}}
	clone := scene.Clone()
	clone.Points[0].AnchorID = "other"
	require.Equal(t, "pcf-7b1c", scene.Points[0].AnchorID)
	require.Equal(t, SceneRecord{}, SceneRecord{}.Clone())
	require.Equal(t, SceneRecord{}, SceneRecord{Points: []PointRecord{}}.Clone())
}

func TestEmptySceneRecordEncoding(t *testing.T) {
	empty := SceneRecord{Points: []PointRecord{}}.Clone()
	data, err := empty.MarshalBinary()
	require.NoError(t, err)
	require.Empty(t, data)

	var got SceneRecord
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, empty, got)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindPoint, KindScene} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := ParseKind("anchor")
	require.Error(t, err)
}
