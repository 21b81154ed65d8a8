//go:build linux

package proto

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type testMsgA struct {
	Value int
}

type testMsgB struct {
	Name string
}

func testTagMap() *TagMap {
	return NewTagMap(map[uint8]reflect.Type{
		1: reflect.TypeOf(testMsgA{}),
		2: reflect.TypeOf(testMsgB{}),
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tm := testTagMap()

	payload, err := Encode(tm, testMsgA{Value: 7})
	require.NoError(t, err)

	got, err := Decode(tm, payload)
	require.NoError(t, err)
	msg, ok := got.(*testMsgA)
	require.True(t, ok)
	require.Equal(t, 7, msg.Value)
}

func TestEncodeUnregisteredType(t *testing.T) {
	tm := testTagMap()
	_, err := Encode(tm, struct{ X int }{X: 1})
	require.Error(t, err)
}

func TestDecodeUnregisteredTag(t *testing.T) {
	tm := testTagMap()
	_, err := Decode(tm, []byte{0xFF, 1, 2, 3})
	require.Error(t, err)
}

func TestDecodeEmptyPayload(t *testing.T) {
	tm := testTagMap()
	_, err := Decode(tm, nil)
	require.Error(t, err)
}

func TestCoreTagMapRoundTrip(t *testing.T) {
	payload, err := Encode(Core, ReloadNotice{Reason: "reload"})
	require.NoError(t, err)

	got, err := Decode(Core, payload)
	require.NoError(t, err)
	notice, ok := got.(*ReloadNotice)
	require.True(t, ok)
	require.Equal(t, "reload", notice.Reason)
}
