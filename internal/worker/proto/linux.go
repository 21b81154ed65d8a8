//go:build linux

package proto

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode marshals msg as tag-prefixed msgpack, ready for
// channel.Endpoint.SendExternal. Adapted from porkg's Proto.Send
// (internal/worker/proto/linux.go), which wrote a length-prefixed
// tag+msgpack frame straight to an io.Writer; here the framing is
// internal/channel's job, so Encode only produces the tag+body bytes.
func Encode(tm *TagMap, msg any) ([]byte, error) {
	t := reflect.TypeOf(msg)
	tag, ok := tm.toTag[t]
	if !ok {
		return nil, fmt.Errorf("proto: type %s is not registered", t)
	}
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("proto: marshal %s: %w", t, err)
	}
	out := make([]byte, 1+len(body))
	out[0] = tag
	copy(out[1:], body)
	return out, nil
}

// Decode is Encode's inverse, adapted from Proto.Recv's tag lookup +
// msgpack.Unmarshal into a freshly allocated instance of the
// registered type.
func Decode(tm *TagMap, payload []byte) (any, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("proto: empty external payload")
	}
	t, ok := tm.toType[payload[0]]
	if !ok {
		return nil, fmt.Errorf("proto: unregistered external tag %#x", payload[0])
	}
	v := reflect.New(t)
	if err := msgpack.Unmarshal(payload[1:], v.Interface()); err != nil {
		return nil, fmt.Errorf("proto: unmarshal %s: %w", t, err)
	}
	return v.Interface(), nil
}
