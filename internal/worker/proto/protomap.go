// Package proto is the codec for the control channel's "external
// payload" extension point (spec.md §9: the protocol tag allows an
// "external-encoded" payload the core never decodes; left as a
// pass-through for an application message schema). Adapted from
// porkg's reflect.Type<->tag map (internal/worker/proto/protomap.go):
// same tag-dispatch idea, but mapping onto a flat msgpack-encoded byte
// slice instead of porkg's own io.Writer/Reader framing, since
// internal/channel already owns framing.
package proto

import "reflect"

// TagMap maps a one-byte tag to a concrete Go type in both directions,
// the same shape as porkg's ProtoTagMap.
type TagMap struct {
	toTag  map[reflect.Type]uint8
	toType map[uint8]reflect.Type
}

func NewTagMap(toType map[uint8]reflect.Type) *TagMap {
	toTag := make(map[reflect.Type]uint8, len(toType))
	for tag, ty := range toType {
		toTag[ty] = tag
	}
	return &TagMap{toTag: toTag, toType: toType}
}
