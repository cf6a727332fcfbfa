// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pack

import (
	"errors"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// ErrSlotOverflow is returned by Pack when a buffer leaf does not fit
// in the remaining slot space. Callers (the process backend's worker
// side) catch this and fall back to fully serialized transport for the
// offending item.
var ErrSlotOverflow = errors.New("pack: value does not fit in shared-memory slot")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Pack projects val (which must match desc's probed shape) into a
// pack.Value. Buffer leaves ([]byte fields) are copied into slot and
// represented as zero-copy offset/length ranges; scalar leaves are
// jsoniter-encoded and inlined directly into the returned Value, since
// they are assumed small relative to buffer payloads. slot may be nil,
// whether or not desc contains buffer leaves: a nil slot skips the
// shared-memory path entirely and inlines every buffer leaf's bytes
// directly as a scalar, producing a Value already in the portable,
// no-slot-required shape (see Inline, which does the same conversion
// after the fact for values already packed into a real slot).
func Pack(desc Descriptor, val any, slot []byte) (Value, error) {
	cursor := 0
	return packValue(desc, reflect.ValueOf(val), slot, &cursor)
}

func packValue(desc Descriptor, rv reflect.Value, slot []byte, cursor *int) (Value, error) {
	switch desc.Shape {
	case ShapeLeaf:
		if desc.IsBuffer {
			b := rv.Bytes()
			if slot == nil {
				cp := make([]byte, len(b))
				copy(cp, b)
				return NewScalar(cp), nil
			}
			if *cursor+len(b) > len(slot) {
				return Value{}, ErrSlotOverflow
			}
			n := copy(slot[*cursor:], b)
			ref := NewBuffer(*cursor, n)
			*cursor += n
			return ref, nil
		}
		encoded, err := json.Marshal(rv.Interface())
		if err != nil {
			return Value{}, err
		}
		return NewScalar(encoded), nil

	case ShapeTuple:
		items := make([]Value, len(desc.Fields))
		for i, fd := range desc.Fields {
			v, err := packValue(fd, rv.Field(desc.FieldIndex[i]), slot, cursor)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return NewTuple(items...), nil

	case ShapeList:
		n := rv.Len()
		items := make([]Value, n)
		for i := 0; i < n; i++ {
			v, err := packValue(*desc.Elem, rv.Index(i), slot, cursor)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return NewList(items), nil

	case ShapeMap:
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := packValue(*desc.MapValue, iter.Value(), slot, cursor)
			if err != nil {
				return Value{}, err
			}
			fields[iter.Key().String()] = v
		}
		return NewMap(fields), nil
	}
	return Value{}, errors.New("pack: unreachable shape")
}
