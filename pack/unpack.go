// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pack

import (
	"errors"
	"reflect"
)

// Unpack reconstructs a value of desc's probed type from v, reading
// buffer leaves directly out of slot without copying (the returned
// value's buffer fields alias slot — callers must not mutate or release
// the slot while holding the result). slot may be nil if desc contains
// no buffer leaves.
func Unpack(desc Descriptor, v Value, slot []byte) (any, error) {
	rv, err := unpackValue(desc, v, slot)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func unpackValue(desc Descriptor, v Value, slot []byte) (reflect.Value, error) {
	switch desc.Shape {
	case ShapeLeaf:
		if desc.IsBuffer {
			out := reflect.New(desc.Type).Elem()
			switch v.Kind {
			case KindBuffer:
				out.SetBytes(slot[v.Buffer.Offset : v.Buffer.Offset+v.Buffer.Length])
			case KindScalar:
				// Already detached from any slot, either by Inline or by
				// Pack with a nil slot: Scalar holds the raw bytes
				// directly, not JSON-encoded.
				out.SetBytes(v.Scalar)
			default:
				return reflect.Value{}, errors.New("pack: expected buffer leaf")
			}
			return out, nil
		}
		if v.Kind != KindScalar {
			return reflect.Value{}, errors.New("pack: expected scalar leaf")
		}
		out := reflect.New(desc.Type)
		if err := json.Unmarshal(v.Scalar, out.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return out.Elem(), nil

	case ShapeTuple:
		if v.Kind != KindTuple || len(v.Items) != len(desc.Fields) {
			return reflect.Value{}, errors.New("pack: tuple shape mismatch")
		}
		out := reflect.New(desc.Type).Elem()
		for i, fd := range desc.Fields {
			fv, err := unpackValue(fd, v.Items[i], slot)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(desc.FieldIndex[i]).Set(fv)
		}
		return out, nil

	case ShapeList:
		if v.Kind != KindList {
			return reflect.Value{}, errors.New("pack: list shape mismatch")
		}
		out := reflect.MakeSlice(desc.Type, len(v.Items), len(v.Items))
		for i, item := range v.Items {
			ev, err := unpackValue(*desc.Elem, item, slot)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case ShapeMap:
		if v.Kind != KindMap {
			return reflect.Value{}, errors.New("pack: map shape mismatch")
		}
		out := reflect.MakeMapWithSize(desc.Type, len(v.Fields))
		for _, k := range v.SortedKeys() {
			mv, err := unpackValue(*desc.MapValue, v.Fields[k], slot)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k), mv)
		}
		return out, nil
	}
	return reflect.Value{}, errors.New("pack: unreachable shape")
}

// SerializeValue marshals a Value (with any buffer leaves already
// resolved against their slot into inline bytes via Inline) for
// transport over the portable, non-shared-memory path.
func SerializeValue(v Value) ([]byte, error) {
	return json.Marshal(v)
}

// DeserializeValue is the inverse of SerializeValue.
func DeserializeValue(data []byte) (Value, error) {
	var v Value
	err := json.Unmarshal(data, &v)
	return v, err
}

// Inline rewrites every KindBuffer leaf in v into a KindScalar carrying
// a copy of its bytes from slot, producing a Value safe to transport
// without an accompanying shared-memory slot (the portable serialized
// path). The returned tree is otherwise structurally identical to v.
func Inline(v Value, slot []byte) Value {
	switch v.Kind {
	case KindBuffer:
		b := make([]byte, v.Buffer.Length)
		copy(b, slot[v.Buffer.Offset:v.Buffer.Offset+v.Buffer.Length])
		return NewScalar(b)
	case KindTuple:
		items := make([]Value, len(v.Items))
		for i, it := range v.Items {
			items[i] = Inline(it, slot)
		}
		return NewTuple(items...)
	case KindList:
		items := make([]Value, len(v.Items))
		for i, it := range v.Items {
			items[i] = Inline(it, slot)
		}
		return NewList(items)
	case KindMap:
		fields := make(map[string]Value, len(v.Fields))
		for k, it := range v.Fields {
			fields[k] = Inline(it, slot)
		}
		return NewMap(fields)
	default:
		return v
	}
}
