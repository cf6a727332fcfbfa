// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pack

import (
	"fmt"
	"reflect"
)

// Shape classifies how a Descriptor's value decomposes.
type Shape uint8

const (
	// ShapeLeaf: a single scalar (jsoniter-encoded) or raw []byte buffer.
	ShapeLeaf Shape = iota
	// ShapeTuple: a fixed-arity, heterogeneous sequence (a Go struct).
	ShapeTuple
	// ShapeList: a variable-length, homogeneous sequence (a Go slice,
	// other than []byte which is a buffer leaf).
	ShapeList
	// ShapeMap: a string-keyed, heterogeneous mapping (map[string]T).
	ShapeMap
)

// Descriptor is the recipe derived once from a probe sample: it records
// how a value of a given Go type decomposes into the pack.Value sum
// type, without touching any concrete item's data. The same Descriptor
// is reused to Pack and Unpack every item flowing through a pipeline.
type Descriptor struct {
	Shape Shape
	Type  reflect.Type

	IsBuffer bool // ShapeLeaf only: true for []byte, false for scalars

	// ShapeTuple
	FieldNames []string
	// FieldIndex records each entry in Fields' position in the original
	// struct (reflect.Value.Field index), since unexported fields are
	// skipped while probing and would otherwise desync a plain
	// range-position index from the struct's real field layout.
	FieldIndex []int
	Fields     []Descriptor

	// ShapeList
	Elem *Descriptor

	// ShapeMap
	MapValue *Descriptor
}

// Describe derives a Descriptor from a probe sample. The sample's
// concrete type and shape are fixed for the lifetime of the pipeline;
// Describe should be called once, not per item.
func Describe(sample any) (Descriptor, error) {
	return describeType(reflect.TypeOf(sample))
}

func describeType(t reflect.Type) (Descriptor, error) {
	if t == nil {
		return Descriptor{}, fmt.Errorf("pack: cannot describe a nil sample")
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return Descriptor{Shape: ShapeLeaf, Type: t, IsBuffer: true}, nil
		}
		elem, err := describeType(t.Elem())
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Shape: ShapeList, Type: t, Elem: &elem}, nil

	case reflect.Struct:
		d := Descriptor{Shape: ShapeTuple, Type: t}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fd, err := describeType(f.Type)
			if err != nil {
				return Descriptor{}, err
			}
			d.FieldNames = append(d.FieldNames, f.Name)
			d.FieldIndex = append(d.FieldIndex, i)
			d.Fields = append(d.Fields, fd)
		}
		return d, nil

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Descriptor{}, fmt.Errorf("pack: map key type %s is not string", t.Key())
		}
		vd, err := describeType(t.Elem())
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Shape: ShapeMap, Type: t, MapValue: &vd}, nil

	case reflect.Ptr, reflect.Interface:
		return Descriptor{}, fmt.Errorf("pack: unsupported kind %s; dereference or concretize before probing", t.Kind())

	default:
		return Descriptor{Shape: ShapeLeaf, Type: t, IsBuffer: false}, nil
	}
}
