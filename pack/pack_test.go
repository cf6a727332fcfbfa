// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pack_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/outrigger-data/seqflow/pack"
)

func TestDescribeAndPackScalar(t *testing.T) {
	desc, err := pack.Describe(0)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	v, err := pack.Pack(desc, 42, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if v.Kind != pack.KindScalar {
		t.Fatalf("Kind = %v, want KindScalar", v.Kind)
	}
	got, err := pack.Unpack(desc, v, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.(int) != 42 {
		t.Fatalf("Unpack = %v, want 42", got)
	}
}

func TestDescribeAndPackBuffer(t *testing.T) {
	desc, err := pack.Describe([]byte(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	slot := make([]byte, 16)
	v, err := pack.Pack(desc, []byte("hello"), slot)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if v.Kind != pack.KindBuffer {
		t.Fatalf("Kind = %v, want KindBuffer", v.Kind)
	}
	got, err := pack.Unpack(desc, v, slot)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(got.([]byte), []byte("hello")) {
		t.Fatalf("Unpack = %q, want %q", got, "hello")
	}
}

func TestPackBufferOverflow(t *testing.T) {
	desc, err := pack.Describe([]byte(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	slot := make([]byte, 2)
	_, err = pack.Pack(desc, []byte("too long"), slot)
	if !errors.Is(err, pack.ErrSlotOverflow) {
		t.Fatalf("Pack overflow: got %v, want ErrSlotOverflow", err)
	}
}

// mixedFields has unexported fields interleaved with exported ones, to
// exercise Descriptor.FieldIndex: the probe-order position of B and D
// among exported fields (0, 1) differs from their raw struct field
// index (1, 3).
type mixedFields struct {
	a int
	B string
	c float64
	D []byte
}

func TestDescribeAndPackTupleWithUnexportedFields(t *testing.T) {
	sample := mixedFields{a: -1, B: "before", c: -1, D: []byte("payload")}
	desc, err := pack.Describe(sample)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(desc.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2 (only exported fields)", len(desc.Fields))
	}
	if desc.FieldNames[0] != "B" || desc.FieldNames[1] != "D" {
		t.Fatalf("FieldNames = %v, want [B D]", desc.FieldNames)
	}

	slot := make([]byte, 32)
	v, err := pack.Pack(desc, mixedFields{a: 0, B: "after", c: 0, D: []byte("payload")}, slot)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := pack.Unpack(desc, v, slot)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	out := got.(mixedFields)
	if out.B != "after" {
		t.Fatalf("B = %q, want %q (field index must not desync around unexported fields)", out.B, "after")
	}
	if !bytes.Equal(out.D, []byte("payload")) {
		t.Fatalf("D = %q, want %q", out.D, "payload")
	}
}

type point struct {
	X int
	Y int
}

func TestDescribeAndPackTuple(t *testing.T) {
	desc, err := pack.Describe(point{})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	v, err := pack.Pack(desc, point{X: 3, Y: 4}, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if v.Kind != pack.KindTuple || len(v.Items) != 2 {
		t.Fatalf("Pack result = %+v, want a 2-item tuple", v)
	}
	got, err := pack.Unpack(desc, v, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.(point) != (point{X: 3, Y: 4}) {
		t.Fatalf("Unpack = %+v, want {3 4}", got)
	}
}

func TestDescribeAndPackList(t *testing.T) {
	desc, err := pack.Describe([]int(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	v, err := pack.Pack(desc, []int{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if v.Kind != pack.KindList || len(v.Items) != 3 {
		t.Fatalf("Pack result = %+v, want a 3-item list", v)
	}
	got, err := pack.Unpack(desc, v, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !reflect.DeepEqual(got.([]int), []int{1, 2, 3}) {
		t.Fatalf("Unpack = %v, want [1 2 3]", got)
	}
}

func TestDescribeAndPackMap(t *testing.T) {
	desc, err := pack.Describe(map[string]int(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	v, err := pack.Pack(desc, map[string]int{"b": 2, "a": 1, "c": 3}, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if v.Kind != pack.KindMap {
		t.Fatalf("Kind = %v, want KindMap", v.Kind)
	}
	if keys := v.SortedKeys(); !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Fatalf("SortedKeys = %v, want [a b c]", keys)
	}
	got, err := pack.Unpack(desc, v, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	if !reflect.DeepEqual(got.(map[string]int), want) {
		t.Fatalf("Unpack = %v, want %v", got, want)
	}
}

func TestDescribeRejectsPointerAndInterface(t *testing.T) {
	if _, err := pack.Describe(new(int)); err == nil {
		t.Fatal("Describe(*int): want error, got nil")
	}
	if _, err := pack.Describe([]any{1}); err == nil {
		t.Fatal("Describe([]any): want error for interface element, got nil")
	}
}

func TestSerializeDeserializeValueRoundTrip(t *testing.T) {
	desc, err := pack.Describe(point{})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	v, err := pack.Pack(desc, point{X: 7, Y: 8}, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	data, err := pack.SerializeValue(v)
	if err != nil {
		t.Fatalf("SerializeValue: %v", err)
	}
	got, err := pack.DeserializeValue(data)
	if err != nil {
		t.Fatalf("DeserializeValue: %v", err)
	}
	out, err := pack.Unpack(desc, got, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out.(point) != (point{X: 7, Y: 8}) {
		t.Fatalf("round trip = %+v, want {7 8}", out)
	}
}

func TestInlineDetachesBufferFromSlot(t *testing.T) {
	desc, err := pack.Describe([]byte(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	slot := []byte("xxxhelloxxx")
	v, err := pack.Pack(desc, []byte("hello"), slot[3:8])
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	inlined := pack.Inline(v, slot[3:8])
	if inlined.Kind != pack.KindScalar {
		t.Fatalf("Inline Kind = %v, want KindScalar", inlined.Kind)
	}

	// Overwrite the original slot: the inlined copy must be unaffected.
	copy(slot[3:8], "zzzzz")

	if string(inlined.Scalar) != "hello" {
		t.Fatalf("inlined value = %q, want %q (must not alias overwritten slot)", inlined.Scalar, "hello")
	}

	got, err := pack.Unpack(desc, inlined, nil)
	if err != nil {
		t.Fatalf("Unpack of an Inline'd buffer leaf: %v", err)
	}
	if string(got.([]byte)) != "hello" {
		t.Fatalf("Unpack of an Inline'd buffer leaf = %q, want %q", got, "hello")
	}
}

type bufPair struct {
	A []byte
	B []byte
}

func TestInlineNestedShapes(t *testing.T) {
	bufDesc, err := pack.Describe([]byte(nil))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	slot := make([]byte, 16)
	leaf, err := pack.Pack(bufDesc, []byte("ab"), slot)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	tupleDesc, err := pack.Describe(bufPair{})
	if err != nil {
		t.Fatalf("Describe(bufPair): %v", err)
	}
	tuple := pack.NewTuple(leaf, leaf)

	listDesc, err := pack.Describe([][]byte(nil))
	if err != nil {
		t.Fatalf("Describe([][]byte): %v", err)
	}
	list := pack.NewList([]pack.Value{leaf})

	mapDesc, err := pack.Describe(map[string][]byte(nil))
	if err != nil {
		t.Fatalf("Describe(map[string][]byte): %v", err)
	}
	m := pack.NewMap(map[string]pack.Value{"k": leaf})

	cases := []struct {
		name string
		desc pack.Descriptor
		v    pack.Value
	}{
		{"tuple", tupleDesc, tuple},
		{"list", listDesc, list},
		{"map", mapDesc, m},
	}
	for _, c := range cases {
		inlined := pack.Inline(c.v, slot)
		if err := walkNoBuffers(inlined); err != nil {
			t.Fatalf("%s: Inline: %v", c.name, err)
		}
		if _, err := pack.Unpack(c.desc, inlined, nil); err != nil {
			t.Fatalf("%s: Unpack of an Inline'd value: %v", c.name, err)
		}
	}
}

func walkNoBuffers(v pack.Value) error {
	switch v.Kind {
	case pack.KindBuffer:
		return errors.New("pack_test: Inline left a KindBuffer leaf")
	case pack.KindTuple, pack.KindList:
		for _, it := range v.Items {
			if err := walkNoBuffers(it); err != nil {
				return err
			}
		}
	case pack.KindMap:
		for _, it := range v.Fields {
			if err := walkNoBuffers(it); err != nil {
				return err
			}
		}
	}
	return nil
}
