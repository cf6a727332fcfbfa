// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/outrigger-data/seqflow/arena"
	"github.com/outrigger-data/seqflow/pack"
)

type fakeEvaluator struct{}

func (fakeEvaluator) Len() (int, bool) { return 0, false }

func (fakeEvaluator) Get(i int) (any, error) {
	if i < 0 {
		return nil, fmt.Errorf("negative index %d", i)
	}
	return i * 2, nil
}

func TestWorkerLoopServesOneJobThenTerminates(t *testing.T) {
	var in bytes.Buffer
	if err := writeJob(&in, Job{ItemIndex: 5, Slot: 0}); err != nil {
		t.Fatalf("writeJob: %v", err)
	}
	if err := writeJob(&in, Job{Slot: -1}); err != nil { // terminate sentinel
		t.Fatalf("writeJob(terminate): %v", err)
	}

	var out bytes.Buffer
	w := &workerLoop{eval: fakeEvaluator{}, stdin: &in, stdout: &out}
	if err := w.run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	h, n, err := readCompletionHeader(&out)
	if err != nil {
		t.Fatalf("readCompletionHeader: %v", err)
	}
	if h.Status != StatusDone || h.ItemIndex != 5 || h.Slot != 0 {
		t.Fatalf("header = %+v, want {Status:Done ItemIndex:5 Slot:0}", h)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(&out, payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	var v pack.Value
	if err := processJSON.Unmarshal(payload, &v); err != nil {
		t.Fatalf("decoding payload as pack.Value: %v", err)
	}
	if v.Kind != pack.KindScalar || string(v.Scalar) != "10" {
		t.Fatalf("payload Value = %+v, want a KindScalar wrapping jsoniter-encoded 10", v)
	}
}

func TestWorkerLoopMarksEvaluatorErrorsFailed(t *testing.T) {
	var in bytes.Buffer
	if err := writeJob(&in, Job{ItemIndex: -1, Slot: 0}); err != nil {
		t.Fatalf("writeJob: %v", err)
	}
	if err := writeJob(&in, Job{Slot: -1}); err != nil {
		t.Fatalf("writeJob(terminate): %v", err)
	}

	var out bytes.Buffer
	w := &workerLoop{eval: fakeEvaluator{}, stdin: &in, stdout: &out}
	if err := w.run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	h, n, err := readCompletionHeader(&out)
	if err != nil {
		t.Fatalf("readCompletionHeader: %v", err)
	}
	if h.Status != StatusFailed {
		t.Fatalf("Status = %v, want StatusFailed", h.Status)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(&out, payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	var ep errorPayload
	if err := processJSON.Unmarshal(payload, &ep); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if ep.Message == "" {
		t.Fatal("errorPayload.Message is empty")
	}
}

func TestWorkerLoopStopsOnEOF(t *testing.T) {
	w := &workerLoop{eval: fakeEvaluator{}, stdin: bytes.NewReader(nil), stdout: &bytes.Buffer{}}
	if err := w.run(); err != nil {
		t.Fatalf("run on immediate EOF: %v", err)
	}
}

func TestPackWithoutArenaFallsBackToSerialized(t *testing.T) {
	w := &workerLoop{}
	tr, payload := w.pack(7, 0)
	if tr != transportSerialized {
		t.Fatalf("transport = %v, want transportSerialized", tr)
	}
	var v pack.Value
	if err := processJSON.Unmarshal(payload, &v); err != nil {
		t.Fatalf("decoding payload as pack.Value: %v", err)
	}
	if v.Kind != pack.KindScalar {
		t.Fatalf("Kind = %v, want KindScalar", v.Kind)
	}
	if string(v.Scalar) != "7" {
		t.Fatalf("Scalar = %q, want %q", v.Scalar, "7")
	}
}

func TestPackNoArenaRoundTripsBufferField(t *testing.T) {
	v := []byte("a buffer field result")
	w := &workerLoop{}
	tr, payload := w.pack(v, 0)
	if tr != transportSerialized {
		t.Fatalf("transport = %v, want transportSerialized", tr)
	}
	var pv pack.Value
	if err := processJSON.Unmarshal(payload, &pv); err != nil {
		t.Fatalf("decoding payload as pack.Value: %v", err)
	}
	got, err := pack.Unpack(w.desc, pv, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if string(got.([]byte)) != string(v) {
		t.Fatalf("round trip = %q, want %q", got, v)
	}
}

func TestPackSlotOverflowFallbackRoundTrips(t *testing.T) {
	ar, err := arena.New(8, 1)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	defer ar.Close()

	v := []byte("this value is longer than one arena slot")
	w := &workerLoop{ar: ar}
	tr, payload := w.pack(v, 0)
	if tr != transportSerialized {
		t.Fatalf("transport = %v, want transportSerialized (overflow fallback)", tr)
	}
	var pv pack.Value
	if err := processJSON.Unmarshal(payload, &pv); err != nil {
		t.Fatalf("decoding payload as pack.Value: %v", err)
	}
	got, err := pack.Unpack(w.desc, pv, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if string(got.([]byte)) != string(v) {
		t.Fatalf("round trip = %q, want %q", got, v)
	}
}

func TestMarshalFailureIsDecodable(t *testing.T) {
	payload := marshalFailure(errors.New("boom"))
	var ep errorPayload
	if err := processJSON.Unmarshal(payload, &ep); err != nil {
		t.Fatalf("decoding marshalFailure output: %v", err)
	}
	if ep.Message != "boom" {
		t.Fatalf("Message = %q, want %q", ep.Message, "boom")
	}
}
