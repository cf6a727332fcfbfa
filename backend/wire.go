// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Fixed binary wire formats for the process backend's pipes: the hot
// path should never allocate, so only the variable-length result
// payload is serialized generically; the header that every message
// carries is a fixed struct layout.

// jobWireSize is the byte size of a wire-encoded Job: int64 ItemIndex,
// int32 Slot.
const jobWireSize = 8 + 4

func writeJob(w io.Writer, j Job) error {
	var buf [jobWireSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(j.ItemIndex))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(j.Slot))
	_, err := w.Write(buf[:])
	return err
}

func readJob(r io.Reader) (Job, error) {
	var buf [jobWireSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Job{}, err
	}
	return Job{
		ItemIndex: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Slot:      int32(binary.LittleEndian.Uint32(buf[8:12])),
	}, nil
}

// transport tags how a completion's payload bytes should be interpreted.
type transport uint8

const (
	// transportSerialized: payload is a complete, self-contained
	// jsoniter-encoded pack.Value (or, for a failed job, a
	// {Message, Type} error pair) with no arena reference.
	transportSerialized transport = iota
	// transportShared: payload is a jsoniter-encoded pack.Value whose
	// Buffer leaves reference byte ranges inside the shared arena slot
	// named by the completion's Slot field, already written there by
	// the worker.
	transportShared
)

// completionHeaderSize is the byte size of a wire-encoded completion
// header: uint8 Status, uint8 Transport, int64 ItemIndex, int32 Slot,
// uint32 PayloadLen.
const completionHeaderSize = 1 + 1 + 8 + 4 + 4

type completionHeader struct {
	Status    Status
	Transport transport
	ItemIndex int64
	Slot      int32
	// PayloadLen is implicit in the write/read helpers, not stored here.
}

func writeCompletionHeader(w io.Writer, h completionHeader, payloadLen int) error {
	var buf [completionHeaderSize]byte
	buf[0] = byte(h.Status)
	buf[1] = byte(h.Transport)
	binary.LittleEndian.PutUint64(buf[2:10], uint64(h.ItemIndex))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(h.Slot))
	binary.LittleEndian.PutUint32(buf[14:18], uint32(payloadLen))
	_, err := w.Write(buf[:])
	return err
}

func readCompletionHeader(r io.Reader) (completionHeader, int, error) {
	var buf [completionHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return completionHeader{}, 0, err
	}
	h := completionHeader{
		Status:    Status(buf[0]),
		Transport: transport(buf[1]),
		ItemIndex: int64(binary.LittleEndian.Uint64(buf[2:10])),
		Slot:      int32(binary.LittleEndian.Uint32(buf[10:14])),
	}
	n := binary.LittleEndian.Uint32(buf[14:18])
	const maxPayload = 1 << 28
	if n > maxPayload {
		return completionHeader{}, 0, fmt.Errorf("backend: implausible payload length %d", n)
	}
	return h, int(n), nil
}
