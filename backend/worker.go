// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/outrigger-data/seqflow/arena"
	"github.com/outrigger-data/seqflow/pack"
	"github.com/outrigger-data/seqflow/registry"
)

// RunWorker is the worker-side entrypoint. A host program's main()
// must call IsWorker() before anything else and, if true, exit with
// the result of RunWorker() rather than running its normal logic:
//
//	func main() {
//	    if backend.IsWorker() {
//	        os.Exit(backend.RunWorker())
//	    }
//	    ... normal program ...
//	}
//
// RunWorker resolves the registered factory named by the environment
// seqflow.PrefetchProcess was called with, rebuilds the sequence, and
// serves jobs off stdin until the parent closes the pipe or sends the
// terminate sentinel.
func RunWorker() int {
	if err := runWorker(); err != nil {
		fmt.Fprintln(os.Stderr, "seqflow worker:", err)
		return 1
	}
	return 0
}

func runWorker() error {
	name := os.Getenv(envFactory)
	factory, ok := registry.Lookup(name)
	if !ok {
		return fmt.Errorf("backend: no factory registered under %q", name)
	}
	args, err := base64.StdEncoding.DecodeString(os.Getenv(envArgs))
	if err != nil {
		return fmt.Errorf("backend: decoding factory args: %w", err)
	}
	eval, err := factory(args)
	if err != nil {
		return fmt.Errorf("backend: factory %q: %w", name, err)
	}

	maxBuffered, _ := strconv.Atoi(os.Getenv(envMaxBuffered))
	timeout, _ := time.ParseDuration(os.Getenv(envTimeout))

	var ar *arena.Arena
	if s := os.Getenv(envShmSize); s != "" {
		shmSize, _ := strconv.Atoi(s)
		ar, err = arena.OpenShared(3, shmSize, maxBuffered)
		if err != nil {
			return fmt.Errorf("backend: mapping shared arena: %w", err)
		}
	}

	w := &workerLoop{
		eval:      eval,
		ar:        ar,
		parentPID: os.Getppid(),
		timeout:   timeout,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	return w.run()
}

type workerLoop struct {
	eval      registry.Evaluator
	ar        *arena.Arena
	parentPID int
	timeout   time.Duration
	stdin     io.Reader
	stdout    io.Writer

	descOnce sync.Once
	desc     pack.Descriptor
	descErr  error
}

func (w *workerLoop) run() error {
	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	dl, hasDeadline := w.stdin.(deadliner)

	for {
		if hasDeadline && w.timeout > 0 {
			_ = dl.SetReadDeadline(time.Now().Add(w.timeout))
		}
		job, err := readJob(w.stdin)
		if err != nil {
			if os.IsTimeout(err) {
				if os.Getppid() != w.parentPID {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if job.Terminate() {
			return nil
		}
		if err := w.serve(job); err != nil {
			return err
		}
	}
}

func (w *workerLoop) serve(job Job) error {
	v, gerr := w.eval.Get(int(job.ItemIndex))
	h := completionHeader{ItemIndex: job.ItemIndex, Slot: job.Slot}
	var payload []byte

	if gerr != nil {
		h.Status = StatusFailed
		payload = marshalFailure(gerr)
	} else {
		h.Status = StatusDone
		h.Transport, payload = w.pack(v, job.Slot)
	}

	if err := writeCompletionHeader(w.stdout, h, len(payload)); err != nil {
		return err
	}
	_, err := w.stdout.Write(payload)
	return err
}

// pack projects v into a pack.Value-shaped payload. Every transport
// (shared and serialized alike) carries a pack.Value envelope: readLoop
// always decodes the payload as one, so the no-arena and
// overflow-fallback paths must describe/pack v rather than hand back
// its raw domain JSON.
func (w *workerLoop) pack(v any, slot int32) (transport, []byte) {
	w.descOnce.Do(func() { w.desc, w.descErr = pack.Describe(v) })
	if w.descErr != nil {
		return transportSerialized, mustJSON(fallbackValue(v))
	}
	if w.ar == nil {
		packed, err := pack.Pack(w.desc, v, nil)
		if err != nil {
			return transportSerialized, mustJSON(fallbackValue(v))
		}
		return transportSerialized, mustJSON(packed)
	}
	packed, err := pack.Pack(w.desc, v, w.ar.BytesAt(slot))
	if err != nil {
		// Slot overflow: fall back to fully serialized transport for
		// this item.
		inlined, ierr := pack.Pack(w.desc, v, nil)
		if ierr != nil {
			return transportSerialized, mustJSON(fallbackValue(v))
		}
		return transportSerialized, mustJSON(inlined)
	}
	return transportShared, mustJSON(packed)
}

// fallbackValue wraps v as a pack.Value scalar when its shape cannot be
// described or packed at all, so the payload is still decodable as a
// pack.Value on the read side even in that degenerate case.
func fallbackValue(v any) pack.Value {
	return pack.NewScalar(mustJSON(v))
}

func mustJSON(v any) []byte {
	b, err := processJSON.Marshal(v)
	if err != nil {
		return marshalFailure(err)
	}
	return b
}

func marshalFailure(err error) []byte {
	ep := errorPayload{Message: err.Error(), Type: fmt.Sprintf("%T", err)}
	b, merr := processJSON.Marshal(ep)
	if merr != nil {
		return []byte(err.Error())
	}
	return b
}
