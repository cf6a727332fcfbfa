// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry resolves the closure problem that PrefetchProcess
// faces: Go cannot serialize a closure the way Python's multiprocessing
// pickles a callable, so a sequence usable with the process backend must
// instead be produced by a named, registered factory that a re-exec'd
// child can look up and call for itself.
//
// The pattern mirrors github.com/grailbio/bigslice's bigmachine executor
// (exec/bigmachine.go's invocationRef/gob.Register): a small reference
// (here, a name plus opaque gob-encoded arguments) crosses the process
// boundary instead of the pipeline itself.
package registry

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// Factory rebuilds a sequence of packable values from opaque arguments.
// Implementations typically gob-decode args into a concrete struct and
// build a seqflow pipeline ending in a seqflow/pack.Value sequence.
type Factory func(args []byte) (Evaluator, error)

// Evaluator is the structural contract a registered factory's result
// must satisfy: seqflow.Seq[pack.Value]'s shape. Defined locally (rather
// than imported from seqflow or seqflow/pack) so this package has no
// dependency on either — only the worker entrypoint that calls a looked-up
// Factory needs to know the concrete types involved.
type Evaluator interface {
	Len() (int, bool)
	Get(i int) (any, error)
}

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register associates name with factory. Typically called from an
// init() function in the same binary that also calls PrefetchProcess,
// so that both the parent and any re-exec'd child process observe the
// same registration before main() runs. Panics on duplicate
// registration, matching the stdlib's database/sql-driver convention
// for this kind of process-wide registry.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("registry: factory %q already registered", name))
	}
	factories[name] = factory
}

// Lookup returns the factory registered under name, if any.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// EncodeArgs gob-encodes v for passing to PrefetchProcess/Register as
// the factory's opaque argument payload.
func EncodeArgs(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArgs is the inverse of EncodeArgs; factories call it to recover
// their typed arguments from the opaque byte payload.
func DecodeArgs(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
