// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import (
	"github.com/outrigger-data/seqflow/registry"
)

// RegisterFactory makes a sequence constructor available to
// [PrefetchProcess] under name: a re-exec'd worker process looks the
// name up in seqflow/registry and calls factory with the same args bytes
// a caller passed to PrefetchProcess (registry.EncodeArgs and DecodeArgs
// offer a gob encoding for them), to rebuild an equivalent Seq[T] inside
// the child, without ever serializing a Go closure across the process
// boundary.
//
// Register every factory a program intends to use with PrefetchProcess
// from an init function or equivalently early, before any
// PrefetchProcess call — including inside the re-exec'd worker itself,
// which runs the same main() and therefore the same init functions.
//
// RegisterFactory panics if name is already registered, mirroring
// database/sql's driver registration discipline.
func RegisterFactory[T any](name string, factory func(args []byte) (Seq[T], error)) {
	registry.Register(name, func(args []byte) (registry.Evaluator, error) {
		seq, err := factory(args)
		if err != nil {
			return nil, err
		}
		return evaluatorAdaptor[T]{seq}, nil
	})
}

// evaluatorAdaptor widens a Seq[T] into the untyped shape
// seqflow/registry and seqflow/backend's worker-side code expect,
// without either of those packages needing to import this one.
type evaluatorAdaptor[T any] struct {
	seq Seq[T]
}

func (a evaluatorAdaptor[T]) Len() (int, bool) { return a.seq.Len() }

func (a evaluatorAdaptor[T]) Get(i int) (any, error) { return a.seq.Get(i) }
