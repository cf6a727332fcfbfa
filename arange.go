// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

// Arange returns an arithmetic progression view: Get(i) = start + i*step,
// with the same half-open, clipped-length semantics as a counting range.
// step must not be zero.
func Arange(start, stop, step int) (Seq[int], error) {
	if step == 0 {
		return nil, &InvalidIndex{Reason: "arange step must not be zero"}
	}
	var n int
	if step > 0 {
		if stop > start {
			n = (stop - start + step - 1) / step
		}
	} else {
		if stop < start {
			n = (start - stop - step - 1) / (-step)
		}
	}
	return &arangeView{start: start, step: step, n: n}, nil
}

type arangeView struct {
	start int
	step  int
	n     int
}

func (v *arangeView) Len() (int, bool) { return v.n, true }

func (v *arangeView) Get(i int) (int, error) {
	idx, err := normalizeIndex(i, v.n)
	if err != nil {
		return 0, err
	}
	return v.start + idx*v.step, nil
}

func (v *arangeView) slice(start, stop, step int) Seq[int] {
	return &arangeView{
		start: v.start + start*v.step,
		step:  v.step * step,
		n:     sliceLen(start, stop, step),
	}
}

func sliceLen(start, stop, step int) int {
	if step > 0 {
		if stop <= start {
			return 0
		}
		return (stop - start + step - 1) / step
	}
	if stop >= start {
		return 0
	}
	return (start - stop - step - 1) / (-step)
}
