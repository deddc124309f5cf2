// Package debug provides lightweight invariant checks, enabled
// unconditionally: georepd's invariants are cheap enough to always
// check rather than gate behind a build tag.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "fmt"

// Assert panics with the given message when cond is false. Used for
// invariants that would indicate a programming error in this repo, not
// for conditions that can legitimately occur at runtime (those are
// regular errors).
func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprint(args...))
}

func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintf(format, args...))
}
