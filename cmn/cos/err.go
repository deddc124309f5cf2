// Package cos provides common low-level types and utilities for georepd.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

////////////////////////
// IS-syscall helpers //
////////////////////////

// IsErrNoData reports whether err is ENODATA: the attribute queried by
// lgetxattr/xtime is simply unset.
func IsErrNoData(err error) bool {
	return errors.Is(err, unix.ENODATA) || errors.Is(err, syscall.ENODATA)
}

// IsErrNoEntry reports whether err is ENOENT: the path itself is missing.
func IsErrNoEntry(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, syscall.ENOENT)
}

// IsErrNotExist is for call sites that read more naturally in terms of
// "missing" than "ENOENT": it is the same check as IsErrNoEntry, and
// also reports ENOTDIR (a path component is not a directory) as missing.
func IsErrNotExist(err error) bool {
	return IsErrNoEntry(err) || errors.Is(err, syscall.ENOTDIR)
}

/////////////////
// FatalError  //
/////////////////

// FatalError marks a logical-invariant breach: a uuid flip without
// relaxation, slave-xtime > master-xtime, a master with Retval != 0, or
// more than one foreign volinfo observed in a single turn. The worker
// aborts on this and the supervisor is expected to restart it.
type FatalError struct {
	msg string
}

func NewFatalError(format string, a ...any) *FatalError {
	return &FatalError{msg: fmt.Sprintf(format, a...)}
}

func (e *FatalError) Error() string { return e.msg }

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
