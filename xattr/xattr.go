// Package xattr exposes the four no-follow extended-attribute operations
// the crawler and the local-filesystem endpoint need, built on
// github.com/pkg/xattr. The two-phase query/allocate dance for reading
// a value of unknown size is pkg/xattr's own internal behavior on
// Linux; this package only needs to surface errno discrimination on
// top of it.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package xattr

import (
	"strings"

	"github.com/pkg/errors"
	pkgxattr "github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

// Lgetxattr reads attr from path without following symlinks.
func Lgetxattr(path, attr string) ([]byte, error) {
	v, err := pkgxattr.LGet(path, attr)
	if err != nil {
		return nil, wrap(err, path, attr, "lgetxattr")
	}
	return v, nil
}

// Llistxattr lists the attribute names set on path without following
// symlinks.
func Llistxattr(path string) ([]string, error) {
	names, err := pkgxattr.LList(path)
	if err != nil {
		return nil, wrap(err, path, "", "llistxattr")
	}
	return names, nil
}

// Lsetxattr writes attr=value on path without following symlinks.
func Lsetxattr(path, attr string, value []byte) error {
	if err := pkgxattr.LSet(path, attr, value); err != nil {
		return wrap(err, path, attr, "lsetxattr")
	}
	return nil
}

// Lremovexattr removes attr from path without following symlinks.
func Lremovexattr(path, attr string) error {
	if err := pkgxattr.LRemove(path, attr); err != nil {
		return wrap(err, path, attr, "lremovexattr")
	}
	return nil
}

// wrap normalizes pkg/xattr's *xattr.Error into something cmn/cos's
// IsErrNoData/IsErrNoEntry predicates recognize: pkg/xattr already wraps
// a syscall.Errno in Err, so errors.Is against unix.ENODATA/unix.ENOENT
// works through the returned error's chain without further translation;
// this just adds path/attr/op context the way the rest of the stack
// expects from a pkg/errors-wrapped error.
func wrap(err error, path, attr, op string) error {
	var sb strings.Builder
	sb.WriteString(op)
	sb.WriteString(" ")
	sb.WriteString(path)
	if attr != "" {
		sb.WriteString(" attr=")
		sb.WriteString(attr)
	}
	return errors.Wrap(err, sb.String())
}

// IsNotSupported reports whether the underlying filesystem has no xattr
// support at all (ENOTSUP/EOPNOTSUPP), a distinct failure mode from
// ENODATA ("supported, but this one is unset").
func IsNotSupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
