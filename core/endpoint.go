// Package core defines the master/slave facade: the uniform interface
// the crawler drives regardless of whether "master" and "slave" are
// reached locally or over a wire transport this repo does not specify.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"context"
	"os"

	"github.com/aistorehq/georepd/cmn"
)

// Attr carries the subset of POSIX metadata Setattr/sendmark need:
// ownership and/or mode. A nil field means "leave unchanged".
type Attr struct {
	UID, GID *int
	Mode     *uint32
}

// Batch is the set of file paths handed to Rsync in one go; the Syncer
// is the only producer, and rsync(batch) -> bool is the one opaque seam
// this repo leaves to the concrete Endpoint.
type Batch []string

// FileInfo carries the subset of lstat(2) the crawler's dispatch switch
// needs to tell symlinks, regular files, and directories apart, plus
// the ownership bits it copies onto the slave side.
type FileInfo struct {
	Mode     os.FileMode
	UID, GID int
}

func (fi FileInfo) IsSymlink() bool { return fi.Mode&os.ModeSymlink != 0 }
func (fi FileInfo) IsRegular() bool { return fi.Mode.IsRegular() }
func (fi FileInfo) IsDir() bool     { return fi.Mode.IsDir() }

// Endpoint is the method set the crawler drives through, shared by the
// master and slave roles. Not every method is meaningful on every side;
// master-only and slave-only methods are documented individually and
// implementations may return an error for the unsupported direction.
type Endpoint interface {
	// Xtime reads the per-uuid xtime attribute from path.
	Xtime(ctx context.Context, path, uuid string) (cmn.Xtime, error)
	// SetXtime writes the per-uuid xtime attribute on path.
	SetXtime(ctx context.Context, path, uuid string, xt cmn.Xtime) error
	// Entries lists path's children, excluding "." and "..".
	Entries(ctx context.Context, path string) ([]string, error)
	// Lstat returns path's own metadata without following a trailing
	// symlink, master-only.
	Lstat(ctx context.Context, path string) (FileInfo, error)
	// Readlink returns the target of the symlink at path, master-only.
	Readlink(ctx context.Context, path string) (string, error)

	// Mkdir creates path on the slave.
	Mkdir(ctx context.Context, path string) error
	// Symlink creates link at linkPath pointing at target, slave-only.
	Symlink(ctx context.Context, target, linkPath string) error
	// Purge removes path (names == nil) or just the listed children of
	// path (names != nil), slave-only.
	Purge(ctx context.Context, path string, names []string) error
	// Setattr applies ownership/mode to path, slave-only.
	Setattr(ctx context.Context, path string, attr Attr) error
	// Rsync transfers the given batch of files to the slave, slave-only.
	Rsync(ctx context.Context, batch Batch) (bool, error)

	// ForeignVolumeInfos probes the upstream volinfo(s) this master
	// replicates from, master-only.
	ForeignVolumeInfos(ctx context.Context) ([]cmn.VolInfo, error)
	// NativeVolumeInfo probes this master's own identity, master-only.
	NativeVolumeInfo(ctx context.Context) (*cmn.VolInfo, error)

	// KeepAlive announces liveness to the slave; vi == nil means "no
	// volinfo established yet", slave-only.
	KeepAlive(ctx context.Context, vi *cmn.VolInfo) error
}

// XattrPrefix is the fixed GlusterFS translator namespace, concatenated
// with a volume uuid to name the per-directory xtime attribute.
const XattrPrefix = "trusted.glusterfs."

// XtimeAttrName returns the xattr name carrying uuid's xtime: the fixed
// prefix, the uuid, and a ".xtime" suffix.
func XtimeAttrName(uuid string) string {
	return XattrPrefix + uuid + ".xtime"
}
