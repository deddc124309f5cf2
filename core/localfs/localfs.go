// Package localfs implements core.Endpoint over a local directory tree:
// the default deployment when master and slave are both local mounts,
// and the substrate end-to-end tests exercise a Crawler against without
// any real wire transport.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/nlog"
	"github.com/aistorehq/georepd/core"
	"github.com/aistorehq/georepd/xattr"
)

// RsyncFunc performs the actual bulk transfer of a batch of paths from
// root to a corresponding slave location; this is the one pluggable
// seam for swapping in a real transfer mechanism.
type RsyncFunc func(ctx context.Context, batch core.Batch) bool

// Endpoint roots every relative path the crawler uses ("." and its
// descendants) under Root.
type Endpoint struct {
	Root    string
	IsSlave bool
	Rsyncer RsyncFunc // only consulted when IsSlave; nil means copyRsync

	// NativeVolInfo and ForeignVolInfo back ForeignVolumeInfos and
	// NativeVolumeInfo for a master endpoint; set by the test/CLI
	// harness that constructs this Endpoint, since probing an actual
	// volume identity is outside this repo's scope.
	NativeVolInfo  *cmn.VolInfo
	ForeignVolInfo []cmn.VolInfo

	// peer is the master endpoint this slave endpoint copies from,
	// wired by WithPeer; only consulted by the default copyRsync.
	peer *Endpoint
}

func New(root string, isSlave bool) *Endpoint {
	return &Endpoint{Root: root, IsSlave: isSlave}
}

func (e *Endpoint) abs(path string) string {
	return filepath.Join(e.Root, filepath.Clean(path))
}

func (e *Endpoint) Xtime(_ context.Context, path, uuid string) (cmn.Xtime, error) {
	full := e.abs(path)
	raw, err := xattr.Lgetxattr(full, core.XtimeAttrName(uuid))
	if err != nil {
		// propagated as-is: pkg/xattr's lgetxattr distinguishes ENOENT
		// (path missing) from ENODATA (attribute unset) at the syscall
		// level already, so callers discriminate via cos.IsErrNoData /
		// cos.IsErrNoEntry without any help from this endpoint.
		return cmn.Xtime{}, err
	}
	return cmn.UnmarshalAttr(raw)
}

func (e *Endpoint) SetXtime(_ context.Context, path, uuid string, xt cmn.Xtime) error {
	return xattr.Lsetxattr(e.abs(path), core.XtimeAttrName(uuid), xt.MarshalAttr())
}

func (e *Endpoint) Entries(_ context.Context, path string) ([]string, error) {
	names, err := godirwalk.ReadDirnames(e.abs(path), nil)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (e *Endpoint) Lstat(_ context.Context, path string) (core.FileInfo, error) {
	fi, err := os.Lstat(e.abs(path))
	if err != nil {
		return core.FileInfo{}, err
	}
	var uid, gid int
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		uid, gid = int(st.Uid), int(st.Gid)
	}
	return core.FileInfo{Mode: fi.Mode(), UID: uid, GID: gid}, nil
}

func (e *Endpoint) Readlink(_ context.Context, path string) (string, error) {
	return os.Readlink(e.abs(path))
}

func (e *Endpoint) Mkdir(_ context.Context, path string) error {
	return os.Mkdir(e.abs(path), 0o755)
}

func (e *Endpoint) Symlink(_ context.Context, target, linkPath string) error {
	return os.Symlink(target, e.abs(linkPath))
}

func (e *Endpoint) Purge(_ context.Context, path string, names []string) error {
	full := e.abs(path)
	if names == nil {
		return os.RemoveAll(full)
	}
	for _, n := range names {
		if err := os.RemoveAll(filepath.Join(full, n)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) Setattr(_ context.Context, path string, attr core.Attr) error {
	full := e.abs(path)
	if attr.Mode != nil {
		if err := os.Chmod(full, os.FileMode(*attr.Mode)); err != nil {
			return err
		}
	}
	if attr.UID != nil || attr.GID != nil {
		uid, gid := -1, -1
		if attr.UID != nil {
			uid = *attr.UID
		}
		if attr.GID != nil {
			gid = *attr.GID
		}
		if err := os.Lchown(full, uid, gid); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) Rsync(ctx context.Context, batch core.Batch) (bool, error) {
	if !e.IsSlave {
		return false, errors.New("rsync: not a slave endpoint")
	}
	rsyncer := e.Rsyncer
	if rsyncer == nil {
		rsyncer = e.copyRsync
	}
	return rsyncer(ctx, batch), nil
}

// copyRsync is the default RsyncFunc: a plain per-file copy of each
// batch path from the master root to this (slave) root, creating missing
// parent directories; directories are not copied recursively. It serves
// the common case where the
// two endpoints share an implicit pairing (the test harness and a
// same-host deployment). Anything fancier (delta transfer, compression)
// is left to a caller-supplied Rsyncer.
func (e *Endpoint) copyRsync(_ context.Context, batch core.Batch) bool {
	ok := true
	for _, relPath := range batch {
		if err := e.copyOne(relPath); err != nil {
			nlog.Errorf("rsync: copy %s: %v", relPath, err)
			ok = false
		}
	}
	return ok
}

// copyOne copies a single relative path from e.peer's root to e's root;
// e.peer must be set via WithPeer since Endpoint by itself only knows
// its own Root.
func (e *Endpoint) copyOne(relPath string) error {
	if e.peer == nil {
		return errors.New("rsync: no source endpoint configured, see WithPeer")
	}
	src := e.peer.abs(relPath)
	dst := e.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}

// WithPeer wires master as the source of the default copyRsync; it is
// not part of the core.Endpoint interface, only a convenience for
// callers that pair up two localfs.Endpoints directly.
func (e *Endpoint) WithPeer(master *Endpoint) *Endpoint {
	e.peer = master
	return e
}

func (e *Endpoint) ForeignVolumeInfos(_ context.Context) ([]cmn.VolInfo, error) {
	return e.ForeignVolInfo, nil
}

func (e *Endpoint) NativeVolumeInfo(_ context.Context) (*cmn.VolInfo, error) {
	return e.NativeVolInfo, nil
}

func (e *Endpoint) KeepAlive(_ context.Context, vi *cmn.VolInfo) error {
	if vi == nil {
		nlog.Infof("keep-alive: no volinfo yet")
		return nil
	}
	full := filepath.Join(e.Root, ".glusterfs-keepalive")
	return os.WriteFile(full, []byte(vi.UUID), 0o644)
}

// interface guard
var _ core.Endpoint = (*Endpoint)(nil)
