// Package crawler implements the incremental, xtime-gated tree walk:
// Crawl, the per-directory job table, sendmark, wait, indulgently, and
// the keep-alive goroutine.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package crawler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/cos"
	"github.com/aistorehq/georepd/cmn/nlog"
	"github.com/aistorehq/georepd/core"
	"github.com/aistorehq/georepd/metrics"
	"github.com/aistorehq/georepd/syncer"
	"github.com/aistorehq/georepd/volinfo"
)

// Side picks which of the two Endpoints a call targets.
type Side int

const (
	SideMaster Side = iota
	SideSlave
)

// job is one deferred unit of work registered under a directory path;
// it runs at wait time, not at add time — a directory's mark is issued
// in a single step at the end of its subtree traversal, after every
// dependent job has resolved, and this ordering is load-bearing.
type job struct {
	label string
	thunk func() bool
}

// Crawler holds master/slave endpoints, the job table, the volinfo
// state machine's running state, and turn bookkeeping.
type Crawler struct {
	master, slave core.Endpoint
	config        *cmn.Config
	syncer        *syncer.Syncer
	metrics       *metrics.Set

	jobtab map[string][]job // touched only by the crawler goroutine

	volinfoState cmn.VolinfoState
	volinfo      atomic.Pointer[cmn.VolInfo] // written by crawler, read by keep-alive

	totalTurns int
	turns      int
	start      time.Time
	changeSeen bool
	terminate  bool
}

// New constructs a Crawler. If cfg.VolumeID is set, it seeds the native
// slot of VolinfoState the way the peer's `volume_id` preset does.
func New(master, slave core.Endpoint, cfg *cmn.Config, m *metrics.Set) *Crawler {
	c := &Crawler{
		master:     master,
		slave:      slave,
		config:     cfg,
		metrics:    m,
		jobtab:     make(map[string][]job),
		totalTurns: cfg.Turns,
	}
	c.syncer = syncer.New(slave, cfg.SyncJobs, m)
	if cfg.VolumeID != "" {
		c.volinfoState.Native = &cmn.VolInfo{UUID: cfg.VolumeID}
	}
	return c
}

// Syncer exposes the pool backing this crawler, mainly for tests that
// want to assert on batch behavior directly.
func (c *Crawler) Syncer() *syncer.Syncer { return c.syncer }

func (c *Crawler) activeUUID() string {
	vi := c.volinfo.Load()
	if vi == nil {
		return ""
	}
	return vi.UUID
}

func (c *Crawler) volmark() cmn.Xtime {
	vi := c.volinfo.Load()
	if vi == nil {
		return cmn.Xtime{}
	}
	return vi.VolumeMark
}

func (c *Crawler) interMaster() bool { return c.volinfoState.InterMaster() }

// xtimeOpts configures xtimeOpt's create/default-value behavior.
type xtimeOpts struct {
	create        *bool
	defaultXtime  cmn.Xtime
	defaultNoData bool
	useDefaults   bool
}

// xtime is the unopinionated default call: create and the default
// xtime value both follow the side+mode defaults.
func (c *Crawler) xtime(ctx context.Context, path string, side Side) (cmn.Xtime, error) {
	return c.xtimeOpt(ctx, path, side, xtimeOpts{})
}

func (c *Crawler) xtimeOpt(ctx context.Context, path string, side Side, opts xtimeOpts) (cmn.Xtime, error) {
	rsc := c.master
	if side == SideSlave {
		rsc = c.slave
	}

	create := side == SideMaster && !c.interMaster()
	if opts.create != nil {
		create = *opts.create
	}

	defaultNoData := side == SideMaster && c.interMaster()
	defaultXtime := cmn.URXtime
	if opts.useDefaults {
		defaultNoData = opts.defaultNoData
		defaultXtime = opts.defaultXtime
	}

	xt, err := rsc.Xtime(ctx, path, c.activeUUID())
	invalid := false
	if err != nil {
		if !cos.IsErrNoData(err) {
			return cmn.Xtime{}, err
		}
		invalid = true
	} else if xt.Less(c.volmark()) {
		invalid = true
	}

	if invalid && create {
		stamped := cmn.Stamp()
		if err := rsc.SetXtime(ctx, path, c.activeUUID(), stamped); err != nil {
			return cmn.Xtime{}, err
		}
		return stamped, nil
	}
	if invalid {
		if defaultNoData {
			return cmn.Xtime{}, unix.ENODATA
		}
		return defaultXtime, nil
	}
	return xt, nil
}

func (c *Crawler) getSysVolinfo(ctx context.Context) (foreign, native *cmn.VolInfo, err error) {
	fgns, err := c.master.ForeignVolumeInfos(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(fgns) > 1 {
		return nil, nil, cos.NewFatalError("cannot work with multiple foreign masters")
	}
	if len(fgns) == 1 {
		foreign = &fgns[0]
	}
	native, err = c.master.NativeVolumeInfo(ctx)
	if err != nil {
		return nil, nil, err
	}
	return foreign, native, nil
}

// Crawl is the core recursion. The top-level call passes "." (only that
// path runs the per-turn prologue); xtl, when nil, is computed from the
// master side.
func (c *Crawler) Crawl(ctx context.Context, path string, xtl *cmn.Xtime) error {
	if path == "." {
		if err := c.turnStart(ctx); err != nil {
			return err
		}
		if c.volinfo.Load() == nil {
			return nil // waiting for volume info; logged in turnStart
		}
	}

	var localXtl cmn.Xtime
	if xtl == nil {
		xt, err := c.xtime(ctx, path, SideMaster)
		if err != nil {
			c.addFailJob(path, "no-local-node")
			return nil
		}
		localXtl = xt
	} else {
		localXtl = *xtl
	}

	xtr, brandNew, done, err := c.reconcileRemoteXtime(ctx, path, localXtl)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	if path == "." {
		c.changeSeen = true
	}

	if err := c.diffEntries(ctx, path, xtr, brandNew); err != nil {
		return err
	}

	if path == "." {
		c.wait(ctx, ".", localXtl, nil)
	}
	return nil
}

// turnStart is Crawl's path=="." prologue: elapsed-time logging, the
// loose 1s rate limit, volinfo-state refresh, and the waiting-for-master
// early exit.
func (c *Crawler) turnStart(ctx context.Context) error {
	if !c.start.IsZero() {
		nlog.Infof("... done, took %.6f seconds", time.Since(c.start).Seconds())
	}
	time.Sleep(time.Second)
	c.start = time.Now()

	foreign, native, err := c.getSysVolinfo(ctx)
	if err != nil {
		return err
	}
	observed := cmn.VolinfoState{Foreign: foreign, Native: native}
	newState, stateChange, err := volinfo.Step(c.volinfoState, observed)
	if err != nil {
		return err
	}
	c.volinfoState = newState

	active := c.volinfoState.Native
	if c.interMaster() {
		active = c.volinfoState.Foreign
	}
	c.volinfo.Store(active)

	if stateChange == cmn.ForeignChanged || (stateChange == cmn.NativeChanged && !c.interMaster()) {
		nlog.Infof("new master is %s", c.activeUUID())
	}
	if stateChange == cmn.ForeignChanged {
		if err := c.config.SetVolumeID(c.activeUUID()); err != nil {
			nlog.Warningf("persist volume id: %v", err)
		}
	}

	if active == nil {
		if c.interMaster() {
			nlog.Infof("waiting for being synced from %s ...", c.volinfoState.Foreign.UUID)
		} else {
			nlog.Infof("waiting for volume info ...")
		}
		return nil
	}
	if active.Retval != 0 {
		return cos.NewFatalError("master is corrupt")
	}
	mode := "primary"
	if c.interMaster() {
		mode = "intermediate"
	}
	nlog.Infof("%s master with volume id %s ...", mode, c.activeUUID())
	return nil
}

// reconcileRemoteXtime is the remote-xtime branch of Crawl: create the
// slave-side directory if missing, detect corruption, and short-circuit
// a clean subtree. done reports whether Crawl should return immediately.
func (c *Crawler) reconcileRemoteXtime(ctx context.Context, path string, localXtl cmn.Xtime) (xtr cmn.Xtime, brandNew, done bool, err error) {
	xtr0, rerr := c.xtime(ctx, path, SideSlave)
	if rerr != nil {
		if cos.IsErrNoEntry(rerr) {
			brandNew = true
		} else if perr := c.slave.Purge(ctx, path, nil); perr != nil {
			nlog.Warningf("purge %s before mkdir: %v", path, perr)
		}
		if merr := c.slave.Mkdir(ctx, path); merr != nil {
			c.addFailJob(path, "no-remote-node")
			return cmn.Xtime{}, brandNew, true, nil
		}
		return cmn.URXtime, brandNew, false, nil
	}

	xtr = xtr0
	if localXtl.Less(xtr) {
		return cmn.Xtime{}, false, true, cos.NewFatalError("timestamp corruption for %s", path)
	}
	if xtr.Equal(localXtl) {
		if path == "." && c.totalTurns > 0 && c.changeSeen {
			c.turns++
			c.changeSeen = false
			nlog.Infof("finished turn #%d/%d", c.turns, c.totalTurns)
			if c.metrics != nil {
				c.metrics.TurnsCompleted.Inc()
			}
			if c.turns == c.totalTurns {
				nlog.Infof("reached turn limit")
				c.terminate = true
			}
		}
		return cmn.Xtime{}, false, true, nil
	}
	return xtr, false, false, nil
}

// diffEntries purges slave-only children, then dispatches every changed
// master child.
func (c *Crawler) diffEntries(ctx context.Context, path string, xtr cmn.Xtime, brandNew bool) error {
	dem, err := c.master.Entries(ctx, path)
	if err != nil {
		c.addFailJob(path, "local-entries-fail")
		return nil
	}
	des, err := c.slave.Entries(ctx, path)
	if err != nil {
		if perr := c.slave.Purge(ctx, path, nil); perr != nil {
			nlog.Warningf("purge %s: %v", path, perr)
		}
		if merr := c.slave.Mkdir(ctx, path); merr == nil {
			des, err = c.slave.Entries(ctx, path)
		}
		if err != nil {
			c.addFailJob(path, "remote-entries-fail")
			return nil
		}
	}

	if !brandNew {
		if dd := setDiff(des, dem); len(dd) > 0 {
			if perr := c.slave.Purge(ctx, path, dd); perr != nil {
				nlog.Warningf("purge stale children of %s: %v", path, perr)
			}
		}
	}

	for _, e := range dem {
		eFull := filepath.Join(path, e)
		xte, err := c.xtime(ctx, eFull, SideMaster)
		if err != nil {
			nlog.Warningf("irregular xtime for %s: %v", eFull, err)
			continue
		}
		if !xtr.Less(xte) {
			continue
		}
		if err := c.dispatchChild(ctx, path, eFull, xte); err != nil {
			return err
		}
	}
	return nil
}

// dispatchChild handles one changed master child: symlink, regular
// file, or directory. Other file types are ignored.
func (c *Crawler) dispatchChild(ctx context.Context, path, eFull string, xte cmn.Xtime) error {
	fi, err := c.master.Lstat(ctx, eFull)
	if err != nil {
		if cos.IsErrNoEntry(err) {
			nlog.Warningf("salvaged ENOENT for %s", eFull)
			c.addFailJob(path, "by-indulgently")
			return nil
		}
		return err
	}

	switch {
	case fi.IsSymlink():
		skip, err := c.indulgently(path, func() error {
			target, rlErr := c.master.Readlink(ctx, eFull)
			if rlErr != nil {
				return rlErr
			}
			return c.slave.Symlink(ctx, target, eFull)
		})
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		uid, gid := fi.UID, fi.GID
		if c.metrics != nil {
			c.metrics.ChildrenWalked.Inc()
		}
		// A symlink has no dependent jobs of its own, so its mark can
		// be sent the moment the link itself is created, without
		// going through the parent's job table.
		if err := c.sendmark(ctx, eFull, xte, &core.Attr{UID: &uid, GID: &gid}); err != nil {
			nlog.Errorf("sendmark %s: %v", eFull, err)
		}

	case fi.IsRegular():
		if c.metrics != nil {
			c.metrics.ChildrenWalked.Inc()
		}
		pb := c.syncer.Add(eFull)
		c.addJob(path, "reg", func() bool {
			if !pb.Wait() {
				nlog.Errorf("failed to sync %s", eFull)
				return false
			}
			if err := c.sendmark(ctx, eFull, xte, nil); err != nil {
				nlog.Errorf("sendmark %s: %v", eFull, err)
				return false
			}
			nlog.Infof("synced %s", eFull)
			return true
		})

	case fi.IsDir():
		if c.metrics != nil {
			c.metrics.ChildrenWalked.Inc()
		}
		mode := uint32(fi.Mode)
		uid, gid := fi.UID, fi.GID
		adct := &core.Attr{UID: &uid, GID: &gid, Mode: &mode}
		// blame is the child itself: a deep ENOENT discovered during
		// recursion is recorded against eFull, not path, so it surfaces
		// when the "cwait" job just registered on path runs eFull's own
		// deferred wait.
		_, err = c.indulgently(eFull, func() error {
			c.addJob(path, "cwait", func() bool {
				return c.wait(ctx, eFull, xte, adct)
			})
			return c.Crawl(ctx, eFull, &xte)
		})
		if err != nil {
			return err
		}

	default:
		// fifos, sockets, and other special files are ignored.
	}
	return nil
}

// indulgently runs fn; if it fails with ENOENT, the failure is recorded
// as a job against blame and treated as "skip". Any other error
// propagates. Used for the symlink step, blamed on the enclosing
// directory, and for directory recursion, blamed on the child; the
// lstat step in dispatchChild applies the same ENOENT rule inline.
func (c *Crawler) indulgently(blame string, fn func() error) (skip bool, err error) {
	if err := fn(); err != nil {
		if cos.IsErrNoEntry(err) {
			nlog.Warningf("salvaged ENOENT for %s", blame)
			c.addFailJob(blame, "by-indulgently")
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (c *Crawler) addJob(path, label string, thunk func() bool) {
	c.jobtab[path] = append(c.jobtab[path], job{label: label, thunk: thunk})
}

func (c *Crawler) addFailJob(path, label string) {
	nlog.Infof("salvaged: %s", label)
	if c.metrics != nil {
		c.metrics.JobFailures.Inc()
	}
	c.addJob(path, label, func() bool { return false })
}

// wait pops path's job list, runs every thunk in order, and sendmarks on
// success. Absent jobs count as success. Jobs are executed at wait
// time, not at add time.
func (c *Crawler) wait(ctx context.Context, path string, mark cmn.Xtime, adct *core.Attr) bool {
	jobs := c.jobtab[path]
	delete(c.jobtab, path)
	succeed := true
	for _, j := range jobs {
		if !j.thunk() {
			succeed = false
		}
	}
	if succeed {
		if err := c.sendmark(ctx, path, mark, adct); err != nil {
			nlog.Errorf("sendmark %s: %v", path, err)
			succeed = false
		}
	}
	return succeed
}

// sendmark is the sole advance of slave-side xtime: it happens only
// after every job registered under path returned success.
func (c *Crawler) sendmark(ctx context.Context, path string, mark cmn.Xtime, adct *core.Attr) error {
	if adct != nil {
		if err := c.slave.Setattr(ctx, path, *adct); err != nil {
			return err
		}
	}
	return c.slave.SetXtime(ctx, path, c.activeUUID(), mark)
}

// CrawlLoop runs the keep-alive goroutine (if configured) alongside the
// crawl loop, joined through an errgroup so a cancellation or a fatal
// error in either one tears down the other: ctx is canceled as soon as
// either returns, and CrawlLoop itself doesn't return until both have
// exited.
func (c *Crawler) CrawlLoop(ctx context.Context) error {
	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var g errgroup.Group

	if c.config.Timeout > 0 {
		g.Go(func() error {
			c.keepAlive(gctx)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel() // wake keepAlive once the crawl loop itself is done
		for !c.terminate {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := c.Crawl(gctx, ".", nil); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// keepAlive publishes the current volinfo to the slave every
// timeout/2, or every <=10s while no volinfo has been established yet.
// It snapshots c.volinfo locally before use, since the crawler goroutine
// may replace it concurrently.
func (c *Crawler) keepAlive(ctx context.Context) {
	timeout := c.config.Timeout
	for {
		gap := timeout / 2
		var announce *cmn.VolInfo
		if vi := c.volinfo.Load(); vi != nil {
			v := *vi
			v.Timeout = time.Now().Add(timeout).Unix()
			announce = &v
		} else if gap > 10*time.Second {
			gap = 10 * time.Second
		}
		if err := c.slave.KeepAlive(ctx, announce); err != nil {
			nlog.Warningf("keep-alive: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(gap):
		}
	}
}

// setDiff returns the elements of a not present in b.
func setDiff(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, x := range b {
		inB[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := inB[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}
