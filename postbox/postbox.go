// Package postbox implements the append-then-close-then-broadcast
// rendezvous buffer the Syncer uses to batch file transfers: many
// producers append paths, one worker closes the box and executes the
// batch, then wakes every producer with the shared result.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package postbox

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/aistorehq/georepd/cmn/debug"
)

// ErrClosed is returned by Append once the box has been closed; it is
// not an error for Syncer.Add, which retries against a fresh PostBox.
var ErrClosed = errors.New("postbox: closed")

// PostBox is single-shot: one Close followed by one Wakeup, with many
// concurrent Append and Wait callers in between.
type PostBox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []string
	open    bool
	done    bool
	result  bool
}

func New() *PostBox {
	pb := &PostBox{open: true}
	pb.cond = sync.NewCond(&pb.mu)
	return pb
}

// Append adds e to the box if it is still open.
func (pb *PostBox) Append(e string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.open {
		return ErrClosed
	}
	pb.entries = append(pb.entries, e)
	return nil
}

// Close flips open -> false; subsequent Append calls fail with
// ErrClosed.
func (pb *PostBox) Close() {
	pb.mu.Lock()
	pb.open = false
	pb.mu.Unlock()
}

// Wakeup stores result and wakes every Wait caller. Must be called
// exactly once, after Close.
func (pb *PostBox) Wakeup(result bool) {
	pb.mu.Lock()
	debug.Assert(!pb.open, "postbox: Wakeup called before Close")
	debug.Assert(!pb.done, "postbox: Wakeup called twice")
	pb.result = result
	pb.done = true
	pb.mu.Unlock()
	pb.cond.Broadcast()
}

// Wait blocks until Wakeup has been called, then returns its result.
func (pb *PostBox) Wait() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	for !pb.done {
		pb.cond.Wait()
	}
	return pb.result
}

// Entries returns a snapshot of the appended paths; only meaningful
// after Close, when no further Append can race it.
func (pb *PostBox) Entries() []string {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	out := make([]string, len(pb.entries))
	copy(out, pb.entries)
	return out
}

// Empty reports whether nothing has been appended to the box yet; the
// Syncer uses this to decide whether a box is worth claiming.
func (pb *PostBox) Empty() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.entries) == 0
}
