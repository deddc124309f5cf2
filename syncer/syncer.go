// Package syncer implements the bounded sync pool: a fixed number of
// worker goroutines that repeatedly swap in the current PostBox, close
// it, run one batched transfer, and deliver the result to every
// submitter.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aistorehq/georepd/cmn/nlog"
	"github.com/aistorehq/georepd/core"
	"github.com/aistorehq/georepd/metrics"
	"github.com/aistorehq/georepd/postbox"
)

// idlePoll is the fixed cadence a syncjob sleeps for when there is
// nothing to claim.
const idlePoll = 500 * time.Millisecond

// Syncer is the sync pool: a lock, a current PostBox, and sync_jobs
// worker goroutines.
type Syncer struct {
	slave   core.Endpoint
	metrics *metrics.Set

	mu      sync.Mutex
	current *postbox.PostBox

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a Syncer with the given slave endpoint and pool size,
// clamped to >= 1, and starts its worker goroutines immediately. m may
// be nil, in which case batch metrics are simply not recorded.
func New(slave core.Endpoint, syncJobs int, m *metrics.Set) *Syncer {
	if syncJobs < 1 {
		syncJobs = 1
	}
	s := &Syncer{
		slave:   slave,
		metrics: m,
		current: postbox.New(),
		stop:    make(chan struct{}),
	}
	for i := 0; i < syncJobs; i++ {
		s.wg.Add(1)
		go s.syncjob()
	}
	return s
}

// Add appends path to the current PostBox, retrying transparently if a
// worker just swapped it out from under the caller: a closed PostBox on
// append is not an error for the caller.
func (s *Syncer) Add(path string) *postbox.PostBox {
	for {
		s.mu.Lock()
		pb := s.current
		s.mu.Unlock()
		if err := pb.Append(path); err == nil {
			return pb
		}
	}
}

// claim atomically swaps out the current PostBox for a fresh empty one
// and returns the old one, but only if it is non-empty: an empty box is
// left in place so a still-idle Syncer doesn't busy-churn PostBox
// allocations.
func (s *Syncer) claim() *postbox.PostBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Empty() {
		return nil
	}
	pb := s.current
	s.current = postbox.New()
	return pb
}

func (s *Syncer) syncjob() {
	defer s.wg.Done()
	bo := backoff.NewConstantBackOff(idlePoll)
	for {
		var pb *postbox.PostBox
		for pb == nil {
			select {
			case <-s.stop:
				return
			default:
			}
			pb = s.claim()
			if pb == nil {
				time.Sleep(bo.NextBackOff())
			}
		}
		pb.Close()
		entries := pb.Entries()
		ok, err := s.slave.Rsync(context.Background(), entries)
		if err != nil {
			nlog.Errorf("syncer: rsync batch of %d failed: %v", len(entries), err)
			ok = false
		} else {
			nlog.Infof("syncer: rsync batch of %d -> %v", len(entries), ok)
		}
		if s.metrics != nil {
			s.metrics.RsyncBatches.Inc()
			s.metrics.RsyncBatchSize.Observe(float64(len(entries)))
			if !ok {
				s.metrics.RsyncFailures.Inc()
			}
		}
		pb.Wakeup(ok)
	}
}

// Stop signals all workers to exit after their current claim attempt
// and waits for them to return, so a batch already claimed finishes
// first; entries in a box no worker has claimed are not drained. Process exit
// reclaims the goroutines either way; Stop exists only so tests can
// shut a Syncer down deterministically between cases.
func (s *Syncer) Stop() {
	close(s.stop)
	s.wg.Wait()
}
