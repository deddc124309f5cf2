package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/core"
)

// fakeSlave records every batch handed to Rsync and reports the ok value
// it was constructed with.
type fakeSlave struct {
	mu      sync.Mutex
	batches [][]string
	ok      bool
}

func newFakeSlave(ok bool) *fakeSlave { return &fakeSlave{ok: ok} }

func (f *fakeSlave) Rsync(_ context.Context, batch core.Batch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(batch))
	copy(cp, batch)
	f.batches = append(f.batches, cp)
	return f.ok, nil
}

func (f *fakeSlave) snapshot() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeSlave) Xtime(context.Context, string, string) (cmn.Xtime, error)     { return cmn.Xtime{}, nil }
func (f *fakeSlave) SetXtime(context.Context, string, string, cmn.Xtime) error    { return nil }
func (f *fakeSlave) Entries(context.Context, string) ([]string, error)            { return nil, nil }
func (f *fakeSlave) Lstat(context.Context, string) (core.FileInfo, error)         { return core.FileInfo{}, nil }
func (f *fakeSlave) Readlink(context.Context, string) (string, error)             { return "", nil }
func (f *fakeSlave) Mkdir(context.Context, string) error                         { return nil }
func (f *fakeSlave) Symlink(context.Context, string, string) error               { return nil }
func (f *fakeSlave) Purge(context.Context, string, []string) error               { return nil }
func (f *fakeSlave) Setattr(context.Context, string, core.Attr) error            { return nil }
func (f *fakeSlave) ForeignVolumeInfos(context.Context) ([]cmn.VolInfo, error)    { return nil, nil }
func (f *fakeSlave) NativeVolumeInfo(context.Context) (*cmn.VolInfo, error)       { return nil, nil }
func (f *fakeSlave) KeepAlive(context.Context, *cmn.VolInfo) error                { return nil }

var _ core.Endpoint = (*fakeSlave)(nil)

func TestSyncerBatchesConcurrentAdds(t *testing.T) {
	slave := newFakeSlave(true)
	s := New(slave, 2, nil)
	defer s.Stop()

	const n = 10
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pb := s.Add("file" + string(rune('a'+i)))
			results[i] = pb.Wait()
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("submitter %d got ok=false, want true", i)
		}
	}

	total := 0
	for _, b := range slave.snapshot() {
		total += len(b)
	}
	if total != n {
		t.Errorf("total files rsynced = %d, want %d", total, n)
	}
}

func TestSyncerEveryFileSyncedExactlyOnce(t *testing.T) {
	slave := newFakeSlave(true)
	s := New(slave, 3, nil)
	defer s.Stop()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pb := s.Add("f")
			pb.Wait()
		}(i)
	}
	wg.Wait()

	seen := 0
	for _, b := range slave.snapshot() {
		seen += len(b)
	}
	if seen != n {
		t.Errorf("files observed across all batches = %d, want %d (exactly once each)", seen, n)
	}
}

func TestSyncerPropagatesFailure(t *testing.T) {
	slave := newFakeSlave(false)
	s := New(slave, 1, nil)
	defer s.Stop()

	pb := s.Add("file")
	if pb.Wait() {
		t.Error("Wait() = true, want false when Rsync reports failure")
	}
}

func TestSyncerClampsPoolSize(t *testing.T) {
	slave := newFakeSlave(true)
	s := New(slave, 0, nil)
	defer s.Stop()

	pb := s.Add("file")
	select {
	case <-waitDone(pb):
	case <-time.After(time.Second):
		t.Fatal("a clamped (>=1) pool never processed the submission")
	}
}

func waitDone(pb interface{ Wait() bool }) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		pb.Wait()
		close(ch)
	}()
	return ch
}
