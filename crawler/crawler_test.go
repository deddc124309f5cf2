package crawler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/cos"
	"github.com/aistorehq/georepd/core/localfs"
	"github.com/aistorehq/georepd/crawler"
)

func newPair(t *testing.T, uuid string) (master, slave *localfs.Endpoint) {
	t.Helper()
	masterRoot := t.TempDir()
	slaveRoot := t.TempDir()
	master = localfs.New(masterRoot, false)
	master.NativeVolInfo = &cmn.VolInfo{UUID: uuid}
	slave = localfs.New(slaveRoot, true)
	slave.WithPeer(master)
	return master, slave
}

func runToConvergence(t *testing.T, master, slave *localfs.Endpoint) error {
	t.Helper()
	cfg := cmn.DefaultConfig()
	cfg.Turns = 1
	cfg.SyncJobs = 2
	c := crawler.New(master, slave, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.CrawlLoop(ctx)
}

func TestCrawlEmptyMasterConverges(t *testing.T) {
	master, slave := newPair(t, "uuid-empty")
	if err := runToConvergence(t, master, slave); err != nil {
		t.Fatalf("CrawlLoop: %v", err)
	}
}

func TestCrawlReplicatesSingleFile(t *testing.T) {
	master, slave := newPair(t, "uuid-file")

	content := []byte("hello from master\n")
	if err := os.WriteFile(filepath.Join(master.Root, "greeting.txt"), content, 0o644); err != nil {
		t.Fatalf("seed master file: %v", err)
	}

	if err := runToConvergence(t, master, slave); err != nil {
		t.Fatalf("CrawlLoop: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(slave.Root, "greeting.txt"))
	if err != nil {
		t.Fatalf("read replicated file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("replicated content = %q, want %q", got, content)
	}
}

func TestCrawlReplicatesNestedDirectoryAndSymlink(t *testing.T) {
	master, slave := newPair(t, "uuid-nested")

	if err := os.Mkdir(filepath.Join(master.Root, "subdir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(master.Root, "subdir", "f.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatalf("seed nested file: %v", err)
	}
	if err := os.Symlink("f.txt", filepath.Join(master.Root, "subdir", "link")); err != nil {
		t.Fatalf("seed symlink: %v", err)
	}

	if err := runToConvergence(t, master, slave); err != nil {
		t.Fatalf("CrawlLoop: %v", err)
	}

	if _, err := os.Stat(filepath.Join(slave.Root, "subdir", "f.txt")); err != nil {
		t.Errorf("nested file not replicated: %v", err)
	}
	target, err := os.Readlink(filepath.Join(slave.Root, "subdir", "link"))
	if err != nil {
		t.Fatalf("replicated symlink: %v", err)
	}
	if target != "f.txt" {
		t.Errorf("symlink target = %q, want f.txt", target)
	}
}

func TestCrawlFatalOnTimestampCorruption(t *testing.T) {
	master, slave := newPair(t, "uuid-corrupt")

	// Slave root already exists with an xtime strictly ahead of
	// anything master can produce, simulating corruption the worker
	// must refuse to paper over.
	if err := os.MkdirAll(slave.Root, 0o755); err != nil {
		t.Fatalf("mkdir slave root: %v", err)
	}
	future := cmn.Xtime{Sec: 9999999999, NSec: 0}
	if err := slave.SetXtime(context.Background(), ".", "uuid-corrupt", future); err != nil {
		t.Fatalf("seed corrupt slave xtime: %v", err)
	}

	err := runToConvergence(t, master, slave)
	if err == nil || !cos.IsFatal(err) {
		t.Fatalf("CrawlLoop = %v, want a FatalError", err)
	}
}

func TestCrawlFatalOnMultipleForeignVolinfos(t *testing.T) {
	master, slave := newPair(t, "uuid-multi")
	master.ForeignVolInfo = []cmn.VolInfo{{UUID: "a"}, {UUID: "b"}}

	err := runToConvergence(t, master, slave)
	if err == nil || !cos.IsFatal(err) {
		t.Fatalf("CrawlLoop = %v, want a FatalError for multiple foreign volinfos", err)
	}
}
