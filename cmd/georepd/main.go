// Command georepd is the one-way filesystem replication worker and its
// supervisor, selected by the presence of --monitor on the command
// line.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/nlog"
	"github.com/aistorehq/georepd/core/localfs"
	"github.com/aistorehq/georepd/crawler"
	"github.com/aistorehq/georepd/metrics"
	"github.com/aistorehq/georepd/supervisor"
)

func main() {
	if err := run(); err != nil {
		nlog.Errorf("%v", err)
		nlog.Flush()
		os.Exit(1)
	}
	nlog.Flush()
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	monitor := fs.Bool("monitor", false, "run as the supervisor rather than a worker")
	noDaemon := fs.Bool("N", false, "no-op, accepted for compatibility")
	fs.BoolVar(noDaemon, "no-daemon", false, "alias of -N")
	pidPath := fs.String("p", "", "pass-through positional state path argument")
	feedbackFD := fs.Int("feedback-fd", -1, "fd to signal readiness on, worker mode only")
	configPath := fs.String("config", "", "path to the worker's JSON config")
	masterRoot := fs.String("master-root", "", "master endpoint root directory")
	slaveRoot := fs.String("slave-root", "", "slave endpoint root directory")
	volumeID := fs.String("volume-id", "", "master volume uuid; defaults to the config's volume_id, or a freshly generated one")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *monitor {
		return runMonitor(ctx, *configPath, *pidPath)
	}
	return runWorker(ctx, *configPath, *masterRoot, *slaveRoot, *volumeID, *feedbackFD)
}

func runMonitor(ctx context.Context, configPath, pidPath string) error {
	cfg, err := loadOrDefault(configPath)
	if err != nil {
		return err
	}
	self, err := os.Executable()
	if err != nil {
		return err
	}

	workerArgv := []string{"-N", "-p", pidPath}
	if configPath != "" {
		workerArgv = append(workerArgv, "--config", configPath)
	}

	m := metrics.New()
	sup := supervisor.New(self, workerArgv, cfg.StateFile, m)
	return sup.Run(ctx)
}

func runWorker(ctx context.Context, configPath, masterRoot, slaveRoot, volumeID string, feedbackFD int) error {
	cfg, err := loadOrDefault(configPath)
	if err != nil {
		return err
	}
	if masterRoot == "" || slaveRoot == "" {
		return fmt.Errorf("worker mode requires --master-root and --slave-root")
	}

	resolvedID, err := resolveVolumeID(volumeID, cfg.VolumeID)
	if err != nil {
		return err
	}

	slave := localfs.New(slaveRoot, true)
	master := localfs.New(masterRoot, false)
	master.NativeVolInfo = &cmn.VolInfo{UUID: resolvedID}
	slave.WithPeer(master)

	m := metrics.New()
	c := crawler.New(master, slave, cfg, m)

	confirmReady(feedbackFD)

	return c.CrawlLoop(ctx)
}

// resolveVolumeID picks the master's identity for this run: an
// explicit --volume-id flag wins, then the config's persisted
// volume_id, and finally a freshly minted uuid for a master that has
// never been assigned one. Either of the first two must already be a
// well-formed uuid; a malformed flag or config value is rejected
// rather than silently replaced.
func resolveVolumeID(flagVal, cfgVal string) (string, error) {
	for _, candidate := range []string{flagVal, cfgVal} {
		if candidate == "" {
			continue
		}
		if _, err := uuid.Parse(candidate); err != nil {
			return "", errors.Wrapf(err, "volume id %q", candidate)
		}
		return candidate, nil
	}
	return uuid.New().String(), nil
}

// confirmReady writes a single byte to fd, the supervisor's signal that
// this worker has gotten far enough to start crawling. A negative fd
// means this process was started standalone, without a supervisor.
func confirmReady(fd int) {
	if fd < 0 {
		return
	}
	f := os.NewFile(uintptr(fd), "feedback")
	defer f.Close()
	if _, err := f.Write([]byte{'\n'}); err != nil {
		nlog.Warningf("confirm ready on fd %d: %v", fd, err)
	}
}

func loadOrDefault(path string) (*cmn.Config, error) {
	if path == "" {
		return cmn.DefaultConfig(), nil
	}
	return cmn.LoadConfig(path)
}
