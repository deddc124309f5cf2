// Package nlog is a thin wrapper over glog, keeping glog itself out of
// every other package's import list so the logging backend can be
// swapped in one place.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"github.com/golang/glog"
)

func Infof(format string, args ...any)    { glog.Infof(format, args...) }
func Warningf(format string, args ...any) { glog.Warningf(format, args...) }
func Errorf(format string, args ...any)   { glog.Errorf(format, args...) }

func Infoln(args ...any)  { glog.Infoln(args...) }
func Warnln(args ...any)  { glog.Warningln(args...) }
func Errorln(args ...any) { glog.Errorln(args...) }

// Flush flushes all pending log I/O; call on graceful shutdown and
// immediately before a fatal abort.
func Flush() { glog.Flush() }
