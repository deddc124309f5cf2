// Package cmn provides shared types and configuration for georepd: xtime,
// volume-info records, and the daemon's configuration surface.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"encoding/binary"
	"fmt"
	"time"
)

// NSecUnitsPerSec is documented, not enforced: the wire format's "nsec"
// slot has historically carried microseconds (see the peer implementation
// this attribute layout mirrors), and Stamp preserves that rather than
// guessing at nanosecond precision the peer does not produce.
const NSecUnitsPerSec = 1000000

// Xtime is a per-volume, per-path timestamp stamped as an extended
// attribute on every tracked directory. Ordering is lexicographic on
// (Sec, NSec).
type Xtime struct {
	Sec  int64
	NSec int64
}

// URXtime is "unrepresentable/earliest": it sorts strictly below any real
// Xtime and stands in for a slave-side directory that was just created
// and has never been marked.
var URXtime = Xtime{Sec: -1, NSec: 0}

func (xt Xtime) String() string {
	return fmt.Sprintf("%d.%09d", xt.Sec, xt.NSec)
}

// Less reports whether xt sorts strictly before other.
func (xt Xtime) Less(other Xtime) bool {
	if xt.Sec != other.Sec {
		return xt.Sec < other.Sec
	}
	return xt.NSec < other.NSec
}

// Before is need_sync's Go name: is xt stale relative to other (the local
// xtime)? It is the same comparison as Less; the crawler's remote-xtime
// check and per-child dispatch call Less directly.
func (xt Xtime) Before(other Xtime) bool { return xt.Less(other) }

func (xt Xtime) Equal(other Xtime) bool { return xt == other }

// Stamp returns the current wall-clock Xtime, preserving the peer's
// microsecond-in-the-nsec-slot convention (see NSecUnitsPerSec).
func Stamp() Xtime {
	now := time.Now()
	return Xtime{
		Sec:  now.Unix(),
		NSec: int64(now.Nanosecond()) / 1000,
	}
}

// xtimeAttrLen is the on-disk attribute payload size: two big-endian
// uint64s, matching the peer's struct.pack('!LL', sec, nsec) layout
// widened to 64 bits.
const xtimeAttrLen = 16

// MarshalAttr encodes xt as the 16-byte xattr value written to disk.
func (xt Xtime) MarshalAttr() []byte {
	buf := make([]byte, xtimeAttrLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(xt.Sec))
	binary.BigEndian.PutUint64(buf[8:16], uint64(xt.NSec))
	return buf
}

// UnmarshalAttr decodes the 16-byte xattr value written by MarshalAttr.
func UnmarshalAttr(buf []byte) (Xtime, error) {
	if len(buf) != xtimeAttrLen {
		return Xtime{}, fmt.Errorf("xtime: bad attribute length %d, want %d", len(buf), xtimeAttrLen)
	}
	return Xtime{
		Sec:  int64(binary.BigEndian.Uint64(buf[0:8])),
		NSec: int64(binary.BigEndian.Uint64(buf[8:16])),
	}, nil
}
