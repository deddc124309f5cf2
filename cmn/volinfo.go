/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

// VolInfo identifies a master volume: its uuid, the epoch floor below
// which xtimes are stale, and its health (Retval != 0 means unusable).
type VolInfo struct {
	UUID       string
	VolumeMark Xtime
	Retval     int
	Timeout    int64 // unix seconds; zero means "not set"
}

func (vi *VolInfo) SameUUID(other *VolInfo) bool {
	if vi == nil || other == nil {
		return false
	}
	return vi.UUID == other.UUID
}

// WithTimeout returns a shallow copy carrying an updated keep-alive
// deadline; the keep-alive goroutine must never mutate the crawler's
// shared VolInfo in place (see VolinfoState).
func (vi VolInfo) WithTimeout(deadline int64) VolInfo {
	vi.Timeout = deadline
	return vi
}

// VolinfoState is the 2-tuple (foreign, native). Exactly one slot is
// "active" per turn: Foreign present means intermediate-master mode,
// else primary-master mode.
type VolinfoState struct {
	Foreign *VolInfo
	Native  *VolInfo
}

// InterMaster reports whether the Foreign slot is occupied.
func (s VolinfoState) InterMaster() bool { return s.Foreign != nil }

// Active returns the slot this turn should use: Foreign in
// intermediate-master mode, else Native.
func (s VolinfoState) Active() *VolInfo {
	if s.InterMaster() {
		return s.Foreign
	}
	return s.Native
}

// StateChangeSlot names which slot of a Step result just transitioned
// absent -> present.
type StateChangeSlot int

const (
	NoStateChange  StateChangeSlot = -1
	ForeignChanged StateChangeSlot = 0
	NativeChanged  StateChangeSlot = 1
)
