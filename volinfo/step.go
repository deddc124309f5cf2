// Package volinfo implements the pure state-machine step that selects,
// each turn, which observed volinfo the daemon treats as authoritative,
// guarding against uuid flips.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package volinfo

import (
	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/cos"
	"github.com/aistorehq/georepd/cmn/nlog"
)

// Step maps (prior, observed) to (new, stateChange). Applied
// componentwise left-to-right (foreign, then native) with a shared relax
// flag: once a slot has accepted the observed value (fresh or a repeat),
// a uuid mismatch in a later slot no longer aborts.
func Step(prior, observed cmn.VolinfoState) (cmn.VolinfoState, cmn.StateChangeSlot, error) {
	relax := false
	stateChange := cmn.NoStateChange

	newForeign, changed, err := selectVI(prior.Foreign, observed.Foreign, &relax)
	if err != nil {
		return cmn.VolinfoState{}, cmn.NoStateChange, err
	}
	if changed {
		stateChange = cmn.ForeignChanged
	}

	newNative, changed, err := selectVI(prior.Native, observed.Native, &relax)
	if err != nil {
		return cmn.VolinfoState{}, cmn.NoStateChange, err
	}
	if changed && stateChange == cmn.NoStateChange {
		stateChange = cmn.NativeChanged
	}

	newState := cmn.VolinfoState{Foreign: newForeign, Native: newNative}
	nlog.Infof("volinfo step: (%s, %s) << (%s, %s) -> (%s, %s)",
		short(prior.Foreign), short(prior.Native),
		short(observed.Foreign), short(observed.Native),
		short(newState.Foreign), short(newState.Native))
	return newState, stateChange, nil
}

// selectVI handles one slot (foreign or native): it accepts vi when it
// is present and either vi0 is absent or uuids match, arming relax on
// every acceptance (not just an absent->present one, so that an
// intermediate master's legitimate native-side uuid flip is tolerated
// once the foreign slot has merely matched this turn); it fails fatally
// on a same-slot uuid mismatch before relax is set; it otherwise falls
// back to the prior value.
func selectVI(vi0, vi *cmn.VolInfo, relax *bool) (result *cmn.VolInfo, stateChanged bool, err error) {
	if vi != nil && (vi0 == nil || vi0.UUID == vi.UUID) {
		if vi0 == nil && !*relax {
			stateChanged = true
		}
		*relax = true
		return vi, stateChanged, nil
	}
	if vi0 != nil && vi != nil && vi0.UUID != vi.UUID && !*relax {
		return nil, false, cos.NewFatalError("aborting on uuid change from %s to %s", vi0.UUID, vi.UUID)
	}
	return vi0, false, nil
}

func short(vi *cmn.VolInfo) string {
	if vi == nil {
		return "<nil>"
	}
	if len(vi.UUID) <= 8 {
		return vi.UUID
	}
	return vi.UUID[:8]
}
