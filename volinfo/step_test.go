package volinfo

import (
	"testing"

	"github.com/aistorehq/georepd/cmn"
	"github.com/aistorehq/georepd/cmn/cos"
)

func vi(uuid string) *cmn.VolInfo { return &cmn.VolInfo{UUID: uuid} }

func TestStepFirstAcceptance(t *testing.T) {
	prior := cmn.VolinfoState{}
	observed := cmn.VolinfoState{Native: vi("a")}
	got, change, err := Step(prior, observed)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got.Native == nil || got.Native.UUID != "a" {
		t.Fatalf("got.Native = %v, want uuid a", got.Native)
	}
	if change != cmn.NativeChanged {
		t.Errorf("change = %v, want NativeChanged", change)
	}
}

func TestStepIdempotentOnRepeat(t *testing.T) {
	prior := cmn.VolinfoState{Native: vi("a")}
	observed := cmn.VolinfoState{Native: vi("a")}
	got, change, err := Step(prior, observed)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got.Native.UUID != "a" {
		t.Errorf("got.Native.UUID = %s, want a", got.Native.UUID)
	}
	if change != cmn.NoStateChange {
		t.Errorf("change = %v, want NoStateChange on a repeat observation", change)
	}
}

func TestStepUUIDFlipIsFatal(t *testing.T) {
	prior := cmn.VolinfoState{Native: vi("a")}
	observed := cmn.VolinfoState{Native: vi("b")}
	_, _, err := Step(prior, observed)
	if err == nil || !cos.IsFatal(err) {
		t.Fatalf("Step with a uuid flip = %v, want a FatalError", err)
	}
}

func TestStepRelaxToleratesOneSlotFlipAfterOtherAccepted(t *testing.T) {
	// native already has an identity from an earlier turn; foreign is
	// absent and about to be accepted fresh in this turn. Once foreign's
	// acceptance sets relax, a same-turn native uuid mismatch is
	// tolerated rather than aborting the whole turn — but, per the
	// state machine's fallback rule, the mismatched value is NOT
	// adopted; the prior native identity is retained.
	prior := cmn.VolinfoState{Native: vi("n1")}
	observed := cmn.VolinfoState{Foreign: vi("f1"), Native: vi("n2")}

	got, change, err := Step(prior, observed)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got.Foreign == nil || got.Foreign.UUID != "f1" {
		t.Errorf("got.Foreign = %v, want uuid f1", got.Foreign)
	}
	if got.Native == nil || got.Native.UUID != "n1" {
		t.Errorf("got.Native = %v, want uuid n1 retained despite the mismatch", got.Native)
	}
	if change != cmn.ForeignChanged {
		t.Errorf("change = %v, want ForeignChanged", change)
	}
}

func TestStepRelaxedNativeFlip(t *testing.T) {
	// Foreign matches (not absent->present, just a repeat acceptance) and
	// still arms relax; the native uuid flip that follows in the same
	// turn is tolerated rather than fatal, and the mismatched value is
	// not adopted: the prior native identity is retained.
	prior := cmn.VolinfoState{Foreign: vi("f1"), Native: vi("n1")}
	observed := cmn.VolinfoState{Foreign: vi("f1"), Native: vi("n2")}

	got, change, err := Step(prior, observed)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got.Foreign == nil || got.Foreign.UUID != "f1" {
		t.Errorf("got.Foreign = %v, want uuid f1", got.Foreign)
	}
	if got.Native == nil || got.Native.UUID != "n1" {
		t.Errorf("got.Native = %v, want uuid n1 retained despite the mismatch", got.Native)
	}
	if change != cmn.NoStateChange {
		t.Errorf("change = %v, want NoStateChange", change)
	}
}

func TestStepMissingObservedFallsBackToPrior(t *testing.T) {
	prior := cmn.VolinfoState{Native: vi("a")}
	observed := cmn.VolinfoState{}
	got, change, err := Step(prior, observed)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got.Native == nil || got.Native.UUID != "a" {
		t.Errorf("got.Native = %v, want uuid a retained", got.Native)
	}
	if change != cmn.NoStateChange {
		t.Errorf("change = %v, want NoStateChange", change)
	}
}
