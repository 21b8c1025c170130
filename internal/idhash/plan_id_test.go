package idhash

import (
	"testing"
)

func TestComputePlanID(t *testing.T) {
	tests := []struct {
		name             string
		victimSignature  string
		instructionIndex int
		frontIn          uint64
		blockhash        string
		wantLen          int // hash length should be 64
	}{
		{
			name:             "first swap",
			victimSignature:  "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb",
			instructionIndex: 0,
			frontIn:          3664,
			blockhash:        "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			wantLen:          64,
		},
		{
			name:             "inner swap",
			victimSignature:  "3Lq9m1p1",
			instructionIndex: 2,
			frontIn:          1,
			blockhash:        "",
			wantLen:          64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePlanID(tt.victimSignature, tt.instructionIndex, tt.frontIn, tt.blockhash)

			if len(got) != tt.wantLen {
				t.Errorf("ComputePlanID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputePlanID(tt.victimSignature, tt.instructionIndex, tt.frontIn, tt.blockhash)
			if got != got2 {
				t.Errorf("ComputePlanID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputePlanID_DifferentInputs(t *testing.T) {
	base := ComputePlanID("sig", 0, 100, "hash")

	variants := map[string]string{
		"signature":   ComputePlanID("sig2", 0, 100, "hash"),
		"instruction": ComputePlanID("sig", 1, 100, "hash"),
		"front size":  ComputePlanID("sig", 0, 101, "hash"),
		"blockhash":   ComputePlanID("sig", 0, 100, "hash2"),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the plan ID", name)
		}
	}
}

func TestComputeEvaluationID(t *testing.T) {
	a := ComputeEvaluationID("sig", 0, 100)
	if len(a) != 64 {
		t.Fatalf("length = %d, want 64", len(a))
	}
	if a != ComputeEvaluationID("sig", 0, 100) {
		t.Error("ComputeEvaluationID() not deterministic")
	}
	if a == ComputeEvaluationID("sig", 1, 100) {
		t.Error("instruction index must change the ID")
	}
}
