package domain

import "testing"

func TestParameterSetHash_PermutationInvariant(t *testing.T) {
	a := ParameterSetFromMap(map[string]string{
		"pose":     "arms-crossed",
		"outfit":   "hoodie-sweatpants",
		"footwear": "jordan-1",
		"prop":     "basketball",
	})
	b := ParameterSetFromMap(map[string]string{
		"prop":     "basketball",
		"footwear": "jordan-1",
		"pose":     "arms-crossed",
		"outfit":   "hoodie-sweatpants",
	})

	if a.Hash() != b.Hash() {
		t.Errorf("hashes differ for permuted input: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestParameterSetHash_ValueSensitive(t *testing.T) {
	a := ParameterSet{Pose: "arms-crossed", Outfit: "hoodie-sweatpants", Footwear: "jordan-1"}
	b := ParameterSet{Pose: "arms-crossed", Outfit: "hoodie-sweatpants", Footwear: "af1-white"}

	if a.Hash() == b.Hash() {
		t.Error("different footwear produced identical hashes")
	}
}

func TestParameterSetCanonical_SkipsEmptyFields(t *testing.T) {
	p := ParameterSet{Pose: "arms-crossed", Outfit: "hoodie-sweatpants", Footwear: "jordan-1"}

	want := "footwear=jordan-1&outfit=hoodie-sweatpants&pose=arms-crossed"
	if got := p.Canonical(); got != want {
		t.Errorf("Canonical() = %q, want %q", got, want)
	}
}

func TestParameterSetHash_SeparatorInValueDoesNotCollide(t *testing.T) {
	// A value embedding "&" or "=" must not forge another field's encoding.
	a := ParameterSet{Outfit: "a", Pose: "b"}
	b := ParameterSet{Outfit: "a&pose=b"}

	if a.Canonical() == b.Canonical() {
		t.Errorf("crafted value collided with a two-field encoding: %q", a.Canonical())
	}
	if a.Hash() == b.Hash() {
		t.Error("crafted value produced a cache hash collision")
	}
}

func TestRequiresFrameID(t *testing.T) {
	tests := []struct {
		frameType FrameType
		want      bool
	}{
		{FrameStandard, false},
		{FrameOnboarding, true},
		{FrameSequence, true},
		{"", false},
	}

	for _, tt := range tests {
		p := ParameterSet{FrameType: tt.frameType}
		if got := p.RequiresFrameID(); got != tt.want {
			t.Errorf("RequiresFrameID(%q) = %v, want %v", tt.frameType, got, tt.want)
		}
	}
}
