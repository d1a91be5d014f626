package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FrameType categorizes how a rendered frame is used downstream.
type FrameType string

const (
	FrameStandard   FrameType = "standard"
	FrameOnboarding FrameType = "onboarding"
	FrameSequence   FrameType = "sequence"
)

// ParameterSet describes a single render request. It is immutable once
// constructed; a request never mutates its parameters mid-flight.
type ParameterSet struct {
	Pose      string    `json:"pose"`
	Outfit    string    `json:"outfit"`
	Footwear  string    `json:"footwear"`
	Prop      string    `json:"prop,omitempty"`
	FrameType FrameType `json:"frame_type,omitempty"`
	FrameID   string    `json:"frame_id,omitempty"`
}

// ParameterSetFromMap builds a ParameterSet from loosely-keyed input,
// e.g. query parameters or a decoded JSON object. Unknown keys are ignored.
func ParameterSetFromMap(m map[string]string) ParameterSet {
	return ParameterSet{
		Pose:      m["pose"],
		Outfit:    m["outfit"],
		Footwear:  m["footwear"],
		Prop:      m["prop"],
		FrameType: FrameType(m["frame_type"]),
		FrameID:   m["frame_id"],
	}
}

// Canonical returns a stable key=value encoding of the set. Fields are
// emitted sorted by key and empty fields are skipped, so two sets carrying
// the same values always canonicalize identically regardless of how they
// were constructed. Values are url-escaped so a value containing "&" or
// "=" cannot forge another field's encoding.
func (p ParameterSet) Canonical() string {
	fields := map[string]string{
		"pose":       p.Pose,
		"outfit":     p.Outfit,
		"footwear":   p.Footwear,
		"prop":       p.Prop,
		"frame_type": string(p.FrameType),
		"frame_id":   p.FrameID,
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, url.QueryEscape(fields[k])))
	}
	return strings.Join(parts, "&")
}

// Hash returns the sha256 hex digest of the canonical encoding. This is
// the cache key for the set.
func (p ParameterSet) Hash() string {
	sum := sha256.Sum256([]byte(p.Canonical()))
	return hex.EncodeToString(sum[:])
}

// RequiresFrameID reports whether the frame type demands an explicit frame id.
func (p ParameterSet) RequiresFrameID() bool {
	return p.FrameType == FrameOnboarding || p.FrameType == FrameSequence
}
