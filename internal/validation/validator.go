// Package validation checks parameter sets against the static
// compatibility catalog. Validation is pure computation with no I/O, so it
// runs on every request before anything else does.
package validation

import (
	"fmt"

	"github.com/vietddude/atelier/internal/core/domain"
)

// Severity ranks an issue. Only error-severity issues block generation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single validation finding.
type Issue struct {
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Alternatives lists catalog options the caller could switch to when a
// compatibility check fails.
type Alternatives struct {
	Outfits  []string `json:"outfits,omitempty"`
	Footwear []string `json:"footwear,omitempty"`
	Poses    []string `json:"poses,omitempty"`
}

// Report is the result of validating one parameter set. All applicable
// issues are collected in a single pass; the first error is the primary one
// but nothing short-circuits.
type Report struct {
	IsValid      bool          `json:"is_valid"`
	Errors       []Issue       `json:"errors"`
	Warnings     []Issue       `json:"warnings"`
	Suggestions  []string      `json:"suggestions,omitempty"`
	Alternatives *Alternatives `json:"alternative_options,omitempty"`
}

// PrimaryError returns the first blocking issue, or nil when valid.
func (r *Report) PrimaryError() *Issue {
	if len(r.Errors) == 0 {
		return nil
	}
	return &r.Errors[0]
}

// Validator validates parameter sets against a catalog. The catalog is
// read-only so a single Validator is safe for concurrent use.
type Validator struct {
	catalog *domain.CompatibilityCatalog
}

// New creates a validator over a loaded catalog.
func New(catalog *domain.CompatibilityCatalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate runs every applicable check and returns the full report.
func (v *Validator) Validate(params domain.ParameterSet) Report {
	var r Report

	v.checkRequiredFields(params, &r)
	v.checkFrameID(params, &r)
	v.checkPose(params, &r)
	v.checkOutfit(params, &r)
	v.checkFootwear(params, &r)
	v.checkProp(params, &r)
	v.checkFrame(params, &r)
	v.enhance(params, &r)

	r.IsValid = len(r.Errors) == 0
	return r
}

func (v *Validator) checkRequiredFields(params domain.ParameterSet, r *Report) {
	required := []struct {
		field string
		value string
	}{
		{"pose", params.Pose},
		{"outfit", params.Outfit},
		{"footwear", params.Footwear},
	}
	for _, f := range required {
		if f.value == "" {
			r.Errors = append(r.Errors, Issue{
				Field:    f.field,
				Code:     "required_field_missing",
				Message:  fmt.Sprintf("%s is required", f.field),
				Severity: SeverityError,
			})
		}
	}
}

func (v *Validator) checkFrameID(params domain.ParameterSet, r *Report) {
	if params.RequiresFrameID() && params.FrameID == "" {
		r.Errors = append(r.Errors, Issue{
			Field:    "frame_id",
			Code:     "frame_id_required",
			Message:  fmt.Sprintf("frame type %q requires a frame id", params.FrameType),
			Severity: SeverityError,
		})
	}
}

func (v *Validator) checkPose(params domain.ParameterSet, r *Report) {
	if params.Pose == "" {
		return
	}
	if _, ok := v.catalog.Poses[params.Pose]; !ok {
		r.Errors = append(r.Errors, Issue{
			Field:    "pose",
			Code:     "pose_not_found",
			Message:  fmt.Sprintf("pose %q not found in catalog", params.Pose),
			Severity: SeverityError,
		})
	}
}

func (v *Validator) checkOutfit(params domain.ParameterSet, r *Report) {
	if params.Pose == "" || params.Outfit == "" {
		return
	}
	pose, ok := v.catalog.Poses[params.Pose]
	if !ok {
		return
	}
	if !contains(pose.CompatibleOutfits, params.Outfit) {
		r.Errors = append(r.Errors, Issue{
			Field:    "outfit",
			Code:     "outfit_incompatible_with_pose",
			Message:  fmt.Sprintf("outfit %q is not compatible with pose %q", params.Outfit, params.Pose),
			Severity: SeverityError,
		})
		if r.Alternatives == nil {
			r.Alternatives = &Alternatives{}
		}
		r.Alternatives.Outfits = pose.CompatibleOutfits
	}
}

func (v *Validator) checkFootwear(params domain.ParameterSet, r *Report) {
	if params.Outfit == "" || params.Footwear == "" {
		return
	}
	outfit, ok := v.catalog.Outfits[params.Outfit]
	if !ok {
		return
	}

	if !contains(outfit.CompatibleFootwear, params.Footwear) {
		r.Errors = append(r.Errors, Issue{
			Field:    "footwear",
			Code:     "footwear_incompatible_with_outfit",
			Message:  fmt.Sprintf("footwear %q is not compatible with outfit %q", params.Footwear, params.Outfit),
			Severity: SeverityError,
		})
		if r.Alternatives == nil {
			r.Alternatives = &Alternatives{}
		}
		r.Alternatives.Footwear = outfit.CompatibleFootwear
		return
	}

	// The reverse edge may legitimately be missing; asymmetry is only worth
	// a warning.
	if !v.catalog.FootwearAllowsOutfit(params.Footwear, params.Outfit) {
		r.Warnings = append(r.Warnings, Issue{
			Field:    "footwear",
			Code:     "footwear_outfit_asymmetric",
			Message:  fmt.Sprintf("footwear %q does not list outfit %q as compatible", params.Footwear, params.Outfit),
			Severity: SeverityWarning,
		})
	}
}

func (v *Validator) checkProp(params domain.ParameterSet, r *Report) {
	if params.Prop == "" || params.Pose == "" {
		return
	}
	if _, ok := v.catalog.Poses[params.Pose]; !ok {
		return
	}
	if !v.catalog.PropAllowsPose(params.Prop, params.Pose) {
		r.Errors = append(r.Errors, Issue{
			Field:    "prop",
			Code:     "prop_incompatible_with_pose",
			Message:  fmt.Sprintf("prop %q is not compatible with pose %q", params.Prop, params.Pose),
			Severity: SeverityError,
		})
	}
}

func (v *Validator) checkFrame(params domain.ParameterSet, r *Report) {
	if params.FrameID == "" {
		return
	}
	frame, ok := v.catalog.Frames[params.FrameID]
	if !ok {
		r.Errors = append(r.Errors, Issue{
			Field:    "frame_id",
			Code:     "frame_not_found",
			Message:  fmt.Sprintf("frame %q not found in catalog", params.FrameID),
			Severity: SeverityError,
		})
		return
	}

	for _, required := range frame.RequiredProps {
		if params.Prop != required {
			r.Errors = append(r.Errors, Issue{
				Field:    "prop",
				Code:     "frame_prop_missing",
				Message:  fmt.Sprintf("frame %q requires prop %q", params.FrameID, required),
				Severity: SeverityError,
			})
		}
	}

	if params.FrameType != "" && frame.Sequence != "" && params.FrameType != frame.Sequence {
		r.Warnings = append(r.Warnings, Issue{
			Field:    "frame_type",
			Code:     "frame_type_mismatch",
			Message:  fmt.Sprintf("declared frame type %q does not match frame %q category %q", params.FrameType, params.FrameID, frame.Sequence),
			Severity: SeverityWarning,
		})
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
