package validation

import (
	"fmt"

	"github.com/vietddude/atelier/internal/core/domain"
)

// enhance runs the brand-consistency and visual-optimization heuristics.
// These only ever produce warnings and suggestions; they inform the caller
// but never block generation.
func (v *Validator) enhance(params domain.ParameterSet, r *Report) {
	v.checkStyleClash(params, r)
	v.checkCameraMismatch(params, r)
}

func (v *Validator) checkStyleClash(params domain.ParameterSet, r *Report) {
	outfit, okO := v.catalog.Outfits[params.Outfit]
	footwear, okF := v.catalog.Footwear[params.Footwear]
	if !okO || !okF || outfit.Style == "" || footwear.Style == "" {
		return
	}

	if outfit.Style != footwear.Style {
		r.Warnings = append(r.Warnings, Issue{
			Field:    "footwear",
			Code:     "style_clash",
			Message:  fmt.Sprintf("outfit style %q clashes with footwear style %q", outfit.Style, footwear.Style),
			Severity: SeverityWarning,
		})
		r.Suggestions = append(r.Suggestions,
			fmt.Sprintf("consider %s footwear to match the %s outfit", outfit.Style, outfit.Style))
	}
}

func (v *Validator) checkCameraMismatch(params domain.ParameterSet, r *Report) {
	if params.FrameID == "" {
		return
	}
	pose, okP := v.catalog.Poses[params.Pose]
	frame, okF := v.catalog.Frames[params.FrameID]
	if !okP || !okF || pose.Camera == "" || frame.Camera == "" {
		return
	}

	if pose.Camera != frame.Camera {
		r.Warnings = append(r.Warnings, Issue{
			Field:    "pose",
			Code:     "camera_pose_mismatch",
			Message:  fmt.Sprintf("pose %q reads best as a %s shot but frame %q is framed %s", params.Pose, pose.Camera, params.FrameID, frame.Camera),
			Severity: SeverityInfo,
		})
	}
}
