package promptcache

import (
	"fmt"
	"strings"

	"github.com/vietddude/atelier/internal/core/domain"
)

// Builder composes the full render prompt from catalog descriptors. The
// output is deterministic for a given parameter set, which is what makes
// caching by parameter hash sound.
type Builder struct {
	catalog *domain.CompatibilityCatalog
}

// NewBuilder creates a prompt builder over a loaded catalog.
func NewBuilder(catalog *domain.CompatibilityCatalog) *Builder {
	return &Builder{catalog: catalog}
}

// Build produces the full prompt string for a parameter set. Unknown
// parameters fall back to their raw identifier so a prompt is always
// produced for a validated set.
func (b *Builder) Build(params domain.ParameterSet) string {
	var parts []string

	parts = append(parts, b.describe(params.Pose, b.poseDescription(params.Pose)))
	parts = append(parts, "wearing "+b.describe(params.Outfit, b.outfitDescription(params.Outfit)))
	parts = append(parts, "with "+b.describe(params.Footwear, b.footwearDescription(params.Footwear)))

	if params.Prop != "" {
		parts = append(parts, "holding "+b.describe(params.Prop, b.propDescription(params.Prop)))
	}

	if params.FrameID != "" {
		if frame, ok := b.catalog.Frames[params.FrameID]; ok && frame.Description != "" {
			parts = append(parts, frame.Description)
			if frame.Camera != "" {
				parts = append(parts, fmt.Sprintf("%s shot", frame.Camera))
			}
		}
	} else if pose, ok := b.catalog.Poses[params.Pose]; ok && pose.Camera != "" {
		parts = append(parts, fmt.Sprintf("%s shot", pose.Camera))
	}

	return strings.Join(parts, ", ")
}

func (b *Builder) describe(id, description string) string {
	if description != "" {
		return description
	}
	return strings.ReplaceAll(id, "-", " ")
}

func (b *Builder) poseDescription(id string) string {
	if spec, ok := b.catalog.Poses[id]; ok {
		return spec.Description
	}
	return ""
}

func (b *Builder) outfitDescription(id string) string {
	if spec, ok := b.catalog.Outfits[id]; ok {
		return spec.Description
	}
	return ""
}

func (b *Builder) footwearDescription(id string) string {
	if spec, ok := b.catalog.Footwear[id]; ok {
		return spec.Description
	}
	return ""
}

func (b *Builder) propDescription(id string) string {
	if spec, ok := b.catalog.Props[id]; ok {
		return spec.Description
	}
	return ""
}
