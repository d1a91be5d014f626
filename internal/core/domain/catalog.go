package domain

// CompatibilityCatalog is the static compatibility graph between poses,
// outfits, footwear, props and frames. It is loaded once at startup and is
// read-only afterwards, so concurrent readers need no locking.
type CompatibilityCatalog struct {
	Poses    map[string]PoseSpec     `yaml:"poses"`
	Outfits  map[string]OutfitSpec   `yaml:"outfits"`
	Footwear map[string]FootwearSpec `yaml:"footwear"`
	Props    map[string]PropSpec     `yaml:"props"`
	Frames   map[string]FrameSpec    `yaml:"frames"`
}

// PoseSpec describes a pose and the outfits it can be rendered with.
type PoseSpec struct {
	Description       string   `yaml:"description"`
	Camera            string   `yaml:"camera"` // close-up, mid, wide
	CompatibleOutfits []string `yaml:"compatible_outfits"`
}

// OutfitSpec describes an outfit and the footwear it pairs with.
type OutfitSpec struct {
	Description        string   `yaml:"description"`
	Style              string   `yaml:"style"` // streetwear, formal, athletic, ...
	CompatibleFootwear []string `yaml:"compatible_footwear"`
}

// FootwearSpec describes footwear; CompatibleOutfits is the reverse edge of
// OutfitSpec.CompatibleFootwear and the two are allowed to be asymmetric.
type FootwearSpec struct {
	Description       string   `yaml:"description"`
	Style             string   `yaml:"style"`
	CompatibleOutfits []string `yaml:"compatible_outfits"`
}

// PropSpec describes a hand-held or scene prop.
type PropSpec struct {
	Description     string   `yaml:"description"`
	CompatiblePoses []string `yaml:"compatible_poses"`
}

// FrameSpec describes a frame template.
type FrameSpec struct {
	Description   string    `yaml:"description"`
	Sequence      FrameType `yaml:"sequence"` // standard, onboarding, sequence
	Camera        string    `yaml:"camera"`
	RequiredProps []string  `yaml:"required_props"`
}

// PoseOutfits returns the outfits compatible with a pose, or nil when the
// pose is unknown.
func (c *CompatibilityCatalog) PoseOutfits(pose string) []string {
	if spec, ok := c.Poses[pose]; ok {
		return spec.CompatibleOutfits
	}
	return nil
}

// OutfitAllowsFootwear reports whether the outfit lists the footwear.
func (c *CompatibilityCatalog) OutfitAllowsFootwear(outfit, footwear string) bool {
	spec, ok := c.Outfits[outfit]
	if !ok {
		return false
	}
	return contains(spec.CompatibleFootwear, footwear)
}

// FootwearAllowsOutfit reports the reverse edge.
func (c *CompatibilityCatalog) FootwearAllowsOutfit(footwear, outfit string) bool {
	spec, ok := c.Footwear[footwear]
	if !ok {
		return false
	}
	return contains(spec.CompatibleOutfits, outfit)
}

// PropAllowsPose reports whether the prop can appear with the pose.
func (c *CompatibilityCatalog) PropAllowsPose(prop, pose string) bool {
	spec, ok := c.Props[prop]
	if !ok {
		return false
	}
	return contains(spec.CompatiblePoses, pose)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
