package palette

import "time"

// Texture is one source image, keyed by its canonical source path.
// It owns at most one Placement per group it is assigned to.
type Texture struct {
	Name string

	DimensionsKnown bool
	Width, Height   int
	ChannelCount    int
	SourceFormat    PixelFormat
	ModTime         time.Time

	// Properties merged in from the rule file (C1).
	MinFilter          FilterMode
	MagFilter          FilterMode
	ColorFileType      string
	AlphaFileType      string
	Margin             int
	RepeatThresholdPct float64
	OmitFlag           bool

	// RequestedGroups is the set of group names the rule file asked
	// this texture to belong to (the union of all matching lines'
	// group= attributes).
	RequestedGroups map[string]bool

	// AssignedGroups is the subset of RequestedGroups (plus, once
	// resolved, exactly one winner - see driver.go) this texture
	// currently has a live Placement in.
	AssignedGroups map[string]bool

	// Placements is keyed by group name; invariant: every key here
	// is also a key of AssignedGroups.
	Placements map[string]*Placement

	References []*SceneRef
}

// NewTexture creates an empty Texture record for the given canonical
// source path.
func NewTexture(name string) *Texture {
	return &Texture{
		Name:               name,
		RepeatThresholdPct: 100,
		RequestedGroups:    make(map[string]bool),
		AssignedGroups:     make(map[string]bool),
		Placements:         make(map[string]*Placement),
	}
}

// Properties builds the TextureProperties tuple used to key Page
// lookup for this texture.
func (t *Texture) Properties() TextureProperties {
	return TextureProperties{
		ChannelCount:  t.ChannelCount,
		PixelFormat:   t.SourceFormat,
		MinFilter:     t.MinFilter,
		MagFilter:     t.MagFilter,
		ColorFileType: t.ColorFileType,
		AlphaFileType: t.AlphaFileType,
	}
}

// checkInvariants verifies the C2 invariant: every Placement a
// Texture owns has a group that appears in AssignedGroups.
func (t *Texture) checkInvariants() error {
	for groupName := range t.Placements {
		if !t.AssignedGroups[groupName] {
			return &Error{Kind: KindInvariant, Op: "texture invariant", Path: t.Name,
				Err: ErrNoGroup}
		}
	}
	return nil
}
