package palette

// Page is a bucket within a group collecting placements that share
// an identical TextureProperties tuple. It owns an ordered list of
// AtlasImages.
type Page struct {
	Group      *Group
	Properties TextureProperties
	Images     []*AtlasImage

	// NamePattern is not set or read by the packer, the image updater
	// or cmd/palettizer; atlases are named from ImageUpdater.ImagePattern.
	NamePattern string
}

// nextImage appends and returns a fresh, empty AtlasImage sized to
// the configured page maximum.
func (p *Page) nextImage(maxX, maxY int) *AtlasImage {
	img := &AtlasImage{
		Width:    maxX,
		Height:   maxY,
		Channels: p.Properties.ChannelCount,
		Index:    len(p.Images) + 1,
		New:      true,
	}
	p.Images = append(p.Images, img)
	return img
}
