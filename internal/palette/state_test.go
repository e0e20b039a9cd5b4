package palette

import (
	"path/filepath"
	"testing"
)

func TestLoadStateMissingFileIsNotAnError(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "nonexistent.state"))
	if err != nil {
		t.Fatalf("expected no error for a missing state file, got %v", err)
	}
	if st == nil || len(st.Groups) != 0 {
		t.Errorf("expected an empty State, got %+v", st)
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	groups := NewGroupSet()
	groups.Add("common")

	textures := map[string]*Texture{}
	tex := buildTexture("rounded.png", "common", 32, 32)
	textures["rounded.png"] = tex

	d := NewDriver(groups, textures)
	d.PageMaxX, d.PageMaxY = 128, 128
	if _, err := d.Run(map[string]int{"common": 3}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snapshot := Capture(groups, textures)
	path := filepath.Join(t.TempDir(), "project.state")
	if err := SaveState(path, snapshot); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(loaded.Groups) != 1 || loaded.Groups[0].Name != "common" || loaded.Groups[0].DirectoryOrder != 3 {
		t.Errorf("loaded groups = %+v", loaded.Groups)
	}
	if len(loaded.Textures) != 1 || loaded.Textures[0].Name != "rounded.png" {
		t.Fatalf("loaded textures = %+v", loaded.Textures)
	}
	pl := loaded.Textures[0].Placements[0]
	if pl.XSize != int32(tex.Placements["common"].Placed.XSize) {
		t.Errorf("placement XSize = %d, want %d", pl.XSize, tex.Placements["common"].Placed.XSize)
	}
	if pl.AtlasIndex < 0 {
		t.Errorf("expected a resident placement to have a valid atlas index, got %d", pl.AtlasIndex)
	}
}

func TestStateApplySeedsPlacements(t *testing.T) {
	st := &State{
		Groups: []GroupSnapshot{{Name: "common", DirectoryOrder: 2}},
		AtlasImages: []AtlasImageSnapshot{
			{Group: "common", Basename: "common_0.png", Width: 64, Height: 64, Channels: 4},
		},
		Textures: []TextureSnapshot{
			{
				Name: "seeded.png",
				Placements: []PlacementSnapshot{
					{
						Group: "common", AtlasIndex: 0, OmitReason: int32(OmitNone),
						XSize: 32, YSize: 32, X: 4, Y: 4,
						MinU: 0, MinV: 0, MaxU: 1, MaxV: 1,
					},
				},
			},
		},
	}

	groups := NewGroupSet()
	groups.Add("common")

	textures := map[string]*Texture{}
	st.Apply(textures, groups)

	tex := textures["seeded.png"]
	if tex == nil {
		t.Fatal("expected Apply to create the texture")
	}
	pl := tex.Placements["common"]
	if pl == nil {
		t.Fatal("expected a seeded placement")
	}
	if pl.Group == nil || pl.Group.Name != "common" {
		t.Errorf("expected the placement's Group to resolve, got %+v", pl.Group)
	}
	if pl.Placed.X != 4 || pl.Placed.Y != 4 || pl.Placed.XSize != 32 {
		t.Errorf("seeded placed rect = %+v", pl.Placed)
	}
	if pl.Image == nil || pl.Image.Basename != "common_0.png" {
		t.Errorf("expected the placement to link back to its atlas, got %+v", pl.Image)
	}
	if !tex.AssignedGroups["common"] {
		t.Error("expected AssignedGroups to include the seeded group")
	}

	seed := st.DirectoryOrderSeed()
	if seed["common"] != 2 {
		t.Errorf("DirectoryOrderSeed = %v", seed)
	}
}

func TestStateApplyUnresidentPlacement(t *testing.T) {
	st := &State{
		Textures: []TextureSnapshot{
			{
				Name: "omitted.png",
				Placements: []PlacementSnapshot{
					{Group: "common", AtlasIndex: -1, OmitReason: int32(OmitSize)},
				},
			},
		},
	}
	groups := NewGroupSet()
	groups.Add("common")

	textures := map[string]*Texture{}
	st.Apply(textures, groups)

	pl := textures["omitted.png"].Placements["common"]
	if pl.Image != nil {
		t.Errorf("expected no atlas link for an unresident placement, got %+v", pl.Image)
	}
	if pl.HasPlaced {
		t.Error("expected HasPlaced=false for AtlasIndex=-1")
	}
}
