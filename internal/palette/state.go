package palette

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

// Snapshot persistence errors.
var (
	ErrBadStateMagic  = errors.New("not a palettizer project state file")
	ErrStateVersion   = errors.New("project state written by a newer version")
	ErrTruncatedState = errors.New("truncated project state")
)

const (
	stateMagic   = "PLTZ"
	stateVersion = uint32(1)
)

// State is the persisted, incremental project snapshot (C9): enough
// of the previous run's AtlasImage geometry and Placement rectangles
// to detect drift and avoid a chain-reaction repack, plus each
// group's DirectoryOrder to seed the next run's ambiguity mitigation.
//
// Cross-object references (a Placement's owning AtlasImage) are
// stored as indices into the AtlasImages pool and resolved in a
// second pass after every pool has been read, the same way a table
// of fixed-size records is resolved after being read in whole.
type State struct {
	Groups      []GroupSnapshot
	AtlasImages []AtlasImageSnapshot
	Textures    []TextureSnapshot
}

// GroupSnapshot seeds GroupSet.Resolve's directory-order ambiguity
// mitigation.
type GroupSnapshot struct {
	Name           string
	DirectoryOrder int32
}

// AtlasImageSnapshot is the geometry and filename of one previously
// written atlas, keyed by its position in the pool (its "index").
type AtlasImageSnapshot struct {
	Group      string
	Properties TextureProperties
	Index      int32
	Basename   string
	Width      int32
	Height     int32
	Channels   int32
}

// PlacementSnapshot is one texture's residency in one group as of the
// previous run.
type PlacementSnapshot struct {
	Group      string
	AtlasIndex int32 // index into State.AtlasImages, or -1 if not resident
	OmitReason int32
	XSize, YSize int32
	X, Y         int32
	Margin       int32
	MinU, MinV   float32
	MaxU, MaxV   float32
	WrapU, WrapV int32
}

// TextureSnapshot is one texture's placements as of the previous run.
type TextureSnapshot struct {
	Name       string
	Placements []PlacementSnapshot
}

// LoadState reads a project state file. A missing file is not an
// error: callers get a zero-value State representing "no prior run".
func LoadState(path string) (*State, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, &Error{Kind: KindIoError, Op: "open project state", Path: path, Err: err}
	}
	defer f.Close()

	st, err := readState(bufio.NewReader(f))
	if err != nil {
		return nil, &Error{Kind: classifyStateError(err), Op: "read project state", Path: path, Err: err}
	}
	return st, nil
}

func classifyStateError(err error) Kind {
	switch {
	case errors.Is(err, ErrStateVersion):
		return KindBadVersion
	case errors.Is(err, ErrBadStateMagic), errors.Is(err, ErrTruncatedState):
		return KindBadSnapshot
	default:
		return KindBadSnapshot
	}
}

// SaveState writes the project state file at path, overwriting any
// existing file.
func SaveState(path string, st *State) error {
	f, err := os.Create(path)
	if err != nil {
		return &Error{Kind: KindIoError, Op: "create project state", Path: path, Err: err}
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := writeState(bw, st); err != nil {
		return &Error{Kind: KindIoError, Op: "write project state", Path: path, Err: err}
	}
	return bw.Flush()
}

func readState(r io.Reader) (*State, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedState, err)
	}
	if string(magic[:]) != stateMagic {
		return nil, ErrBadStateMagic
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedState, err)
	}
	if version > stateVersion {
		return nil, fmt.Errorf("%w: file is version %d, this build supports up to %d", ErrStateVersion, version, stateVersion)
	}

	st := &State{}

	groupCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	st.Groups = make([]GroupSnapshot, groupCount)
	for i := range st.Groups {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		order, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		st.Groups[i] = GroupSnapshot{Name: name, DirectoryOrder: order}
	}

	atlasCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	st.AtlasImages = make([]AtlasImageSnapshot, atlasCount)
	for i := range st.AtlasImages {
		snap, err := readAtlasImageSnapshot(r)
		if err != nil {
			return nil, err
		}
		snap.Index = int32(i)
		st.AtlasImages[i] = snap
	}

	texCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	st.Textures = make([]TextureSnapshot, texCount)
	for i := range st.Textures {
		snap, err := readTextureSnapshot(r)
		if err != nil {
			return nil, err
		}
		st.Textures[i] = snap
	}

	return st, nil
}

func readAtlasImageSnapshot(r io.Reader) (AtlasImageSnapshot, error) {
	var snap AtlasImageSnapshot
	var err error
	if snap.Group, err = readString(r); err != nil {
		return snap, err
	}
	if snap.Properties, err = readTextureProperties(r); err != nil {
		return snap, err
	}
	if snap.Basename, err = readString(r); err != nil {
		return snap, err
	}
	if snap.Width, err = readInt32(r); err != nil {
		return snap, err
	}
	if snap.Height, err = readInt32(r); err != nil {
		return snap, err
	}
	if snap.Channels, err = readInt32(r); err != nil {
		return snap, err
	}
	return snap, nil
}

func readTextureSnapshot(r io.Reader) (TextureSnapshot, error) {
	var snap TextureSnapshot
	var err error
	if snap.Name, err = readString(r); err != nil {
		return snap, err
	}
	plCount, err := readUint32(r)
	if err != nil {
		return snap, err
	}
	snap.Placements = make([]PlacementSnapshot, plCount)
	for i := range snap.Placements {
		pl, err := readPlacementSnapshot(r)
		if err != nil {
			return snap, err
		}
		snap.Placements[i] = pl
	}
	return snap, nil
}

func readPlacementSnapshot(r io.Reader) (PlacementSnapshot, error) {
	var pl PlacementSnapshot
	fields := []*int32{&pl.AtlasIndex, &pl.OmitReason, &pl.XSize, &pl.YSize, &pl.X, &pl.Y, &pl.Margin, &pl.WrapU, &pl.WrapV}
	var err error
	if pl.Group, err = readString(r); err != nil {
		return pl, err
	}
	for _, f := range fields {
		if *f, err = readInt32(r); err != nil {
			return pl, err
		}
	}
	floats := []*float32{&pl.MinU, &pl.MinV, &pl.MaxU, &pl.MaxV}
	for _, f := range floats {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return pl, fmt.Errorf("%w: %v", ErrTruncatedState, err)
		}
	}
	return pl, nil
}

func readTextureProperties(r io.Reader) (TextureProperties, error) {
	var p TextureProperties
	ints := []*int{&p.ChannelCount}
	for _, f := range ints {
		v, err := readInt32(r)
		if err != nil {
			return p, err
		}
		*f = int(v)
	}
	pf, err := readInt32(r)
	if err != nil {
		return p, err
	}
	p.PixelFormat = PixelFormat(pf)
	minF, err := readInt32(r)
	if err != nil {
		return p, err
	}
	p.MinFilter = FilterMode(minF)
	magF, err := readInt32(r)
	if err != nil {
		return p, err
	}
	p.MagFilter = FilterMode(magF)
	if p.ColorFileType, err = readString(r); err != nil {
		return p, err
	}
	if p.AlphaFileType, err = readString(r); err != nil {
		return p, err
	}
	return p, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncatedState, err)
	}
	return v, nil
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncatedState, err)
	}
	return v, nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTruncatedState, err)
	}
	return string(buf), nil
}

func writeState(w io.Writer, st *State) error {
	if _, err := w.Write([]byte(stateMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, stateVersion); err != nil {
		return err
	}

	if err := writeUint32(w, uint32(len(st.Groups))); err != nil {
		return err
	}
	for _, g := range st.Groups {
		if err := writeString(w, g.Name); err != nil {
			return err
		}
		if err := writeInt32(w, g.DirectoryOrder); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(st.AtlasImages))); err != nil {
		return err
	}
	for _, a := range st.AtlasImages {
		if err := writeAtlasImageSnapshot(w, a); err != nil {
			return err
		}
	}

	if err := writeUint32(w, uint32(len(st.Textures))); err != nil {
		return err
	}
	for _, t := range st.Textures {
		if err := writeTextureSnapshot(w, t); err != nil {
			return err
		}
	}
	return nil
}

func writeAtlasImageSnapshot(w io.Writer, a AtlasImageSnapshot) error {
	if err := writeString(w, a.Group); err != nil {
		return err
	}
	if err := writeTextureProperties(w, a.Properties); err != nil {
		return err
	}
	if err := writeString(w, a.Basename); err != nil {
		return err
	}
	for _, v := range []int32{a.Width, a.Height, a.Channels} {
		if err := writeInt32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeTextureSnapshot(w io.Writer, t TextureSnapshot) error {
	if err := writeString(w, t.Name); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(t.Placements))); err != nil {
		return err
	}
	for _, pl := range t.Placements {
		if err := writePlacementSnapshot(w, pl); err != nil {
			return err
		}
	}
	return nil
}

func writePlacementSnapshot(w io.Writer, pl PlacementSnapshot) error {
	if err := writeString(w, pl.Group); err != nil {
		return err
	}
	ints := []int32{pl.AtlasIndex, pl.OmitReason, pl.XSize, pl.YSize, pl.X, pl.Y, pl.Margin, pl.WrapU, pl.WrapV}
	for _, v := range ints {
		if err := writeInt32(w, v); err != nil {
			return err
		}
	}
	floats := []float32{pl.MinU, pl.MinV, pl.MaxU, pl.MaxV}
	for _, v := range floats {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeTextureProperties(w io.Writer, p TextureProperties) error {
	if err := writeInt32(w, int32(p.ChannelCount)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(p.PixelFormat)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(p.MinFilter)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(p.MagFilter)); err != nil {
		return err
	}
	if err := writeString(w, p.ColorFileType); err != nil {
		return err
	}
	return writeString(w, p.AlphaFileType)
}

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// Capture builds a State snapshot from the current group set and
// texture registry, for writing after a run.
func Capture(groups *GroupSet, textures map[string]*Texture) *State {
	st := &State{}
	for _, g := range groups.All() {
		st.Groups = append(st.Groups, GroupSnapshot{Name: g.Name, DirectoryOrder: int32(g.DirectoryOrder)})
	}

	atlasIndex := make(map[*AtlasImage]int32)
	for _, t := range sortedTextures(textures) {
		for _, pl := range t.Placements {
			if pl.Image == nil {
				continue
			}
			if _, ok := atlasIndex[pl.Image]; !ok {
				idx := int32(len(st.AtlasImages))
				atlasIndex[pl.Image] = idx
				st.AtlasImages = append(st.AtlasImages, AtlasImageSnapshot{
					Group:      pl.Group.Name,
					Properties: t.Properties(),
					Index:      idx,
					Basename:   pl.Image.Basename,
					Width:      int32(pl.Image.Width),
					Height:     int32(pl.Image.Height),
					Channels:   int32(pl.Image.Channels),
				})
			}
		}
	}

	for _, t := range sortedTextures(textures) {
		tsnap := TextureSnapshot{Name: t.Name}
		for _, pl := range t.Placements {
			atlasIdx := int32(-1)
			if pl.Image != nil {
				atlasIdx = atlasIndex[pl.Image]
			}
			tsnap.Placements = append(tsnap.Placements, PlacementSnapshot{
				Group:      pl.Group.Name,
				AtlasIndex: atlasIdx,
				OmitReason: int32(pl.OmitReason),
				XSize:      int32(pl.Placed.XSize),
				YSize:      int32(pl.Placed.YSize),
				X:          int32(pl.Placed.X),
				Y:          int32(pl.Placed.Y),
				Margin:     int32(pl.Placed.Margin),
				MinU:       pl.Placed.MinUV.X,
				MinV:       pl.Placed.MinUV.Y,
				MaxU:       pl.Placed.MaxUV.X,
				MaxV:       pl.Placed.MaxUV.Y,
				WrapU:      int32(pl.Placed.WrapU),
				WrapV:      int32(pl.Placed.WrapV),
			})
		}
		if len(tsnap.Placements) > 0 {
			st.Textures = append(st.Textures, tsnap)
		}
	}
	return st
}

// DirectoryOrderSeed extracts the seedDirectoryOrder map Driver.Run
// expects from a loaded State.
func (st *State) DirectoryOrderSeed() map[string]int {
	if len(st.Groups) == 0 {
		return nil
	}
	seed := make(map[string]int, len(st.Groups))
	for _, g := range st.Groups {
		seed[g.Name] = int(g.DirectoryOrder)
	}
	return seed
}

// Apply seeds Driver's textures map with every previously-placed
// rectangle recorded in st, so sizeAndClassify's drift policy has
// something to compare this run's desired rect against. groups
// resolves each snapshot placement's group name back to the live
// *Group driver.go needs for packing; a placement whose group no
// longer exists is dropped rather than handed to the driver with a
// nil Group. It must run before Driver.Run.
func (st *State) Apply(textures map[string]*Texture, groups *GroupSet) {
	images := make([]*AtlasImage, len(st.AtlasImages))
	for i, a := range st.AtlasImages {
		images[i] = &AtlasImage{
			Width: int(a.Width), Height: int(a.Height), Channels: int(a.Channels),
			Basename: a.Basename, Index: int(a.Index),
		}
	}

	for _, tsnap := range st.Textures {
		t := textures[tsnap.Name]
		if t == nil {
			t = NewTexture(tsnap.Name)
			textures[tsnap.Name] = t
		}
		for _, plsnap := range tsnap.Placements {
			var group *Group
			if groups != nil {
				group = groups.Get(plsnap.Group)
			}
			if group == nil {
				continue
			}
			pl := &Placement{
				Texture:    t,
				Group:      group,
				OmitReason: OmitReason(plsnap.OmitReason),
				HasPlaced:  plsnap.AtlasIndex >= 0,
				Filled:     true,
				Placed: PlacedRect{
					Rect: Rect{
						XSize:  int(plsnap.XSize),
						YSize:  int(plsnap.YSize),
						MinUV:  mathpkg.Vec2{X: plsnap.MinU, Y: plsnap.MinV},
						MaxUV:  mathpkg.Vec2{X: plsnap.MaxU, Y: plsnap.MaxV},
						WrapU:  WrapMode(plsnap.WrapU),
						WrapV:  WrapMode(plsnap.WrapV),
						Margin: int(plsnap.Margin),
					},
					X: int(plsnap.X), Y: int(plsnap.Y),
				},
			}
			if plsnap.AtlasIndex >= 0 && int(plsnap.AtlasIndex) < len(images) {
				img := images[plsnap.AtlasIndex]
				pl.Image = img
				img.Placements = append(img.Placements, pl)
			}
			t.AssignedGroups[plsnap.Group] = true
			t.Placements[plsnap.Group] = pl
		}
	}
}
