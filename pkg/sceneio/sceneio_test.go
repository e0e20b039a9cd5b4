package sceneio

import (
	"strings"
	"testing"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

func TestReadWriteRoundTrip(t *testing.T) {
	doc := &Document{
		Textures: []string{"a.png", "b.png"},
		Refs: []Ref{
			{ID: "wall", TextureIndex: 0, UVMin: mathpkg.Vec2{X: 0, Y: 0}, UVMax: mathpkg.Vec2{X: 1, Y: 1}, WrapU: WrapRepeat, WrapV: WrapClamp},
			{ID: "floor", TextureIndex: 1, UVMin: mathpkg.Vec2{X: 0.25, Y: 0.5}, UVMax: mathpkg.Vec2{X: 0.75, Y: 0.9}},
		},
	}

	var buf strings.Builder
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Textures) != 2 || got.Textures[0] != "a.png" || got.Textures[1] != "b.png" {
		t.Errorf("textures = %v", got.Textures)
	}
	if len(got.Refs) != 2 {
		t.Fatalf("refs = %v", got.Refs)
	}
	if got.Refs[0].ID != "wall" || got.Refs[0].WrapU != WrapRepeat || got.Refs[0].WrapV != WrapClamp {
		t.Errorf("ref 0 = %+v", got.Refs[0])
	}
	if got.Refs[1].UVMin != (mathpkg.Vec2{X: 0.25, Y: 0.5}) {
		t.Errorf("ref 1 UVMin = %v", got.Refs[1].UVMin)
	}
}

func TestReadMissingHeader(t *testing.T) {
	_, err := Read(strings.NewReader("texture a.png\nref x tex=0\n"))
	if err != ErrBadHeader {
		t.Errorf("expected ErrBadHeader, got %v", err)
	}
}

func TestReadUnsupportedVersion(t *testing.T) {
	_, err := Read(strings.NewReader("scene 99\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported version error, got %v", err)
	}
}

func TestReadBadTextureRef(t *testing.T) {
	_, err := Read(strings.NewReader("scene 1\ntexture a.png\nref x tex=5 umin=0,0 umax=1,1\n"))
	if err == nil || !strings.Contains(err.Error(), "undeclared") {
		t.Errorf("expected bad texture ref error, got %v", err)
	}
}

func TestDocumentTextureIndex(t *testing.T) {
	doc := &Document{}
	i0 := doc.TextureIndex("x.png")
	i1 := doc.TextureIndex("y.png")
	i0again := doc.TextureIndex("x.png")
	if i0 != 0 || i1 != 1 || i0again != 0 {
		t.Errorf("indices = %d, %d, %d", i0, i1, i0again)
	}
}
