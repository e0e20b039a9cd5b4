package palette

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSceneFixture(t *testing.T, path string) {
	t.Helper()
	body := "scene 1\ntexture wall.png\nref door tex=0 umin=0.1,0.2 umax=0.4,0.5 wrapu=repeat wrapv=clamp\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing scene fixture: %v", err)
	}
}

func TestLoadSceneFileBuildsReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.scene")
	writeSceneFixture(t, path)

	textures := map[string]*Texture{}
	scene, err := LoadSceneFile(path, textures)
	if err != nil {
		t.Fatalf("LoadSceneFile: %v", err)
	}
	if len(scene.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(scene.References))
	}
	ref := scene.References[0]
	if ref.TextureRef != "wall.png" {
		t.Errorf("TextureRef = %q", ref.TextureRef)
	}
	if ref.WrapU != WrapRepeat || ref.WrapV != WrapClamp {
		t.Errorf("wrap = %v, %v", ref.WrapU, ref.WrapV)
	}
	if !strings.HasSuffix(ref.ID, "#door") {
		t.Errorf("ID = %q, want suffix #door", ref.ID)
	}

	tex := textures["wall.png"]
	if tex == nil || len(tex.References) != 1 {
		t.Fatalf("expected the texture registry to gain a reference, got %+v", tex)
	}
}

func TestSaveSceneFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.scene")
	writeSceneFixture(t, path)

	textures := map[string]*Texture{}
	scene, err := LoadSceneFile(path, textures)
	if err != nil {
		t.Fatalf("LoadSceneFile: %v", err)
	}

	scene.References[0].UsesAtlas = "atlas_0.png"
	scene.Stale = true
	if err := SaveSceneFile(scene); err != nil {
		t.Fatalf("SaveSceneFile: %v", err)
	}
	if scene.Stale {
		t.Error("expected SaveSceneFile to clear Stale")
	}

	reloaded := map[string]*Texture{}
	again, err := LoadSceneFile(path, reloaded)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.References[0].TextureRef != "atlas_0.png" {
		t.Errorf("expected rewritten scene to reference the atlas, got %q", again.References[0].TextureRef)
	}
}
