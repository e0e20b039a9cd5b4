// Package sceneio reads and writes the scene description files that
// reference textures by UV box and wrap mode. The shape mirrors a
// ground mesh's texture table plus per-surface UV coordinates (the
// same two pieces of information a GND file carries for its
// surfaces), but the encoding here is a plain line-oriented text
// format rather than a game-specific binary layout.
package sceneio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

// Scene format errors.
var (
	ErrBadHeader          = errors.New("missing scene header")
	ErrUnsupportedVersion = errors.New("unsupported scene version")
	ErrTruncated          = errors.New("truncated scene record")
	ErrBadTextureRef      = errors.New("reference names an undeclared texture index")
)

// Version is the scene format's current version. A document whose
// header names a higher version is rejected rather than silently
// misparsed.
const Version = 1

// WrapMode is the wrap behavior one axis of a reference's UV box
// carries. It is duplicated from the placement engine's own WrapMode
// so this package has no dependency on it; the loader that builds
// palette.SceneRef values from a Document is responsible for the
// translation.
type WrapMode int

const (
	WrapClamp WrapMode = iota
	WrapRepeat
)

func (w WrapMode) String() string {
	if w == WrapRepeat {
		return "repeat"
	}
	return "clamp"
}

func parseWrapMode(s string) (WrapMode, bool) {
	switch s {
	case "clamp":
		return WrapClamp, true
	case "repeat":
		return WrapRepeat, true
	default:
		return 0, false
	}
}

// Ref is one texture reference record: a UV box into the texture
// named by TextureIndex (into Document.Textures), plus the wrap mode
// each axis uses when that texture repeats or tiles.
type Ref struct {
	ID           string
	TextureIndex int
	UVMin, UVMax mathpkg.Vec2
	WrapU, WrapV WrapMode
	Line         int
}

// Document is one parsed scene file: a texture table and the
// references into it.
type Document struct {
	Textures []string
	Refs     []Ref
}

// TextureIndex returns the index of path in d.Textures, adding it if
// not already present.
func (d *Document) TextureIndex(path string) int {
	for i, t := range d.Textures {
		if t == path {
			return i
		}
	}
	d.Textures = append(d.Textures, path)
	return len(d.Textures) - 1
}

// ReadFile parses the scene file at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a scene document from r.
//
// Grammar, one record per line:
//
//	# comment
//	scene 1
//	texture <path>
//	ref <id> tex=<index> umin=<u>,<v> umax=<u>,<v> wrapu=<mode> wrapv=<mode>
func Read(r io.Reader) (*Document, error) {
	doc := &Document{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	sawHeader := false

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "scene":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d", ErrTruncated, lineNo)
			}
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrBadHeader, lineNo, err)
			}
			if v > Version {
				return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
			}
			sawHeader = true

		case "texture":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d", ErrTruncated, lineNo)
			}
			doc.Textures = append(doc.Textures, fields[1])

		case "ref":
			ref, err := parseRef(fields, lineNo)
			if err != nil {
				return nil, err
			}
			if ref.TextureIndex < 0 || ref.TextureIndex >= len(doc.Textures) {
				return nil, fmt.Errorf("%w: line %d: index %d", ErrBadTextureRef, lineNo, ref.TextureIndex)
			}
			doc.Refs = append(doc.Refs, ref)

		default:
			return nil, fmt.Errorf("%w: line %d: unknown record %q", ErrTruncated, lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, ErrBadHeader
	}
	return doc, nil
}

func parseRef(fields []string, lineNo int) (Ref, error) {
	if len(fields) < 2 {
		return Ref{}, fmt.Errorf("%w: line %d", ErrTruncated, lineNo)
	}
	ref := Ref{ID: fields[1], Line: lineNo, WrapU: WrapClamp, WrapV: WrapClamp}

	for _, tok := range fields[2:] {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return Ref{}, fmt.Errorf("%w: line %d: malformed field %q", ErrTruncated, lineNo, tok)
		}
		key, val := kv[0], kv[1]
		var err error
		switch key {
		case "tex":
			ref.TextureIndex, err = strconv.Atoi(val)
		case "umin":
			ref.UVMin, err = parseVec2(val)
		case "umax":
			ref.UVMax, err = parseVec2(val)
		case "wrapu":
			mode, ok := parseWrapMode(val)
			if !ok {
				err = fmt.Errorf("unknown wrap mode %q", val)
			}
			ref.WrapU = mode
		case "wrapv":
			mode, ok := parseWrapMode(val)
			if !ok {
				err = fmt.Errorf("unknown wrap mode %q", val)
			}
			ref.WrapV = mode
		default:
			err = fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return Ref{}, fmt.Errorf("%w: line %d: %v", ErrTruncated, lineNo, err)
		}
	}
	return ref, nil
}

func parseVec2(s string) (mathpkg.Vec2, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return mathpkg.Vec2{}, fmt.Errorf("expected \"u,v\", got %q", s)
	}
	u, err := strconv.ParseFloat(parts[0], 32)
	if err != nil {
		return mathpkg.Vec2{}, err
	}
	v, err := strconv.ParseFloat(parts[1], 32)
	if err != nil {
		return mathpkg.Vec2{}, err
	}
	return mathpkg.Vec2{X: float32(u), Y: float32(v)}, nil
}

// WriteFile writes doc to path, overwriting any existing file.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, doc)
}

// Write serializes doc to w in the same grammar Read parses.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "scene %d\n", Version); err != nil {
		return err
	}
	for _, t := range doc.Textures {
		if _, err := fmt.Fprintf(bw, "texture %s\n", t); err != nil {
			return err
		}
	}
	for _, ref := range doc.Refs {
		if _, err := fmt.Fprintf(bw, "ref %s tex=%d umin=%s,%s umax=%s,%s wrapu=%s wrapv=%s\n",
			ref.ID, ref.TextureIndex,
			formatFloat(ref.UVMin.X), formatFloat(ref.UVMin.Y),
			formatFloat(ref.UVMax.X), formatFloat(ref.UVMax.Y),
			ref.WrapU, ref.WrapV,
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
