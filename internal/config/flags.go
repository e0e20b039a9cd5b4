package config

import (
	"flag"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var (
	flagConfigFile   = flag.String("config", "", "Path to a YAML defaults file")
	flagRuleFile     = flag.String("rule-file", "", "Path to the rule file (required)")
	flagProjectState = flag.String("project-state", "", "Path to the persisted project state")
	flagPageSize     = flag.String("page-size", "", "Page size as WxH, e.g. 1024x1024")
	flagBackground   = flag.String("background", "", "Background color as R,G,B,A (0-255 each)")
	flagOmitSolitary = flag.Bool("omit-solitary", false, "Omit atlases holding a single placement")
	flagNoOmit       = flag.Bool("no-omit-solitary", false, "Keep solitary placements on their atlas")
	flagRoundUVs     = flag.String("round-uvs", "", "Round UV boxes to a grid, as UNIT,FUZZ")
	flagNoRound      = flag.Bool("no-round", false, "Disable UV grid rounding")
	flagAggClean     = flag.Bool("aggressively-clean", false, "Delete atlas files that end up empty")
	flagRedoAll      = flag.Bool("redo-all", false, "Ignore mtime checks; regenerate every atlas")
	flagImagePattern = flag.String("image-pattern", "", "Output atlas naming template")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile      = flag.String("log-file", "", "Path to a rotating log file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit defaults-file path if provided via
// --config.
func ConfigPath() string {
	return *flagConfigFile
}

// applyFlags applies CLI flag overrides to cfg, the highest-priority
// layer in the defaults < file < flags precedence chain.
func applyFlags(cfg *PackConfig) error {
	if *flagRuleFile != "" {
		cfg.RuleFile = *flagRuleFile
	}
	if *flagProjectState != "" {
		cfg.ProjectState = *flagProjectState
	}
	if *flagPageSize != "" {
		w, h, err := parseWxH(*flagPageSize)
		if err != nil {
			return fmt.Errorf("--page-size: %w", err)
		}
		cfg.PageSizeX, cfg.PageSizeY = w, h
	}
	if *flagBackground != "" {
		c, err := parseRGBA(*flagBackground)
		if err != nil {
			return fmt.Errorf("--background: %w", err)
		}
		cfg.SetBackground(c)
	}
	if *flagOmitSolitary {
		cfg.OmitSolitary = true
	}
	if *flagNoOmit {
		cfg.OmitSolitary = false
	}
	if *flagRoundUVs != "" {
		unit, fuzz, err := parsePair(*flagRoundUVs)
		if err != nil {
			return fmt.Errorf("--round-uvs: %w", err)
		}
		cfg.RoundUVs = true
		cfg.RoundUnit, cfg.RoundFuzz = unit, fuzz
	}
	if *flagNoRound {
		cfg.RoundUVs = false
	}
	if *flagAggClean {
		cfg.AggressivelyClean = true
	}
	if *flagRedoAll {
		cfg.RedoAll = true
	}
	if *flagImagePattern != "" {
		cfg.ImagePattern = *flagImagePattern
	}
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	return nil
}

func parseWxH(s string) (int, int, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func parsePair(s string) (float64, float64, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected UNIT,FUZZ, got %q", s)
	}
	a, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseRGBA(s string) (color.RGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return color.RGBA{}, fmt.Errorf("expected R,G,B,A, got %q", s)
	}
	vals := make([]uint8, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return color.RGBA{}, fmt.Errorf("component %d: invalid byte value %q", i, p)
		}
		vals[i] = uint8(v)
	}
	return color.RGBA{R: vals[0], G: vals[1], B: vals[2], A: vals[3]}, nil
}
