// palettizer packs texture references gathered from a set of scene
// files into shared atlases, one batch invocation at a time.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hearthforge/palettizer/internal/config"
	"github.com/hearthforge/palettizer/internal/logger"
	"github.com/hearthforge/palettizer/internal/palette"
	"github.com/hearthforge/palettizer/pkg/rasterimage"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.RuleFile == "" {
		logger.Error("--rule-file is required")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(exitCodeFor(err))
	}

	logger.Info("run complete")
}

// run executes one full palettizer invocation: load inputs, run the
// placement engine, composite atlases, persist the project state.
func run(cfg *config.PackConfig) error {
	logger.Sugar.Debugf("config: %+v", cfg)

	ruleFile, err := palette.LoadRuleFile(cfg.RuleFile)
	if err != nil {
		return err
	}
	logger.Info("loaded rule file", zap.String("path", cfg.RuleFile), zap.Int("rules", len(ruleFile.Rules)))

	textures := make(map[string]*palette.Texture)

	var state *palette.State
	if cfg.ProjectState != "" {
		state, err = palette.LoadState(cfg.ProjectState)
		if err != nil {
			if !cfg.RedoAll {
				return err
			}
			logger.Warn("discarding corrupt project state due to --redo-all", zap.Error(err))
			state = &palette.State{}
		}
		state.Apply(textures, ruleFile.Groups)
	}

	scenePaths, err := discoverSceneFiles(cfg)
	if err != nil {
		return err
	}
	var scenes []*palette.SceneFile
	for _, path := range scenePaths {
		scene, err := palette.LoadSceneFile(path, textures)
		if err != nil {
			return err
		}
		scenes = append(scenes, scene)
	}
	logger.Info("loaded scene files", zap.Int("count", len(scenes)))

	for _, t := range textures {
		if err := ruleFile.Apply(t); err != nil {
			return err
		}
		stat, statErr := os.Stat(t.Name)
		if statErr != nil {
			logger.Warn("texture source unreadable", zap.String("texture", t.Name), zap.Error(statErr))
			continue
		}
		t.ModTime = stat.ModTime()

		src, loadErr := rasterimage.Load(t.Name)
		if loadErr != nil {
			logger.Warn("texture source unreadable", zap.String("texture", t.Name), zap.Error(loadErr))
			continue
		}
		bounds := src.Bounds()
		t.DimensionsKnown = true
		t.Width, t.Height = bounds.Dx(), bounds.Dy()
		if src.HasAlpha {
			t.ChannelCount = 4
			t.SourceFormat = palette.PixelRGBA
		} else {
			t.ChannelCount = 3
			t.SourceFormat = palette.PixelRGB
		}
	}

	var seed map[string]int
	if state != nil {
		seed = state.DirectoryOrderSeed()
	}

	driver := palette.NewDriver(ruleFile.Groups, textures)
	driver.PageMaxX, driver.PageMaxY = cfg.PageSizeX, cfg.PageSizeY
	driver.OmitSolitary = cfg.OmitSolitary
	if cfg.RoundUVs {
		driver.RoundUnit = float32(cfg.RoundUnit)
		driver.RoundFuzz = float32(cfg.RoundFuzz)
	}

	pages, err := driver.Run(seed)
	if err != nil {
		return err
	}
	logger.Info("placement complete", zap.Int("pages", len(pages)))

	outputDir := filepath.Dir(cfg.RuleFile)
	updater := palette.NewImageUpdater(outputDir, cfg.ImagePattern, cfg.Background())
	updater.AggressivelyClean = cfg.AggressivelyClean
	updater.RedoAll = cfg.RedoAll
	written, err := updater.UpdateAll(pages)
	if err != nil {
		logger.Warn("one or more atlases failed to update", zap.Error(err))
	}
	logger.Info("atlases updated", zap.Int("written", written))
	updater.ReleaseSources()

	for _, scene := range scenes {
		if scene.Stale {
			for _, ref := range scene.References {
				if ref.UsesAtlas != "" {
					ref.UVMin = ref.Matrix.Apply(ref.UVMin)
					ref.UVMax = ref.Matrix.Apply(ref.UVMax)
				}
			}
			if err := palette.SaveSceneFile(scene); err != nil {
				logger.Warn("failed to rewrite scene file", zap.String("path", scene.Path), zap.Error(err))
			}
		}
	}

	if cfg.ProjectState != "" {
		snapshot := palette.Capture(ruleFile.Groups, textures)
		if err := palette.SaveState(cfg.ProjectState, snapshot); err != nil {
			return err
		}
	}

	return nil
}

// discoverSceneFiles finds every scene description alongside the
// rule file's directory tree (the rule file's own directory, by
// convention, is the project root).
func discoverSceneFiles(cfg *config.PackConfig) ([]string, error) {
	root := filepath.Dir(cfg.RuleFile)
	var found []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".scene" {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, &palette.Error{Kind: palette.KindIoError, Op: "discover scene files", Path: root, Err: err}
	}
	return found, nil
}

func exitCodeFor(err error) int {
	switch palette.KindOf(err) {
	case palette.KindInvariant:
		return 2
	default:
		return 1
	}
}
