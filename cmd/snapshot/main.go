package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nulzo/model-hub/internal/adapters/providers/factory"
	"github.com/nulzo/model-hub/internal/config"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/overlay"
	"github.com/nulzo/model-hub/internal/platform/logger"

	_ "github.com/nulzo/model-hub/internal/adapters/providers/anthropic"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/google"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/ollama"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/openai"
	_ "github.com/nulzo/model-hub/internal/adapters/providers/xai"
)

// snapshotModel is the YAML line-item for one discovered model, annotated
// with its curated-overlay coverage.
type snapshotModel struct {
	ID            string   `yaml:"id"`
	DisplayName   string   `yaml:"display_name,omitempty"`
	Family        string   `yaml:"family,omitempty"`
	ContextWindow int      `yaml:"context_window,omitempty"`
	MaxOutput     int      `yaml:"max_output,omitempty"`
	Curated       bool     `yaml:"curated"`
	InputPrice    *float64 `yaml:"input_price_per_million,omitempty"`
	OutputPrice   *float64 `yaml:"output_price_per_million,omitempty"`
}

type snapshot struct {
	TakenAt   time.Time                  `yaml:"taken_at"`
	Providers map[string][]snapshotModel `yaml:"providers"`
}

func main() {
	out := flag.String("o", "", "Write the snapshot to a file instead of stdout")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-provider fetch timeout")
	flag.Parse()

	logger.Initialize(logger.Config{Level: "warn", Format: "console"})
	log := logger.Get()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	adapters, err := factory.Defaults(cfg.Providers)
	if err != nil {
		log.Fatal("Failed to build provider adapters", zap.Error(err))
	}
	if len(adapters) == 0 {
		log.Fatal("No enabled providers in config")
	}

	curated := overlay.Default()
	snap := snapshot{
		TakenAt:   time.Now().UTC(),
		Providers: make(map[string][]snapshotModel),
	}

	for provider, adapter := range adapters {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		models, err := adapter.ListModels(ctx)
		cancel()
		if err != nil {
			log.Warn("Listing failed, skipping provider",
				zap.String("provider", string(provider)), zap.Error(err))
			continue
		}

		items := make([]snapshotModel, 0, len(models))
		for _, m := range models {
			items = append(items, annotate(curated, provider, m))
		}
		snap.Providers[string(provider)] = items
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		log.Fatal("Failed to marshal snapshot", zap.Error(err))
	}

	if *out == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal("Failed to write snapshot", zap.Error(err))
	}
	fmt.Printf("Snapshot written to %s\n", *out)
}

func annotate(curated *overlay.Overlay, provider domain.Provider, m domain.ModelMetadata) snapshotModel {
	item := snapshotModel{
		ID:            m.ID,
		DisplayName:   m.DisplayName,
		Family:        m.Family,
		ContextWindow: m.ContextWindow,
		MaxOutput:     m.MaxOutput,
	}
	if e := curated.Find(provider, m.ID); e != nil {
		item.Curated = true
		if e.TokenPrices != nil {
			item.InputPrice = &e.TokenPrices.Input
			item.OutputPrice = &e.TokenPrices.Output
		}
	}
	return item
}
