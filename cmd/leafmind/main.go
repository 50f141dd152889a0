package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theQuarky/leafmind/pkg/core"
	"github.com/theQuarky/leafmind/pkg/graph"
	"github.com/theQuarky/leafmind/pkg/memory"
)

func main() {
	var configPath string
	var dbPath string

	rootCmd := &cobra.Command{
		Use:          "leafmind",
		Short:        "LeafMind - hippocampus-inspired associative memory engine",
		Long:         "A concurrent, persistent graph of concepts linked by weighted synaptic edges that strengthen with use, decay with disuse, and answer associative recall queries.",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "f", "", "Path to YAML config file (overrides LEAFMIND_CONFIG env)")
	pf.StringVar(&dbPath, "db-path", "", "Database directory")

	loadConfig := func() (*core.Config, error) {
		path := configPath
		if path == "" {
			path = os.Getenv("LEAFMIND_CONFIG")
		}
		cfg, err := core.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if dbPath != "" {
			cfg.Persistence.DBPath = dbPath
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Run a small learn/associate/recall demonstration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDemo(cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print memory and persistence statistics for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStats(cfg)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runDemo exercises the learn → associate → recall → consolidate flow.
func runDemo(cfg *core.Config) error {
	mem, err := memory.New(cfg.Memory, cfg.Persistence)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer mem.Close()

	cat, err := mem.Learn("A small furry animal that meows")
	if err != nil {
		return err
	}
	dog, err := mem.Learn("A loyal furry animal that barks")
	if err != nil {
		return err
	}
	pet, err := mem.Learn("A domesticated animal companion")
	if err != nil {
		return err
	}

	if err := mem.Associate(cat, pet); err != nil {
		return err
	}
	if err := mem.Associate(dog, pet); err != nil {
		return err
	}

	fmt.Println("Recalling from 'pet':")
	results := mem.Recall(pet, graph.RecallQuery{
		MaxResults:    10,
		MinRelevance:  0.0,
		MaxPathLength: 2,
	})
	for _, r := range results {
		fmt.Printf("  %.4f  %s\n", r.RelevanceScore, r.Concept.Content)
	}

	stats := mem.Consolidate()
	fmt.Printf("Consolidation: %d promoted, %d pruned, %d reactivated\n",
		stats.PromotedToLongTerm, stats.PrunedWeak, stats.Reactivated)

	return mem.ForceSave()
}

// runStats opens the database read-mostly and prints both stat surfaces.
func runStats(cfg *core.Config) error {
	// Disable auto-save for a one-shot inspection.
	cfg.Persistence.AutoSaveIntervalSeconds = 0

	mem, err := memory.New(cfg.Memory, cfg.Persistence)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer mem.Close()

	memStats, persistStats := mem.CombinedStats()

	fmt.Printf("Concepts:              %d\n", memStats.TotalConcepts)
	fmt.Printf("Short-term edges:      %d\n", memStats.ShortTermConnections)
	fmt.Printf("Long-term edges:       %d\n", memStats.LongTermConnections)
	fmt.Printf("Working memory:        %d\n", memStats.WorkingMemorySize)
	fmt.Printf("Last consolidation:    %s\n", memStats.LastConsolidation.Format("2006-01-02 15:04:05"))
	fmt.Printf("Database size (bytes): %d\n", persistStats.DatabaseSizeBytes)
	fmt.Printf("Save/load count:       %d/%d\n", persistStats.SaveCount, persistStats.LoadCount)
	fmt.Printf("Cache hit rate:        %.2f\n", persistStats.CacheHitRate)
	fmt.Printf("Auto-save status:      %s\n", persistStats.AutoSaveStatus)

	return nil
}
