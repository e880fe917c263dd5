package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kush-Singh-26/quill/builder/run"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the cache directory",
	}
	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheGCCmd())
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			b, err := openBuilder(loadConfig(logger), logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			stats, err := b.Stats()
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			printStats(stats)
			return nil
		},
	}
}

func printStats(stats *run.CacheStats) {
	fmt.Println("📊 Cache Statistics")
	fmt.Println("════════════════════════════════════════")
	fmt.Printf("Directory:       %s\n", stats.Dir)

	fmt.Println("\n🔎 Search Index")
	fmt.Println("────────────────────────────────────────")
	var total int64
	for _, ns := range stats.Namespaces {
		if !ns.Exists {
			fmt.Printf("%-16s missing\n", ns.Name+":")
			continue
		}
		total += ns.Bytes
		fmt.Printf("%-16s %.1f KB\n", ns.Name+":", float64(ns.Bytes)/1024)
	}
	fmt.Printf("Index Size:      %.2f MB\n", float64(total)/(1024*1024))

	fmt.Println("\n🖼️  Images")
	fmt.Println("────────────────────────────────────────")
	fmt.Printf("Derived Images:  %d\n", stats.Images)
	fmt.Printf("Known Sizes:     %d\n", stats.ImageMeta)

	fmt.Println("\n📄 Rendered HTML")
	fmt.Println("────────────────────────────────────────")
	if stats.HTML < 0 {
		fmt.Println("Posts:           unavailable")
	} else {
		fmt.Printf("Posts:           %d\n", stats.HTML)
		fmt.Printf("Blob Store:      %.2f MB\n", float64(stats.HTMLBlobs)/(1024*1024))
	}
}

func cacheGCCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete rendered-HTML blobs no post references",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			b, err := openBuilder(loadConfig(logger), logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			if dryRun {
				fmt.Println("🗑️  Running GC (dry run)...")
			} else {
				fmt.Println("🗑️  Running garbage collection...")
			}

			result, err := b.CollectGarbage(dryRun)
			if err != nil {
				return fmt.Errorf("GC failed: %w", err)
			}

			fmt.Println("════════════════════════════════════════")
			fmt.Printf("Scanned:    %d blobs\n", result.ScannedBlobs)
			fmt.Printf("Live:       %d blobs\n", result.LiveBlobs)
			fmt.Printf("Deleted:    %d blobs (%.2f MB)\n", result.DeletedBlobs, float64(result.DeletedBytes)/(1024*1024))
			fmt.Printf("Duration:   %v\n", result.Duration)

			if dryRun {
				fmt.Println("\n(No changes made - dry run mode)")
			} else {
				fmt.Println("\n✅ GC complete")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be deleted without deleting")
	return cmd
}
