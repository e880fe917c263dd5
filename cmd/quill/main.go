// Package main provides the quill CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Kush-Singh-26/quill/builder/config"
	"github.com/Kush-Singh-26/quill/builder/run"
	"github.com/Kush-Singh-26/quill/builder/utils"
	"github.com/Kush-Singh-26/quill/internal/clean"
	"github.com/Kush-Singh-26/quill/internal/new"
	"github.com/Kush-Singh-26/quill/internal/server"
	"github.com/Kush-Singh-26/quill/internal/watch"
)

var (
	// Global flags
	configPath string
	cacheDir   string
	contentDir string
	drafts     bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quill",
		Short: "Build-time caches for a static blog",
		Long: `quill keeps the build-time state of a static blog between runs.

- build:   related posts for every post, backed by a cached fuzzy index
- image:   derived images (resized, WebP) cached on disk
- serve:   preview server for the build output and /wp-content/ images`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&contentDir, "content", "", "Posts directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&drafts, "drafts", false, "Include draft posts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(relatedCmd())
	rootCmd.AddCommand(imageCmd())
	rootCmd.AddCommand(prewarmCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(newCmd())
	rootCmd.AddCommand(cleanCacheCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies the global flag overrides.
// A malformed file is reported and the defaults are used.
func loadConfig(logger *slog.Logger) *config.Config {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		logger.Warn("Using default configuration", "error", err)
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if contentDir != "" {
		cfg.ContentDir = contentDir
	}
	if drafts {
		cfg.IncludeDrafts = true
	}
	cfg.Validate()
	return cfg
}

func openBuilder(cfg *config.Config, logger *slog.Logger) (*run.Builder, error) {
	return run.NewBuilder(cfg, run.Options{Fs: afero.NewOsFs(), Logger: logger})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildCmd() *cobra.Command {
	var includeBody bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute related posts and write related.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			if includeBody {
				cfg.IncludeBody = true
			}

			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			ctx, stop := signalContext()
			defer stop()
			return runBuild(ctx, b)
		},
	}
	cmd.Flags().BoolVar(&includeBody, "body", false, "Index rendered post bodies")
	return cmd
}

func runBuild(ctx context.Context, b *run.Builder) error {
	res, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if res.Rebuilt {
		fmt.Printf("🔨 Rebuilt related-posts index (%d posts)\n", res.Posts)
	} else {
		fmt.Printf("⚡ Related-posts index loaded from cache (%d posts)\n", res.Posts)
	}
	fmt.Printf("✅ Wrote %s\n", res.Output)
	b.Metrics().Print()
	return nil
}

func relatedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "related [permalink]",
		Short: "Show the posts related to one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			post, rel, err := b.RelatedFor(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			fmt.Printf("🔗 Related to %q (%s)\n", post.Title, post.Permalink)
			fmt.Println("────────────────────────────────────────")
			if len(rel) == 0 {
				fmt.Println("   (none)")
			}
			for i, r := range rel {
				fmt.Printf("%d. %s  %s\n", i+1, r.Title, r.Permalink)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "Maximum number of related posts")
	return cmd
}

func imageCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "image [logical-path]",
		Short: "Produce one derived image, e.g. uploads/2023/05/photo-300x200.webp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			start := time.Now()
			asset, err := b.Image(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Base(args[0])
			}
			if err := utils.WriteFileAtomic(afero.NewOsFs(), output, asset.Data); err != nil {
				return err
			}
			fmt.Printf("🖼️  %s → %s (%s, %.1f KB) in %v\n", args[0], output, asset.Meta.ContentType,
				float64(len(asset.Data))/1024, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: base name of the path)")
	return cmd
}

func prewarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prewarm",
		Short: "Generate every configured variant of every upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			ctx, stop := signalContext()
			defer stop()

			fmt.Printf("🔥 Prewarming images under %s...\n", cfg.UploadsDir)
			res, err := b.Prewarm(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✅ %d sources, %d variants (%d missing)\n", res.Sources, res.Variants, res.Missing)
			b.Metrics().Print()
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build output and derived images",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			if addr != "" {
				cfg.Addr = addr
			}
			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			ctx, stop := signalContext()
			defer stop()

			srv := server.New(server.Config{
				Addr:            cfg.Addr,
				StaticDir:       cfg.OutputDir,
				Assets:          b.Images(),
				ShutdownTimeout: cfg.ShutdownTimeout,
				Logger:          logger,
			})
			fmt.Printf("🌐 Serving %s and %s at http://%s\n", cfg.OutputDir, server.AssetPrefix, cfg.Addr)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a post changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			b, err := openBuilder(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			ctx, stop := signalContext()
			defer stop()

			if err := runBuild(ctx, b); err != nil {
				fmt.Fprintln(os.Stderr, "❌", err)
			}

			w, err := watch.New([]string{cfg.ContentDir}, cfg.DebounceDuration, logger, func(e watch.Event) {
				fmt.Printf("\n📝 %s changed, rebuilding...\n", filepath.Base(e.Name))
				if err := runBuild(ctx, b); err != nil && !errors.Is(err, context.Canceled) {
					fmt.Fprintln(os.Stderr, "❌", err)
				}
			})
			if err != nil {
				return err
			}
			fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", cfg.ContentDir)
			return w.Run(ctx)
		},
	}
}

func newCmd() *cobra.Command {
	var opts new.Options

	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a new post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(newLogger())
			opts.Dir = cfg.ContentDir
			opts.Title = args[0]

			post, err := new.Create(afero.NewOsFs(), opts)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Created: %s (id %d, %s)\n", post.Path, post.ID, post.Permalink)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().StringSliceVar(&opts.Categories, "categories", nil, "Comma-separated categories")
	cmd.Flags().BoolVar(&opts.Draft, "draft", false, "Mark the post as a draft")
	return cmd
}

func cleanCacheCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean-cache",
		Short: "Delete the persisted related-posts index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(newLogger())

			res, err := clean.Run(afero.NewOsFs(), cfg.CacheDir, all)
			if err != nil {
				return err
			}
			if len(res.Removed) == 0 {
				fmt.Println("✨ Nothing to clean")
				return nil
			}
			for _, dir := range res.Removed {
				fmt.Printf("🗑️  Removed %s\n", dir)
			}
			fmt.Printf("✅ Clean complete in %v\n", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete the whole cache directory, images included")
	return cmd
}
