package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/frederic-klein/phpfarm/internal/config"
	"github.com/frederic-klein/phpfarm/internal/downloader"
	"github.com/frederic-klein/phpfarm/internal/extractor"
	"github.com/frederic-klein/phpfarm/internal/hooks"
	"github.com/frederic-klein/phpfarm/internal/index"
	"github.com/frederic-klein/phpfarm/internal/progress"
	"github.com/frederic-klein/phpfarm/internal/registry"
	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/resolver"
	"github.com/frederic-klein/phpfarm/internal/transport"
	"github.com/frederic-klein/phpfarm/internal/view"
)

// app holds the components one invocation works with.
type app struct {
	flags       *globalFlags
	cfg         *config.Config
	logger      *log.Logger
	compression release.Compression
	defaults    []release.Branch

	loader     *index.Loader
	resolver   *resolver.Resolver
	registry   *registry.Registry
	downloader *downloader.Downloader
	extractor  *extractor.Extractor
	hooks      *hooks.Runner
	view       *view.Renderer
	out        io.Writer
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "phpfarm"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()
	logger := newLogger(stderr, g.verbose)

	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.File != "" {
		logger.Debug("using config", "file", cfg.File)
	}

	ext := cfg.Extension
	if g.extension != "" {
		ext = g.extension
	}
	c, err := release.ParseCompression(ext)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.DefaultBranches()
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(nil)
	current := index.NewCurrentFeed(cfg.Feeds.Current, cfg.FeedsDir(), client)
	current.SetTTL(cfg.FeedTTL)
	museum := index.NewMuseumFeed(cfg.Feeds.Museum, []release.Compression{c}, client)

	reg := registry.New(cfg.TarballsDir())
	var sources []downloader.Source
	var mirror *downloader.S3Source
	if s3 := cfg.Mirror.S3; s3.Enabled() {
		mirror, err = downloader.NewS3Source(ctx, downloader.S3Config{
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			PathStyle: s3.PathStyle,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring mirror: %w", err)
		}
		sources = append(sources, mirror)
	}
	sources = append(sources, downloader.NewHTTPSource(client))

	dl := downloader.NewDownloader(cfg.Workers, reg, logger, sources...)
	if mirror != nil && cfg.Mirror.S3.Push {
		dl.SetPusher(mirror)
	}

	var reporter progress.Reporter = progress.Discard
	if f, ok := stderr.(*os.File); ok && !g.asJSON && term.IsTerminal(int(f.Fd())) {
		reporter = progress.NewTerminal(stderr)
	}
	dl.SetProgress(reporter)
	ex := extractor.NewExtractor(logger)
	ex.SetProgress(reporter)

	runner := hooks.NewRunner(cfg.HooksDir(), logger)
	if g.verbose {
		runner.SetOutput(stderr)
	}

	return &app{
		flags:       g,
		cfg:         cfg,
		logger:      logger,
		compression: c,
		defaults:    defaults,
		loader:      index.NewLoader(current, museum, logger),
		resolver:    resolver.NewResolver(defaults),
		registry:    reg,
		downloader:  dl,
		extractor:   ex,
		hooks:       runner,
		view:        view.New(cmd.OutOrStdout(), g.asJSON),
		out:         cmd.OutOrStdout(),
	}, nil
}

// resolve loads what spec needs and picks one release.
func (a *app) resolve(ctx context.Context, spec release.Specifier) (release.Entry, error) {
	snap, err := a.loader.ForSpecifier(ctx, spec, a.defaults)
	if err != nil {
		return release.Entry{}, fmt.Errorf("loading releases: %w", err)
	}
	return a.resolver.Resolve(spec, snap)
}

// parseSpecArg parses an optional positional specifier.
func parseSpecArg(args []string) (release.Specifier, error) {
	if len(args) == 0 {
		return release.Specifier{}, nil
	}
	return release.ParseSpecifier(args[0])
}
