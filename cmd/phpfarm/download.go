package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/downloader"
	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/view"
)

func newDownloadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <version>...",
		Short: "Download release archives into the cache",
		Long: `Resolve each version and download its archive into the cache.

Archives already cached are not fetched again unless --force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var jobs []downloader.Job
			seen := make(map[release.CacheKey]bool)
			for _, arg := range args {
				spec, err := release.ParseSpecifier(arg)
				if err != nil {
					return err
				}
				entry, err := a.resolve(ctx, spec)
				if err != nil {
					return err
				}
				job := downloader.Job{Entry: entry, Compression: a.compression, Force: g.force}
				if seen[job.Key()] {
					continue
				}
				seen[job.Key()] = true
				jobs = append(jobs, job)
			}

			results := a.downloader.Download(ctx, jobs)

			var errs []error
			paths := make([]view.Path, 0, len(results))
			for _, r := range results {
				p := view.Path{Version: r.Job.Entry.Version.String(), Path: r.Path, Cached: r.Cached}
				if r.Error != nil {
					p.Error = r.Error.Error()
					errs = append(errs, r.Error)
				}
				paths = append(paths, p)
			}
			if err := a.view.Paths(paths); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}
