package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/phpfarm/internal/progress"
	"github.com/frederic-klein/phpfarm/internal/registry"
	"github.com/frederic-klein/phpfarm/internal/release"
)

// ChecksumError reports an archive whose SHA-256 differs from the one the
// feed published. The archive is not stored.
type ChecksumError struct {
	File string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: sha256 mismatch: want %s, got %s", e.File, e.Want, e.Got)
}

// Job represents a download job.
type Job struct {
	Entry       release.Entry
	Compression release.Compression
	Force       bool
}

// Key returns the registry key the job stores under.
func (j Job) Key() release.CacheKey {
	return release.CacheKey{Version: j.Entry.Version, Compression: j.Compression}
}

// Result represents a download result.
type Result struct {
	Job    Job
	Path   string
	Cached bool
	Error  error
}

// Pusher uploads freshly downloaded archives to a mirror.
type Pusher interface {
	Name() string
	Put(ctx context.Context, key release.CacheKey, file string) error
}

// Downloader fills the registry from a list of sources, tried in order.
type Downloader struct {
	workers  int
	registry *registry.Registry
	sources  []Source
	pusher   Pusher
	logger   *log.Logger
	progress progress.Reporter
}

// NewDownloader creates a new downloader with the specified number of workers.
func NewDownloader(workers int, reg *registry.Registry, logger *log.Logger, sources ...Source) *Downloader {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Downloader{
		workers:  workers,
		registry: reg,
		sources:  sources,
		logger:   logger,
		progress: progress.Discard,
	}
}

// SetProgress sets where download progress is drawn.
func (d *Downloader) SetProgress(p progress.Reporter) {
	d.progress = p
}

// SetPusher uploads every archive fetched from a non-mirror source to p.
func (d *Downloader) SetPusher(p Pusher) {
	d.pusher = p
}

// Registry returns the registry archives are stored in.
func (d *Downloader) Registry() *registry.Registry {
	return d.registry
}

// Ensure returns the registry path of the archive, downloading it unless
// it is already cached. force replaces a cached copy.
func (d *Downloader) Ensure(ctx context.Context, e release.Entry, c release.Compression, force bool) (string, error) {
	res := d.one(ctx, Job{Entry: e, Compression: c, Force: force})
	return res.Path, res.Error
}

// Download runs jobs on the worker pool. Results are in job order.
func (d *Downloader) Download(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	type indexed struct {
		i   int
		job Job
	}
	jobChan := make(chan indexed, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range jobChan {
				results[ij.i] = d.one(ctx, ij.job)
			}
		}()
	}

	for i, job := range jobs {
		jobChan <- indexed{i: i, job: job}
	}
	close(jobChan)
	wg.Wait()

	return results
}

func (d *Downloader) one(ctx context.Context, job Job) Result {
	key := job.Key()
	res := Result{Job: job, Path: d.registry.PathFor(key)}

	if !job.Force && d.registry.Has(key) {
		d.logger.Debug("already cached", "archive", key)
		res.Cached = true
		return res
	}
	if _, ok := job.Entry.Source(job.Compression); !ok {
		res.Error = fmt.Errorf("%s: %w", key, ErrNotOffered)
		return res
	}

	var errs []error
	for _, src := range d.sources {
		err := d.fetch(ctx, src, job)
		if err == nil {
			if d.pusher != nil && d.pusher.Name() != src.Name() {
				if err := d.pusher.Put(ctx, key, res.Path); err != nil {
					d.logger.Warn("mirror upload failed", "archive", key, "err", err)
				}
			}
			return res
		}

		var cerr *ChecksumError
		if errors.As(err, &cerr) || errors.Is(err, registry.ErrAlreadyExists) || ctx.Err() != nil {
			res.Error = err
			return res
		}
		d.logger.Debug("source failed", "source", src.Name(), "archive", key, "err", err)
		errs = append(errs, err)
	}

	switch len(errs) {
	case 0:
		res.Error = fmt.Errorf("downloading %s: no sources configured", key)
	case 1:
		res.Error = fmt.Errorf("downloading %s: %w", key, errs[0])
	default:
		res.Error = fmt.Errorf("downloading %s: %w", key, errors.Join(errs...))
	}
	return res
}

func (d *Downloader) fetch(ctx context.Context, src Source, job Job) error {
	key := job.Key()

	body, size, err := src.Open(ctx, job.Entry, job.Compression)
	if err != nil {
		return err
	}
	defer body.Close()

	w, err := d.registry.Create(key, job.Force)
	if err != nil {
		return err
	}
	defer w.Abort()

	d.logger.Info("downloading", "archive", key, "from", src.Name())
	tracker := d.progress.Start(key.FileName(), size)
	_, err = io.Copy(io.MultiWriter(w, tracker), body)
	tracker.Done()
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}

	if want := job.Entry.Sources[job.Compression].SHA256; want != "" {
		if got := w.SHA256(); !strings.EqualFold(got, want) {
			return &ChecksumError{File: key.FileName(), Want: want, Got: got}
		}
	}

	return w.Commit()
}
