// Package upgrade replaces extracted source trees with the newest patch
// release of their branch while preserving files the user added.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/frederic-klein/phpfarm/internal/buildtree"
	"github.com/frederic-klein/phpfarm/internal/index"
	"github.com/frederic-klein/phpfarm/internal/manifest"
	"github.com/frederic-klein/phpfarm/internal/release"
)

// State is a step of one tree's upgrade.
type State int

const (
	Discovered State = iota
	Resolving
	Fetching
	Extracting
	Diffing
	BackingUp
	AwaitingConfirmation
	Swapping
	Done
	UpToDate
	Failed
)

var stateNames = [...]string{
	Discovered:           "discovered",
	Resolving:            "resolving",
	Fetching:             "fetching",
	Extracting:           "extracting",
	Diffing:              "diffing",
	BackingUp:            "backing up",
	AwaitingConfirmation: "awaiting confirmation",
	Swapping:             "swapping",
	Done:                 "done",
	UpToDate:             "up to date",
	Failed:               "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loader fetches the releases needed to resolve a specifier.
type Loader interface {
	ForSpecifier(ctx context.Context, spec release.Specifier, defaults []release.Branch) (*index.Snapshot, error)
}

// Resolver picks one release for a specifier.
type Resolver interface {
	Resolve(spec release.Specifier, snap *index.Snapshot) (release.Entry, error)
}

// Fetcher makes an archive available locally.
type Fetcher interface {
	Ensure(ctx context.Context, e release.Entry, c release.Compression, force bool) (string, error)
}

// Unpacker extracts an archive into a new tree.
type Unpacker interface {
	Extract(archivePath string, c release.Compression, dest string) (*manifest.Manifest, error)
}

// HookRunner runs the post-extraction hooks.
type HookRunner interface {
	RunAll(ctx context.Context, tree string) error
}

// Confirmer asks before a tree is deleted.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Collaborators are the components an upgrade drives.
type Collaborators struct {
	Loader   Loader
	Resolver Resolver
	Fetcher  Fetcher
	Unpacker Unpacker
	Hooks    HookRunner
	Confirm  Confirmer
}

// Options tune an upgrade run.
type Options struct {
	Compression release.Compression
	// Force replaces an existing sibling tree and an existing backup.
	Force bool
	// NoHooks skips the post-extraction hooks.
	NoHooks bool
	// BackupDir overrides <parent>/.phpfarm-backup.
	BackupDir string
}

// Report is the outcome of one tree's upgrade.
type Report struct {
	Tree       buildtree.Tree
	From       release.Version
	To         *release.Version
	State      State
	FailedAt   State
	NewPath    string
	BackupPath string
	BackedUp   int
	Removed    bool
	Err        error
}

// Orchestrator sequences the upgrade of each discovered tree.
type Orchestrator struct {
	c      Collaborators
	opts   Options
	logger *log.Logger
}

// New creates an orchestrator.
func New(c Collaborators, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Compression == "" {
		opts.Compression = release.Bzip2
	}
	return &Orchestrator{c: c, opts: opts, logger: logger}
}

// Run upgrades the tree at path, or every tree directly under it. Trees
// are processed one after another; a failed tree does not stop the rest.
func (o *Orchestrator) Run(ctx context.Context, path string) ([]Report, error) {
	trees, err := buildtree.Discover(path)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(trees))
	for _, t := range trees {
		if err := ctx.Err(); err != nil {
			reports = append(reports, Report{Tree: t, From: t.Version, State: Failed, FailedAt: Discovered, Err: err})
			continue
		}
		rep := o.upgrade(ctx, t)
		if rep.Err != nil {
			o.logger.Error("upgrade failed", "tree", t.Name(), "step", rep.FailedAt, "err", rep.Err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (o *Orchestrator) upgrade(ctx context.Context, t buildtree.Tree) (rep Report) {
	rep = Report{Tree: t, From: t.Version, State: Discovered}
	fail := func(err error) Report {
		rep.FailedAt = rep.State
		rep.State = Failed
		rep.Err = err
		return rep
	}

	lock, err := buildtree.Acquire(t)
	if err != nil {
		return fail(err)
	}
	defer lock.Release()

	// Without a sidecar the diff is impossible; fail before fetching.
	if _, err := os.Stat(manifest.Path(t.Path)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%s: %w", t.Path, manifest.ErrNoManifest)
		}
		return fail(err)
	}

	rep.State = Resolving
	spec := release.BranchSpecifier(t.Version.Branch())
	snap, err := o.c.Loader.ForSpecifier(ctx, spec, nil)
	if err != nil {
		return fail(err)
	}
	entry, err := o.c.Resolver.Resolve(spec, snap)
	if err != nil {
		return fail(err)
	}
	rep.To = &entry.Version
	if entry.Version.Compare(t.Version) <= 0 {
		o.logger.Info("already up to date", "tree", t.Name(), "latest", entry.Version)
		rep.State = UpToDate
		return rep
	}

	rep.State = Fetching
	o.logger.Info("upgrading", "tree", t.Name(), "from", t.Version, "to", entry.Version)
	archive, err := o.c.Fetcher.Ensure(ctx, entry, o.opts.Compression, false)
	if err != nil {
		return fail(err)
	}

	rep.State = Extracting
	dest := t.Sibling(entry.Version)
	if err := buildtree.CheckWritable(t.Parent()); err != nil {
		return fail(err)
	}
	if o.opts.Force {
		if err := os.RemoveAll(dest); err != nil {
			return fail(fmt.Errorf("removing stale %s: %w", dest, err))
		}
	}
	m, err := o.c.Unpacker.Extract(archive, o.opts.Compression, dest)
	if err != nil {
		return fail(err)
	}
	rep.NewPath = dest
	o.logger.Debug("extracted", "dest", dest, "files", m.Len())

	if !o.opts.NoHooks && o.c.Hooks != nil {
		if err := o.c.Hooks.RunAll(ctx, dest); err != nil {
			return fail(err)
		}
	}

	rep.State = Diffing
	old, err := manifest.Read(t.Path)
	if err != nil {
		return fail(err)
	}
	diff, err := manifest.Diff(old, t.Path)
	if err != nil {
		return fail(err)
	}

	rep.State = BackingUp
	if len(diff.Foreign) > 0 {
		rep.BackupPath = buildtree.BackupPath(t, o.opts.BackupDir)
		n, err := buildtree.Backup(t.Path, diff.Foreign, rep.BackupPath, o.opts.Force)
		rep.BackedUp = n
		if err != nil {
			return fail(err)
		}
		o.logger.Info("backed up local files", "count", n, "to", rep.BackupPath)
	}

	rep.State = AwaitingConfirmation
	ok, err := o.c.Confirm.Confirm(question(t, rep))
	if err != nil {
		return fail(err)
	}
	if !ok {
		o.logger.Info("keeping old tree", "old", t.Path, "new", dest)
		rep.State = Done
		return rep
	}

	rep.State = Swapping
	if err := os.RemoveAll(t.Path); err != nil {
		return fail(fmt.Errorf("removing %s: %w", t.Path, err))
	}
	rep.Removed = true
	rep.State = Done
	return rep
}

func question(t buildtree.Tree, rep Report) string {
	if rep.BackedUp == 0 {
		return fmt.Sprintf("Remove %s? It has no local files.", t.Path)
	}
	return fmt.Sprintf("Remove %s? %d local file(s) were backed up to %s.", t.Path, rep.BackedUp, rep.BackupPath)
}

// FailedReports returns the reports that ended in failure.
func FailedReports(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.State == Failed {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the errors of all failed reports, or returns nil.
func Err(reports []Report) error {
	var errs []error
	for _, r := range FailedReports(reports) {
		errs = append(errs, fmt.Errorf("%s: %w", r.Tree.Name(), r.Err))
	}
	return errors.Join(errs...)
}
