package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bianoble/bridge/internal/archive"
	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/exclude"
	"github.com/bianoble/bridge/internal/shell"
	"github.com/bianoble/bridge/internal/transport"
)

// Strategy transfers a planned tree to a host.
type Strategy interface {
	Method() config.SyncMethod
	Transfer(ctx context.Context, e *SyncEngine, host config.Host, plan *Plan) error
}

// Registry maps sync methods to Strategy implementations.
type Registry struct {
	strategies map[config.SyncMethod]Strategy
}

// NewRegistry creates a new empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[config.SyncMethod]Strategy)}
}

// DefaultRegistry returns a registry with the tar and rsync strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TarStrategy{})
	r.Register(RsyncStrategy{})
	return r
}

// Register adds a strategy under its method name.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Method()] = s
}

// Get returns the strategy for the given method.
func (r *Registry) Get(method config.SyncMethod) (Strategy, error) {
	s, ok := r.strategies[method]
	if !ok {
		return nil, fmt.Errorf("unknown sync method '%s'; supported methods: %s", method, r.supported())
	}
	return s, nil
}

func (r *Registry) supported() string {
	names := make([]string, 0, len(r.strategies))
	for m := range r.strategies {
		names = append(names, string(m))
	}
	if len(names) == 0 {
		return "(none registered)"
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}

// SyncEngine orchestrates the sync operation.
type SyncEngine struct {
	Fs          afero.Fs
	ProjectRoot string
	Excludes    []string // configured patterns; AutoExcludes are added per call
	SSH         *transport.SSH
	Rsync       *transport.Rsync
	Cache       *cache.Cache // nil disables the change report baseline
	Registry    *Registry    // nil means DefaultRegistry()
	Logger      *log.Logger  // nil uses log.Default()
	Verbose     bool
}

// SyncOptions configures a sync operation.
type SyncOptions struct {
	DryRun         bool
	NoAutoExclude  bool
	DeleteExcluded bool
}

func (e *SyncEngine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e *SyncEngine) registry() *Registry {
	if e.Registry != nil {
		return e.Registry
	}
	return DefaultRegistry()
}

// Plan computes what a sync to host would transfer without spawning any
// process.
func (e *SyncEngine) Plan(host config.Host, opts SyncOptions) (*Plan, error) {
	plan, _, err := e.plan(host, opts)
	return plan, err
}

func (e *SyncEngine) plan(host config.Host, opts SyncOptions) (*Plan, *cache.Manifest, error) {
	m, err := exclude.New(e.Excludes, !opts.NoAutoExclude)
	if err != nil {
		return nil, nil, err
	}

	var prev *cache.Manifest
	if e.Cache != nil {
		mf, found, err := e.Cache.Load(host.Hostname, host.Path)
		if err != nil {
			e.logger().Warn("Ignoring unreadable sync manifest", "err", err)
		} else if found {
			prev = mf
		}
	}

	plan, skipped, err := buildPlan(e.Fs, e.ProjectRoot, host, m, prev, opts.DeleteExcluded)
	if err != nil {
		return nil, nil, err
	}
	for _, path := range skipped {
		e.logger().Warn("Skipping special file", "path", path)
	}
	return plan, prev, nil
}

// Sync transfers the project tree to host with the host's sync method. In
// dry-run mode it only returns the plan: no process is spawned and the
// manifest is left untouched.
func (e *SyncEngine) Sync(ctx context.Context, host config.Host, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	logger := e.logger()

	strategy, err := e.registry().Get(host.SyncMethod)
	if err != nil {
		return nil, err
	}

	plan, prev, err := e.plan(host, opts)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{Plan: plan, DryRun: opts.DryRun}

	if opts.DeleteExcluded && host.SyncMethod != config.SyncRsync {
		msg := fmt.Sprintf("--delete-excluded has no effect with sync_method = %q", host.SyncMethod)
		result.Warnings = append(result.Warnings, msg)
		logger.Warn(msg)
	}

	logger.Debug("Sync plan", "host", host.Hostname, "dest", host.Path, "method", host.SyncMethod,
		"files", len(plan.Hashes), "new", len(plan.New), "modified", len(plan.Modified), "removed", len(plan.Removed))

	if opts.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := strategy.Transfer(ctx, e, host, plan); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var tErr *TransferError
		if !errors.As(err, &tErr) {
			err = &TransferError{Host: host.Hostname, Method: string(host.SyncMethod), Err: err}
		}
		return result, err
	}

	if e.Cache != nil {
		m := &cache.Manifest{
			Host:     host.Hostname,
			Dest:     host.Path,
			Method:   string(host.SyncMethod),
			SyncedAt: time.Now().UTC(),
			Files:    manifestFiles(plan, prev),
		}
		if err := e.Cache.Save(m); err != nil {
			logger.Warn("Could not save sync manifest", "err", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// TarStrategy streams a full gzip tar of the plan into `tar -xzf -` on the
// host. It never deletes remote files.
type TarStrategy struct{}

func (TarStrategy) Method() config.SyncMethod { return config.SyncTar }

func (TarStrategy) Transfer(ctx context.Context, e *SyncEngine, host config.Host, plan *Plan) error {
	adapter := shell.For(host.Shell)
	fail := func(status int, err error) error {
		return &TransferError{Host: host.Hostname, Method: string(config.SyncTar), Status: status, Err: err}
	}

	code, err := e.SSH.Run(ctx, host.Hostname, adapter.Mkdir(host.Path), transport.RunOptions{})
	if err != nil {
		return fail(code, fmt.Errorf("creating remote directory %s: %w", host.Path, err))
	}
	if code != 0 {
		return fail(code, fmt.Errorf("creating remote directory %s", host.Path))
	}

	pr, pw := io.Pipe()
	written := make(chan error, 1)
	go func() {
		_, werr := archive.WriteTarGz(pw, e.Fs, plan.Source, plan.Entries)
		pw.CloseWithError(werr)
		written <- werr
	}()

	code, err = e.SSH.Stream(ctx, host.Hostname, adapter.Adapt(host.Path, "tar -xzf -"), pr)
	// Unblock the writer if ssh stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	werr := <-written

	switch {
	case err != nil:
		return fail(code, err)
	case code != 0:
		return fail(code, errors.New("remote extract failed"))
	case werr != nil:
		return fail(0, werr)
	}
	return nil
}

// RsyncStrategy mirrors the project with rsync, deleting remote files that
// no longer exist locally.
type RsyncStrategy struct{}

func (RsyncStrategy) Method() config.SyncMethod { return config.SyncRsync }

func (RsyncStrategy) Transfer(ctx context.Context, e *SyncEngine, host config.Host, plan *Plan) error {
	fail := func(status int, err error) error {
		return &TransferError{Host: host.Hostname, Method: string(config.SyncRsync), Status: status, Err: err}
	}
	if err := e.Rsync.Available(); err != nil {
		return fail(0, err)
	}

	code, err := e.Rsync.Run(ctx, RsyncOptionsFor(host, plan, e.Verbose))
	if err != nil {
		return fail(code, err)
	}
	if code != 0 {
		return fail(code, errors.New("rsync reported an error"))
	}
	return nil
}

// RsyncOptionsFor builds the rsync invocation for a plan.
func RsyncOptionsFor(host config.Host, plan *Plan, verbose bool) transport.RsyncOptions {
	return transport.RsyncOptions{
		Source:         plan.Source,
		Host:           host.Hostname,
		Dest:           host.Path,
		Excludes:       plan.Patterns,
		DeleteExcluded: plan.DeleteExcluded,
		NoPerms:        host.Shell.Windows(),
		Verbose:        verbose,
	}
}
