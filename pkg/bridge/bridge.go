// Package bridge provides the public Go library API for bridge.
//
// bridge runs commands on a remote host from a local project checkout: it
// syncs the project, optionally serialises runs with an advisory lock, runs
// the command over ssh and waits out connection loss (for example a reboot)
// before running a recovery command.
//
// # Basic Usage
//
//	client, err := bridge.New(bridge.Options{Host: "gpu"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Sync the project and run a command.
//	result, err := client.Run(ctx, bridge.RunOptions{Command: "make test", Sync: true})
//	os.Exit(bridge.ExitCode(err))
package bridge

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/engine"
	"github.com/bianoble/bridge/internal/envfile"
	"github.com/bianoble/bridge/internal/lock"
	"github.com/bianoble/bridge/internal/transport"
)

// Options configures a bridge client.
type Options struct {
	// ConfigPath is the project config file. Empty means search WorkDir and
	// its parents for bridge.toml, bridge.yaml or bridge.yml.
	ConfigPath string

	// WorkDir is where the search starts. Empty means the current directory.
	WorkDir string

	// Host selects a host by name. Empty means default_host.
	Host string

	// Override adjusts the resolved host, e.g. from command-line flags.
	Override func(h *Host)

	// NoInherit skips the system and user config layers.
	NoInherit bool

	// CacheDir holds sync manifests. Empty means the default cache directory.
	CacheDir string

	// LockDir holds lock files. Empty means the default lock directory.
	LockDir string

	// Verbose passes -v to rsync.
	Verbose bool

	Logger   *log.Logger // nil uses log.Default()
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Progress io.Writer // lock and reconnect progress dots

	// Runner spawns ssh, rsync and scp. Nil uses the real programs.
	Runner Runner

	// Fs is the project filesystem. Nil uses the OS filesystem.
	Fs afero.Fs
}

// RunOptions configures Run and Shell.
type RunOptions struct {
	Command        string
	Sync           bool
	DryRun         bool
	NoAutoExclude  bool
	DeleteExcluded bool
}

// SyncOptions configures Sync and Plan.
type SyncOptions struct {
	DryRun         bool
	NoAutoExclude  bool
	DeleteExcluded bool
}

// Client is the main entry point for the bridge library.
type Client struct {
	opts         Options
	cfg          *config.Config
	configPath   string
	root         string
	layers       []config.ConfigLayerInfo
	cache        *cache.Cache
	fs           afero.Fs
	runner       transport.Runner
	invocationID string
}

// New loads and validates the configuration. The host is resolved lazily
// so that a client can list hosts even without a default.
func New(opts Options) (*Client, error) {
	path := opts.ConfigPath
	if path == "" {
		dir := opts.WorkDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("getting working directory: %w", err)
			}
			dir = wd
		}
		found, err := config.FindProject(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	lr, err := config.LoadLayered(config.DiscoverOptions{
		ProjectPath: path,
		NoInherit:   opts.NoInherit || config.EnvNoInherit(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	c := &Client{
		opts:         opts,
		cfg:          lr.Config,
		configPath:   path,
		root:         lr.Root,
		layers:       lr.Layers,
		fs:           opts.Fs,
		runner:       opts.Runner,
		invocationID: uuid.NewString(),
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.runner == nil {
		c.runner = &transport.ExecRunner{Logger: c.logger()}
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = cache.DefaultDir()
	}
	if c.cache, err = cache.New(cacheDir); err != nil {
		// Sync still works without a baseline; it just reports every file as new.
		c.logger().Warn("Sync manifests disabled", "err", err)
	}

	return c, nil
}

func (c *Client) logger() *log.Logger {
	if c.opts.Logger != nil {
		return c.opts.Logger
	}
	return log.Default()
}

// Config returns the merged configuration.
func (c *Client) Config() *Config { return c.cfg }

// ConfigPath returns the project config file in use.
func (c *Client) ConfigPath() string { return c.configPath }

// ProjectRoot returns the directory that is synced.
func (c *Client) ProjectRoot() string { return c.root }

// InvocationID identifies this client in lock holder records.
func (c *Client) InvocationID() string { return c.invocationID }

// Host resolves the selected host and applies Options.Override.
func (c *Client) Host() (Host, error) {
	h, err := c.cfg.Resolve(c.opts.Host)
	if err != nil {
		return Host{}, err
	}
	if c.opts.Override != nil {
		c.opts.Override(&h)
		if errs := config.ValidateHost(h.Name, h); len(errs) > 0 {
			return Host{}, &config.ValidationError{Errors: errs}
		}
	}
	return h, nil
}

func (c *Client) ssh() *transport.SSH {
	return &transport.SSH{Runner: c.runner, Stdin: c.opts.Stdin, Stdout: c.opts.Stdout, Stderr: c.opts.Stderr}
}

func (c *Client) syncEngine() *engine.SyncEngine {
	return &engine.SyncEngine{
		Fs:          c.fs,
		ProjectRoot: c.root,
		Excludes:    c.cfg.Sync.Exclude,
		SSH:         c.ssh(),
		Rsync:       &transport.Rsync{Runner: c.runner, Stdout: c.opts.Stdout, Stderr: c.opts.Stderr},
		Cache:       c.cache,
		Logger:      c.logger(),
		Verbose:     c.opts.Verbose,
	}
}

func (c *Client) runEngine(h Host, command string) (*engine.RunEngine, error) {
	env, err := envfile.Environment(c.fs, c.root, h.EnvFiles)
	if err != nil {
		return nil, err
	}
	return &engine.RunEngine{
		Host: h,
		Env:  env,
		SSH:  c.ssh(),
		Locks: &lock.Manager{
			Dir:          c.opts.LockDir,
			Logger:       c.logger(),
			Progress:     c.opts.Progress,
			Command:      command,
			InvocationID: c.invocationID,
		},
		Sync:     c.syncEngine(),
		Logger:   c.logger(),
		Progress: c.opts.Progress,
	}, nil
}

// Run executes a command on the selected host. A non-zero remote status is
// returned as a *RemoteCommandError; use ExitCode to map any error.
func (c *Client) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	h, err := c.Host()
	if err != nil {
		return nil, err
	}
	e, err := c.runEngine(h, opts.Command)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, engineRunOptions(opts))
}

// Shell opens an interactive shell in the host's project directory.
func (c *Client) Shell(ctx context.Context, opts RunOptions) (*RunResult, error) {
	h, err := c.Host()
	if err != nil {
		return nil, err
	}
	e, err := c.runEngine(h, "shell")
	if err != nil {
		return nil, err
	}
	return e.Shell(ctx, engineRunOptions(opts))
}

func engineRunOptions(opts RunOptions) engine.RunOptions {
	return engine.RunOptions{
		Command: opts.Command,
		Sync:    opts.Sync,
		DryRun:  opts.DryRun,
		SyncOptions: engine.SyncOptions{
			NoAutoExclude:  opts.NoAutoExclude,
			DeleteExcluded: opts.DeleteExcluded,
		},
	}
}

// Sync transfers the project to the selected host.
func (c *Client) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	h, err := c.Host()
	if err != nil {
		return nil, err
	}
	return c.syncEngine().Sync(ctx, h, engine.SyncOptions(opts))
}

// Plan computes what Sync would transfer without contacting the host.
func (c *Client) Plan(opts SyncOptions) (*Plan, error) {
	h, err := c.Host()
	if err != nil {
		return nil, err
	}
	return c.syncEngine().Plan(h, engine.SyncOptions(opts))
}

func (c *Client) copyEngine() (*engine.CopyEngine, error) {
	h, err := c.Host()
	if err != nil {
		return nil, err
	}
	return &engine.CopyEngine{
		Host:   h,
		SSH:    c.ssh(),
		SCP:    &transport.SCP{Runner: c.runner, Stdout: c.opts.Stdout, Stderr: c.opts.Stderr},
		Logger: c.logger(),
	}, nil
}

// Upload copies a local file or directory into the host's project directory.
func (c *Client) Upload(ctx context.Context, local, dest string, dryRun bool) (*CopyResult, error) {
	e, err := c.copyEngine()
	if err != nil {
		return nil, err
	}
	return e.Upload(ctx, local, dest, dryRun)
}

// Download copies a file or directory from the host.
func (c *Client) Download(ctx context.Context, file, dest string, dryRun bool) (*CopyResult, error) {
	e, err := c.copyEngine()
	if err != nil {
		return nil, err
	}
	return e.Download(ctx, file, dest, dryRun)
}

// Info describes the configured hosts and config layers.
func (c *Client) Info(version string) (*InfoResult, error) {
	var layers []engine.ConfigLayerStatus
	for _, l := range c.layers {
		layers = append(layers, engine.ConfigLayerStatus{Level: string(l.Level), Path: l.Path, Loaded: l.Loaded})
	}
	return engine.Info(version, c.cfg, c.cache, c.configPath, layers)
}
