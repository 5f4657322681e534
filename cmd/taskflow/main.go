package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/taskflow/internal/adapters/notify/redisnotify"
	"github.com/hylla/taskflow/internal/adapters/server/common"
	"github.com/hylla/taskflow/internal/adapters/storage/sqlite"
	"github.com/hylla/taskflow/internal/app"
	"github.com/hylla/taskflow/internal/config"
	"github.com/hylla/taskflow/internal/platform"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// envUser supplies the acting user id when --as is not given.
const envUser = "TASKFLOW_USER"

// errActorRequired is returned by commands that act on behalf of a user.
var errActorRequired = errors.New("acting user is required (--as or " + envUser + ")")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(newCLI(os.Stdout, os.Stderr, os.LookupEnv))
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree with explicit args and writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) error {
	root := newRootCommand(newCLI(stdout, stderr, lookupEnv))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	return root.ExecuteContext(ctx)
}

// cli carries global flags and process wiring shared by every command.
type cli struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)

	configPath string
	dbPath     string
	appName    string
	devMode    bool
	actorID    string
}

func newCLI(stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) *cli {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	return &cli{stdout: stdout, stderr: stderr, lookupEnv: lookupEnv}
}

// env returns the trimmed value of one environment variable.
func (c *cli) env(key string) string {
	v, _ := c.lookupEnv(key)
	return strings.TrimSpace(v)
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:     "taskflow",
		Short:   "Kanban board service with dense drag-and-drop ordering",
		Version: version,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML (default from "+config.EnvConfigPath+" or platform paths)")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.appName, "app", platform.DefaultAppName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", version == "dev", "use dev mode paths (<app>-dev)")
	flags.StringVar(&c.actorID, "as", "", "user id to act as (default from "+envUser+")")

	root.AddCommand(
		c.pathsCommand(),
		c.serveCommand(),
		c.watchCommand(),
		c.userCommand(),
		c.projectCommand(),
		c.tagCommand(),
		c.taskCommand(),
		c.boardCommand(),
		c.activityCommand(),
	)
	return root
}

// resolved holds the configuration chosen for one invocation.
type resolved struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
}

// resolve applies flag, environment, file and default precedence.
func (c *cli) resolve() (resolved, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return resolved{}, err
	}

	configPath := strings.TrimSpace(c.configPath)
	if configPath == "" {
		if envPath := c.env(config.EnvConfigPath); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return resolved{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = cfg.ApplyEnv(c.lookupEnv)
	if dbPath := strings.TrimSpace(c.dbPath); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return resolved{}, fmt.Errorf("validate config: %w", err)
	}
	return resolved{paths: paths, configPath: configPath, cfg: cfg}, nil
}

// runtimeDeps is the opened storage, service and optional notifier for one command.
type runtimeDeps struct {
	resolved
	logger    *runtimeLogger
	repo      *sqlite.Repository
	redis     *redis.Client
	publisher *redisnotify.Publisher
	svc       *app.Service
	api       *common.AppServiceAdapter
}

// open resolves config, opens the database and builds the service.
func (c *cli) open(ctx context.Context, command string) (*runtimeDeps, error) {
	res, err := c.resolve()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(c.stderr, c.appName, res.cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	deps := &runtimeDeps{resolved: res, logger: logger}

	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", res.configPath, "data_dir", res.paths.DataDir, "db_path", res.cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Debug("opening sqlite repository", "db_path", res.cfg.Database.Path)
	repo, err := sqlite.Open(res.cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", res.cfg.Database.Path, "err", err)
		_ = deps.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	deps.repo = repo

	serviceCfg := app.ServiceConfig{Logger: logger.Component("service")}
	if addr := strings.TrimSpace(res.cfg.Notify.RedisAddr); addr != "" {
		deps.redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: res.cfg.Notify.RedisPassword,
			DB:       res.cfg.Notify.RedisDB,
		})
		if err := deps.redis.Ping(ctx).Err(); err != nil {
			// Notifications are best-effort; the board keeps working without them.
			logger.Warn("redis unreachable, board events may be dropped", "addr", addr, "err", err)
		}
		deps.publisher = redisnotify.NewPublisher(deps.redis, res.cfg.Notify.Channel)
		serviceCfg.Publisher = deps.publisher
	}

	deps.svc = app.NewService(repo, uuid.NewString, nil, serviceCfg)
	deps.api = common.NewAppServiceAdapter(deps.svc)
	return deps, nil
}

// Close releases the redis client, the database and the log file in that order.
func (d *runtimeDeps) Close() error {
	var errs []error
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.repo != nil {
		if err := d.repo.Close(); err != nil {
			d.logger.Warn("sqlite close failed", "db_path", d.cfg.Database.Path, "err", err)
			errs = append(errs, err)
		}
	}
	errs = append(errs, d.logger.Close())
	return errors.Join(errs...)
}

// actorContext attaches the acting user to ctx.
func (c *cli) actorContext(ctx context.Context) (context.Context, error) {
	actorID := strings.TrimSpace(c.actorID)
	if actorID == "" {
		actorID = c.env(envUser)
	}
	if actorID == "" {
		return nil, errActorRequired
	}
	return app.WithActor(ctx, app.Actor{UserID: actorID}), nil
}

// withRuntime opens dependencies, runs fn and closes them, logging the command flow.
func (c *cli) withRuntime(cmd *cobra.Command, name string, fn func(context.Context, *runtimeDeps) error) (err error) {
	deps, err := c.open(cmd.Context(), name)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close runtime: %w", closeErr)
		}
	}()

	deps.logger.Debug("command flow start", "command", name)
	if err := fn(cmd.Context(), deps); err != nil {
		deps.logger.Error("command flow failed", "command", name, "err", err)
		return err
	}
	deps.logger.Debug("command flow complete", "command", name)
	return nil
}

// withActor is withRuntime for commands that require an acting user.
func (c *cli) withActor(cmd *cobra.Command, name string, fn func(context.Context, *runtimeDeps) error) error {
	ctx, err := c.actorContext(cmd.Context())
	if err != nil {
		return err
	}
	cmd.SetContext(ctx)
	return c.withRuntime(cmd, name, fn)
}

func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.resolve()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", res.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", res.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", res.cfg.Database.Path)
			_, _ = fmt.Fprintf(out, "log: %s\n", res.paths.LogPath)
			return nil
		},
	}
}
