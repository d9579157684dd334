package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"xetl/internal/cmdlog"
	"xetl/internal/config"
	"xetl/internal/jobs"
	"xetl/internal/logging"
	"xetl/internal/metrics"
	"xetl/internal/notify"
	"xetl/internal/schedule"
	"xetl/internal/server"
	"xetl/internal/storage"
	"xetl/internal/store/runlog"
	"xetl/internal/theme"
	"xetl/internal/xclient"
)

const defaultConfigPath = "./xetl.yaml"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "trigger":
		cmdTrigger()
	case "serve":
		cmdServe()
	case "history":
		cmdHistory()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: xetl <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./xetl.yaml")
	fmt.Println("  run         Export once, without retries")
	fmt.Println("  trigger     Export under the retry policy")
	fmt.Println("  serve       Serve the manual trigger API")
	fmt.Println("  history     Show recorded attempts")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// loadConfig falls back to defaults plus environment when path is missing,
// so the stock export runs with only X_BEARER_TOKEN set.
func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
		err = cfg.Validate()
	}
	if err != nil {
		fail(err)
	}
	logging.Setup(os.Stdout, cfg.Logging.Level)
	return cfg
}

func exportSpec(cfg config.Config) jobs.ExportSpec {
	return jobs.ExportSpec{
		AccountID:      cfg.Account.ID,
		Username:       cfg.Account.Username,
		Handle:         cfg.Account.Handle,
		MaxResults:     cfg.Fetch.MaxResults,
		TweetFields:    cfg.Fetch.TweetFields,
		Exclude:        cfg.Fetch.Exclude,
		DestinationURI: cfg.Output.URI,
	}
}

func newTask(cfg config.Config) *jobs.ExportTask {
	if err := cfg.RequireToken(); err != nil {
		fail(err)
	}
	client := xclient.NewHTTPClient(cfg.Credentials.BearerToken,
		xclient.WithBaseURL(cfg.Fetch.BaseURL),
		xclient.WithTimeout(cfg.Fetch.Timeout),
	)
	store := storage.NewRouter(storage.Options{
		S3Region:           cfg.Output.S3Region,
		S3Endpoint:         cfg.Output.S3Endpoint,
		GCSEndpoint:        cfg.Output.GCSEndpoint,
		GCSCredentialsFile: cfg.Output.GCSCredentialsFile,
	})
	return jobs.NewExportTask(client, store, exportSpec(cfg))
}

// newRunner wires the ledger and publisher the config enables. The returned
// func releases them.
func newRunner(cfg config.Config) (*schedule.Runner, *runlog.DB, func()) {
	policy := schedule.Policy{Retries: cfg.Retry.Retries, Delay: cfg.Retry.Delay}
	var opts []schedule.Option
	var closers []func() error

	var db *runlog.DB
	if cfg.Storage.DBPath != "" {
		var err error
		db, err = runlog.Open(cfg.Storage.DBPath)
		if err != nil {
			fail(fmt.Errorf("open ledger: %w", err))
		}
		opts = append(opts, schedule.WithLedger(db))
		closers = append(closers, db.Close)
	}
	if cfg.Notify.AMQPURL != "" {
		pub, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Queue)
		if err != nil {
			// the export does not depend on the queue
			logging.Warn("notify_disabled", map[string]any{"error": err.Error()})
		} else {
			opts = append(opts, schedule.WithPublisher(pub))
			closers = append(closers, pub.Close)
		}
	}
	return schedule.NewRunner(policy, opts...), db, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

func cmdInit() {
	out := flag.NewFlagSet("init", flag.ExitOnError)
	path := out.String("path", defaultConfigPath, "path to write config")
	_ = out.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		fail(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	fmt.Println("Set X_BEARER_TOKEN before running an export.")
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	task := newTask(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var res jobs.Result
	err := cmdlog.Run("run", func() error {
		var err error
		res, err = task.Run(ctx)
		return err
	})
	if err != nil {
		stop()
		os.Exit(1)
	}
	fmt.Printf("wrote %d records to %s\n", res.Records, res.URI)
}

func cmdTrigger() {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	task := newTask(cfg)
	runner, _, closeAll := newRunner(cfg)
	defer closeAll()
	metrics.StartServer(cfg.Server.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var out schedule.Outcome
	err := cmdlog.Run("trigger", func() error {
		var err error
		out, err = runner.Run(ctx, "cli", task)
		return err
	})
	if err != nil {
		closeAll()
		stop()
		os.Exit(1)
	}
	fmt.Printf("run %s wrote %d records to %s after %d attempt(s)\n", out.RunID, out.Result.Records, out.Result.URI, out.Attempts)
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	task := newTask(cfg)
	runner, db, closeAll := newRunner(cfg)
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var lister server.AttemptLister
	if db != nil {
		lister = db
	}
	srv := server.New(ctx, runner, task, lister, cfg.Server.TriggerInterval)

	if err := serveUntilDone(ctx, srv, cfg.Server.Addr); err != nil {
		closeAll()
		stop()
		fail(err)
	}
}

type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// serveUntilDone returns the listener error if the server stops on its own,
// or shuts it down and returns nil once ctx is done.
func serveUntilDone(ctx context.Context, srv httpServer, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(addr) }()
	logging.Info("serve_started", map[string]any{"addr": addr})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("serve_shutdown", map[string]any{"error": err.Error()})
	}
	return nil
}

func cmdHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	limit := fs.Int("limit", 20, "attempts to show")
	last := fs.Bool("last", false, "show only the most recent run")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	if cfg.Storage.DBPath == "" {
		fail(errors.New("storage.dbPath is empty; no ledger to read"))
	}
	db, err := runlog.Open(cfg.Storage.DBPath)
	if err != nil {
		fail(err)
	}
	defer db.Close()
	var attempts []runlog.Attempt
	if *last {
		attempts, err = db.LastRun(context.Background())
	} else {
		attempts, err = db.ListAttempts(context.Background(), *limit)
	}
	if err != nil {
		fail(err)
	}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, []string{
			a.RunID,
			strconv.Itoa(a.Number),
			a.Trigger,
			a.StartedAt.Local().Format(time.DateTime),
			a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond).String(),
			a.Status,
			a.ErrorKind,
			strconv.Itoa(a.Records),
			a.Error,
		})
	}
	theme.Table(os.Stdout, []string{"RUN", "ATTEMPT", "TRIGGER", "STARTED", "TOOK", "STATUS", "KIND", "RECORDS", "ERROR"}, rows)
}
