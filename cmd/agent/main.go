package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-ninja/internal/adapter/mcpserver"
	"service-ninja/internal/adapter/tool"
	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/infra/logger"
	"service-ninja/internal/infra/tracer"
	"service-ninja/internal/store"
	"service-ninja/internal/usecase/eventbus"
	"service-ninja/internal/usecase/health"
	"service-ninja/internal/usecase/monitor"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "sweep":
		err = runSweep(args)
	case "monitor":
		err = runMonitor(args)
	case "encrypt-key":
		err = runEncryptKey(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'service-ninja --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`service-ninja - service health-check toolkit

USAGE:
    service-ninja [COMMAND] [FLAGS]

COMMANDS:
    serve         Serve the tool set over MCP stdio (default)
    sweep         Run one health sweep and print the result
    monitor       Run the scheduled background sweeps from config
    encrypt-key   Encrypt an API key for storing in the service record

FLAGS:
    -config PATH  Config file (default config.yaml)

Run 'service-ninja COMMAND -h' for command flags.`)
}

// deps holds the wired application components shared by the commands.
type deps struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   domain.Store
	bus     *eventbus.Bus
	checker *health.Checker
	sweeper *health.Sweeper
	cleanup []func()
}

func (d *deps) close() {
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		d.cleanup[i]()
	}
}

func wire(ctx context.Context, configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg, logger: log}
	d.cleanup = append(d.cleanup, func() { closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		d.close()
		return nil, err
	}
	d.cleanup = append(d.cleanup, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	})

	st, err := store.Open(cfg.Store)
	if err != nil {
		d.close()
		return nil, err
	}
	d.store = st
	d.cleanup = append(d.cleanup, func() {
		if err := st.Close(); err != nil {
			log.Warn("store close", "error", err)
		}
	})

	d.bus = eventbus.New(log)
	d.cleanup = append(d.cleanup, d.bus.Close)

	d.checker = health.NewChecker(st, cfg.Probe, log, d.bus)
	d.sweeper = health.NewSweeper(st, d.checker, cfg.Sweep, log, d.bus)
	return d, nil
}

// buildRegistry registers every tool set.
func buildRegistry(d *deps) (*tool.Registry, error) {
	reg := tool.NewRegistry(d.logger)
	for _, set := range [][]domain.Tool{
		tool.NewProjectTools(d.store, d.bus, d.logger).Tools(),
		tool.NewEnvironmentTools(d.store, d.bus, d.logger).Tools(),
		tool.NewServiceTools(d.store, d.bus, d.logger).Tools(),
		tool.NewHealthTools(d.checker, d.sweeper, d.logger).Tools(),
		tool.NewDateTools(d.logger).Tools(),
	} {
		for _, t := range set {
			if err := reg.Register(t); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := wire(ctx, *configPath)
	if err != nil {
		return err
	}
	defer d.close()

	reg, err := buildRegistry(d)
	if err != nil {
		return err
	}

	var mon *monitor.Monitor
	if d.cfg.Monitor.Enabled {
		mon = monitor.New(d.sweeper, d.cfg.Monitor, d.logger)
		if err := mon.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mon.Stop(stopCtx)
		}()
	}

	srv := mcpserver.New(d.cfg.Server, reg, d.logger)
	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file")
	projectID := fs.String("project", "", "project id to sweep")
	envID := fs.String("env", "", "environment id, empty for the whole project")
	timeoutSec := fs.Int("timeout", 0, "per-service timeout in seconds, 0 for the default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectID == "" {
		return fmt.Errorf("-project is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := wire(ctx, *configPath)
	if err != nil {
		return err
	}
	defer d.close()

	var result *domain.SweepResult
	if *envID != "" {
		result = d.sweeper.SweepEnvironment(ctx, *projectID, *envID, *timeoutSec)
	} else {
		result = d.sweeper.SweepProject(ctx, *projectID, *timeoutSec)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if result.ServicesUnhealthy > 0 {
		os.Exit(2)
	}
	return nil
}

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := wire(ctx, *configPath)
	if err != nil {
		return err
	}
	defer d.close()

	if len(d.cfg.Monitor.Jobs) == 0 {
		return fmt.Errorf("no monitor jobs configured")
	}

	mon := monitor.New(d.sweeper, d.cfg.Monitor, d.logger)
	if err := mon.Start(); err != nil {
		return err
	}
	d.logger.Info("monitor running", "jobs", len(d.cfg.Monitor.Jobs))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mon.Stop(stopCtx)
	return nil
}

func runEncryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: service-ninja encrypt-key KEY")
	}

	passphrase := config.Passphrase()
	if passphrase == "" {
		return fmt.Errorf("%s is not set", config.PassphraseEnv)
	}

	encrypted, err := config.EncryptValue(fs.Arg(0), passphrase)
	if err != nil {
		return err
	}
	// Only enc:-prefixed values are treated as encrypted in service records,
	// so print the storable form.
	fmt.Println(config.EncPrefix + encrypted)
	return nil
}
