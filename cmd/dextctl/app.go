package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/conn-castle/dextctl/internal/activation"
	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/config"
	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/orchestrate"
	"github.com/conn-castle/dextctl/internal/service"
	"github.com/conn-castle/dextctl/internal/verify"
)

// Seams replaced by tests.
var (
	loadConfig = config.Load
	newRunner  = func(timeout time.Duration) command.Runner {
		return command.ExecRunner{Timeout: timeout}
	}
	newRegistrar = func(cfg *config.Config, logger logrus.FieldLogger) activation.Registrar {
		return activation.NewCommandRegistrar(cfg.Extension.ActivationArgs, cfg.Extension.DeactivationArgs, logger)
	}
	newServiceSystem = func() service.System { return service.RealSystem{} }
)

// app is the wired component graph for one command invocation.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	runner command.Runner
}

// loadApp reads configuration and builds the logger. Flags override config values.
func loadApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, path, err := loadConfig(config.LoadOptions{Path: opts.configPath})
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	format := cfg.Log.Format
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	logger, err := logging.New(logging.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.WithField("path", path).Debug("loaded config")
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		runner: newRunner(cfg.Timeouts.Command.Duration),
	}, nil
}

func (a *app) locator() *bundle.Locator {
	return bundle.NewLocator(bundle.Options{
		ProjectDir:         a.cfg.Search.ProjectDir,
		BuildDirs:          a.cfg.Search.BuildDirs,
		PackagePrefixes:    a.cfg.Search.PackagePrefixes,
		ManualPath:         a.cfg.Search.ManualPath,
		BundleName:         a.cfg.Extension.BundleName,
		ReceiptName:        a.cfg.Search.ReceiptName,
		ExpectedIdentifier: a.cfg.Extension.BundleIdentifier,
		Logger:             a.logger,
	})
}

func (a *app) activator() *activation.Coordinator {
	registrar := newRegistrar(a.cfg, a.logger)
	return activation.NewCoordinator(registrar, activation.WithLogger(a.logger))
}

func (a *app) services() *service.Coordinator {
	return service.NewCoordinator(service.Options{
		Label:             a.cfg.Service.Label,
		DaemonName:        a.cfg.Service.DaemonName,
		PlistPath:         a.cfg.Service.PlistPath,
		Domain:            a.cfg.Service.Domain,
		SupervisorFormula: a.cfg.Service.SupervisorFormula,
		CommandTimeout:    a.cfg.Timeouts.Command.Duration,
		Runner:            a.runner,
		System:            newServiceSystem(),
		Logger:            a.logger,
	})
}

func (a *app) verifier(reconciler verify.Reconciler) *verify.Verifier {
	return verify.NewVerifier(verify.Options{
		Runner:     a.runner,
		Reconciler: reconciler,
		Timeout:    a.cfg.Timeouts.Verify.Duration,
		Logger:     a.logger,
	})
}

func (a *app) orchestrator(observer orchestrate.Observer) *orchestrate.Orchestrator {
	svc := a.services()
	return orchestrate.New(orchestrate.Dependencies{
		Locator:   a.locator(),
		Activator: a.activator(),
		Service:   svc,
		Verifier:  a.verifier(svc),
	}, orchestrate.Options{
		ActivationTimeout: a.cfg.Timeouts.Activation.Duration,
		StateDir:          a.cfg.State.Dir,
		Observer:          observer,
		Logger:            a.logger,
	})
}
