package cmd

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/launch"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/logging"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/progress"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/update"
)

// runLaunch performs one update cycle and starts the client.
func runLaunch(ctx context.Context, stdout, stderr io.Writer, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	layout := update.NewLayout(cfg.InstallRoot, cfg.ClientBinary)

	interactive := !opts.plain && opts.isTerminal(stderr)

	// The progress bar owns the terminal, so console logging is off while it runs.
	console := stderr
	if interactive {
		console = nil
	}
	closer, err := logging.Init(cfg.Log.Level, cfg.LogFile(layout.Log()), console)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer closer.Close()

	logger := log.WithFields(log.Fields{
		"component": "launcher",
		"version":   opts.build.version,
	})
	if cfg.Path != "" {
		logger.Debugf("using config %s", cfg.Path)
	}

	var sink update.ProgressSink
	var display *progress.Display
	if interactive {
		display = progress.NewDisplay(stderr)
		sink = display
	} else {
		sink = progress.NewLogSink(nil)
	}

	orch := update.NewOrchestrator(update.Options{
		InstallRoot:           cfg.InstallRoot,
		ClientBinary:          cfg.ClientBinary,
		VerifyRuntimeChecksum: cfg.VerifyRuntimeChecksum,
		LockTimeout:           cfg.LockTimeout.Std(),
	}, opts.newResolver(cfg), opts.newDownloader(cfg)).
		WithProgress(sink).
		WithRecorder(opts.newHistory(cfg)).
		OnPhase(func(p update.Phase) {
			logger.WithField("phase", p.String()).Trace("phase entered")
		})
	if cfg.Launch {
		orch = orch.WithLauncher(launch.Detached{})
	}

	result, err := orch.Run(ctx)
	if display != nil {
		display.Stop()
	}
	if err != nil {
		logger.WithError(err).Error("update failed")
		return err
	}

	logger.WithFields(log.Fields{
		"tag":       result.Release.Tag,
		"committed": result.Committed,
		"launched":  result.Launched,
	}).Info("launcher finished")

	if !interactive && !result.Launched {
		fmt.Fprintf(stdout, "MeMate %s is installed in %s\n", result.Release.Descriptor.BuildVersion, layout.Root)
	}
	return nil
}
