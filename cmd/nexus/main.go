package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/app"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/chat"
	"github.com/matheus3301/nexus/internal/config"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Version is set via ldflags at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	var sessionFlag string

	cmd := &cobra.Command{
		Use:           "nexus",
		Short:         "Terminal chat client",
		Long:          "Opens the chat client for a signed-in session. Sign in first with nexusctl login.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), sessionFlag)
		},
	}
	cmd.Flags().StringVar(&sessionFlag, "session", "", "session name (overrides $NEXUS_SESSION and config default_session)")
	return cmd
}

func run(ctx context.Context, sessionFlag string) error {
	sessionName := session.Resolve(sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return err
	}

	var (
		engine  *chat.Engine
		b       *bus.Bus
		machine *status.Machine
		client  *api.Client
		logger  *zap.Logger
	)
	fxApp := fx.New(
		app.Module(app.Params{SessionName: sessionName, Config: cfg}),
		app.WithZapLogger(),
		fx.Populate(&engine, &b, &machine, &client, &logger),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	ui := tui.NewApp(tui.Options{
		Engine:         engine,
		Bus:            b,
		Machine:        machine,
		Searcher:       client,
		Session:        sessionName,
		SearchDebounce: cfg.SearchDebounce.Duration,
		SearchTimeout:  cfg.HTTPTimeout.Duration,
		Logger:         logger,
	})

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	go func() {
		<-sigCtx.Done()
		ui.Stop()
	}()

	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	return runErr
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
