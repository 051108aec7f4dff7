package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/gyara/changeup/internal/api"
	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/daemon"
	"github.com/gyara/changeup/internal/keymap"
	"github.com/gyara/changeup/internal/logger"
	"github.com/gyara/changeup/internal/monitor"
	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/station"
	"github.com/gyara/changeup/internal/sway"
	"github.com/gyara/changeup/internal/xprop"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(viper.GetViper(), settingsFile)
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		settings.Watch = false
	}

	logger.Init(settings.LogLevel, settings.PrettyLogs)
	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("rules", settings.RulesPath).
		Str("bus_name", settings.BusName).
		Msg("Starting changeupd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wm, err := sway.DialEnv(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to window manager: %w", err)
	}
	defer wm.Close()
	if v, err := wm.GetVersion(ctx); err == nil {
		log.Info().Str("wm_version", v.HumanReadable).Str("socket", wm.SocketPath()).Msg("Connected to window manager")
	}

	st := state.New()
	keys := keymap.NewManager(wm, settings.ClientCommand)
	svc := station.NewService(st, keys, wm, version)

	if _, err := svc.ReloadConfig(settings.RulesPath); err != nil {
		return fmt.Errorf("initial config load: %w", err)
	}

	var monOpts []monitor.Option
	if settings.X11Fallback {
		res, err := xprop.NewResolver()
		if err != nil {
			log.Warn().Err(err).Msg("X11 class lookup disabled")
		} else {
			defer res.Close()
			monOpts = append(monOpts, monitor.WithClassResolver(res))
		}
	}
	mon := monitor.New(wm, st, monOpts...)

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()
	srv := station.NewServer(bus, svc, settings.BusName)

	tasks := []daemon.Task{
		{Name: "monitor", Run: mon.Run},
		{Name: "dbus", Run: srv.Serve},
	}

	var requests <-chan string
	if settings.Watch {
		w, err := config.NewWatcher(settings.RulesPath)
		if err != nil {
			log.Warn().Err(err).Msg("Rule file watching disabled")
		} else {
			defer w.Close()
			requests = w.Requests()
			tasks = append(tasks, daemon.Task{Name: "watcher", Run: background(w.Run)})
		}
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	tasks = append(tasks, daemon.Task{
		Name: "reloader",
		Run:  reloader(svc, settings.RulesPath, requests, hup),
	})

	if settings.HTTPPort > 0 {
		httpSrv := api.NewServer(svc, st)
		port := settings.HTTPPort
		tasks = append(tasks, daemon.Task{
			Name: "api",
			Run: func(ctx context.Context) error {
				return httpSrv.Run(ctx, port)
			},
		})
	}

	err = daemon.Race(ctx, tasks...)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info().Msg("Shutting down")
		return nil
	}
	log.Error().Err(err).Msg("Daemon stopped")
	return err
}

// background turns an auxiliary task into one that only ends with ctx, so
// its failure is logged instead of stopping the daemon.
func background(run func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.WithComponent("main").Warn().Err(err).Msg("Background task stopped")
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

// reloader reloads the rule file on SIGHUP and on watcher requests. A
// failed reload keeps the previous rules.
func reloader(svc *station.Service, path string, requests <-chan string, hup <-chan os.Signal) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		log := logger.WithComponent("main")
		for {
			var reason string
			select {
			case <-ctx.Done():
				return ctx.Err()
			case sig := <-hup:
				reason = sig.String()
			case reason = <-requests:
			}
			log.Info().Str("reason", reason).Str("path", path).Msg("Reloading rule file")
			if _, err := svc.ReloadConfig(path); err != nil {
				log.Error().Err(err).Msg("Reload failed, keeping previous rules")
			}
		}
	}
}
