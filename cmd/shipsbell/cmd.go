package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"shipsbell/internal/app"
	"shipsbell/internal/audio"
	"shipsbell/internal/config"
	"shipsbell/internal/logbook"
	"shipsbell/internal/shipclock"
	"shipsbell/internal/watch"
	logx "shipsbell/pkg/logx"
)

const (
	defaultConfigPath = "./shipsbell.yaml"
	defaultPidFile    = "./shipsbell.pid"

	// stopWait bounds how long restart waits for the old clock to exit.
	stopWait = 15 * time.Second
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Value: defaultConfigPath,
		Usage: "path to the yaml or json config file",
	},
}

var pidFlag = cli.StringFlag{
	Name:  "pid-file",
	Value: defaultPidFile,
	Usage: "where the running clock records its process id",
}

func Execute(args []string) error {
	a := newApp()
	return a.Run(args)
}

func newApp() *cli.App {
	a := cli.NewApp()
	a.Name = "shipsbell"
	a.HelpName = "shipsbell"
	a.Usage = "strikes ship's bells on the half hour and announces the watch"
	a.UsageText = "shipsbell [--config FILE] <command> [arguments...]"
	a.Version = fmt.Sprintf("%s-%s", version, buildType)
	a.Flags = append(globalFlags, pidFlag)
	a.Action = runClock
	a.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "keep the ship's clock until interrupted",
			Action: runClock,
			Flags:  []cli.Flag{pidFlag},
		},
		{
			Name:   "stop",
			Usage:  "ask a running clock to shut down",
			Action: stopClock,
			Flags:  []cli.Flag{pidFlag},
		},
		{
			Name:   "restart",
			Usage:  "stop the running clock, then run a new one",
			Action: restartClock,
			Flags:  []cli.Flag{pidFlag},
		},
		{
			Name:   "next",
			Usage:  "show the next half-hour boundary and what it will ring",
			Action: nextChime,
		},
		{
			Name:   "watches",
			Usage:  "print the configured watch table",
			Action: listWatches,
		},
		{
			Name:      "ring",
			Usage:     "strike N bells now with the configured player",
			ArgsUsage: "N",
			Action:    ringBells,
		},
		{
			Name:    "log",
			Aliases: []string{"l"},
			Usage:   "show recent logbook entries",
			Action:  showLog,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "n", Value: 20, Usage: "number of entries"},
			},
		},
	}
	return a
}

// configOptional reports whether the default config path is in use, in which
// case a missing file means defaults.
func configOptional(c *cli.Context) bool { return !c.GlobalIsSet("config") }

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	m := config.NewConfigManager(path)
	m.SetOptional(configOptional(c))
	cfg, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// cliLogger logs to stderr at the configured level for the one-shot commands.
func cliLogger(cfg *config.Config) logx.Logger {
	return logx.NewConsole(cfg.Logging.Level)
}

// pidPath prefers the command's --pid-file over the global one.
func pidPath(c *cli.Context) string {
	if !c.IsSet("pid-file") && c.GlobalIsSet("pid-file") {
		return c.GlobalString("pid-file")
	}
	return c.String("pid-file")
}

func runClock(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pidFile := pidPath(c)
	if pidFile != "" {
		if err := ClaimPidFile(pidFile); err != nil {
			var running *AlreadyRunningError
			if errors.As(err, &running) {
				return cli.NewExitError(err.Error(), 1)
			}
			return fmt.Errorf("pid file: %w", err)
		}
		defer func() { _ = RemovePidFile(pidFile) }()
	}

	var opts []app.Option
	if configOptional(c) {
		opts = append(opts, app.WithOptionalConfig())
	}
	a, err := app.NewApp(c.GlobalString("config"), opts...)
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		return cli.NewExitError("clock stopped: "+err.Error(), 1)
	}
	return nil
}

func stopClock(c *cli.Context) error {
	pidFile := pidPath(c)
	pid, err := ReadPidFile(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cli.NewExitError("no running clock (pid file not found)", 1)
		}
		return err
	}
	if !isProcessRunning(pid) {
		_ = RemovePidFile(pidFile)
		return cli.NewExitError(fmt.Sprintf("no clock running as pid %d, removed stale pid file", pid), 1)
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	fmt.Fprintf(c.App.Writer, "sent stop to pid %d\n", pid)
	return nil
}

// restartClock stops the clock named in the pid file, if any, waits for it to
// exit and then runs a new one in the foreground.
func restartClock(c *cli.Context) error {
	pidFile := pidPath(c)
	pid, err := StopPid(pidFile, stopWait)
	switch {
	case err != nil:
		return cli.NewExitError(err.Error(), 1)
	case pid > 0:
		fmt.Fprintf(c.App.Writer, "stopped pid %d\n", pid)
	}
	return runClock(c)
}

func nextChime(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cc, err := app.ClockConfig(cfg)
	if err != nil {
		return err
	}
	ch, err := shipclock.NextChime(time.Now(), cc.Policy, cc.Watches)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if ch.Withheld {
		fmt.Fprintf(w, "%s  silent (%d bells withheld)  %s\n", ch.At.Format("15:04"), ch.Count, ch.Watch)
		return nil
	}
	fmt.Fprintf(w, "%s  %d bells  %s\n", ch.At.Format("15:04"), ch.Count, ch.Watch)
	return nil
}

func listWatches(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	table, err := cfg.WatchTable()
	if err != nil {
		return err
	}
	printWatches(c.App.Writer, table)
	return nil
}

func printWatches(w io.Writer, table watch.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tWATCH")
	for _, r := range table.Ranges() {
		fmt.Fprintf(tw, "%02d:00\t%02d:00\t%s\n", r.Start, r.End, r.Name)
	}
	_ = tw.Flush()
}

func ringBells(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return cli.NewExitError("ring needs a bell count", 2)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > 8 {
		return cli.NewExitError(fmt.Sprintf("bell count must be 1..8, got %q", arg), 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ac, err := app.AudioConfig(cfg)
	if err != nil {
		return err
	}
	player, err := audio.New(ac, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return player.PlayBells(ctx, n)
}

func showLog(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	lc, enabled, err := app.LogbookConfig(cfg)
	if err != nil {
		return err
	}
	if !enabled {
		return cli.NewExitError("logbook is disabled", 1)
	}
	store, err := logbook.Open(lc, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := store.Recent(ctx, c.Int("n"))
	if err != nil {
		return err
	}
	printEntries(c.App.Writer, entries)
	return nil
}

func printEntries(w io.Writer, entries []logbook.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DUE\tKIND\tDETAIL")
	for _, e := range entries {
		var detail string
		switch e.Kind {
		case logbook.KindBell, logbook.KindWithheld:
			detail = fmt.Sprintf("%d bells", e.Chimes)
		case logbook.KindWatch:
			detail = e.Watch
		case logbook.KindOverdue:
			detail = fmt.Sprintf("%s late by %s", e.Event, time.Duration(e.LateMS)*time.Millisecond)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Due.Local().Format("2006-01-02 15:04"), e.Kind, detail)
	}
	_ = tw.Flush()
}
