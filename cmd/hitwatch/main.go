package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/nhle/hitwatch/internal/app"
	"github.com/nhle/hitwatch/internal/credential"
	"github.com/nhle/hitwatch/internal/display"
	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/notify"
	"github.com/nhle/hitwatch/internal/source/mturk"
	"github.com/nhle/hitwatch/internal/store"
	appsync "github.com/nhle/hitwatch/internal/sync"
	"github.com/nhle/hitwatch/internal/ui/setup"
)

type options struct {
	configPath  string
	headless    bool
	test        bool
	clear       bool
	setCookie   bool
	clearCookie bool
	initConfig  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to config.yaml")
	flag.BoolVar(&opts.headless, "headless", false, "run without the terminal panel, logging to stderr")
	flag.BoolVar(&opts.test, "test", false, "send one test notification and exit")
	flag.BoolVar(&opts.clear, "clear", false, "clear the seen set and exit")
	flag.BoolVar(&opts.setCookie, "set-cookie", false, "read the session cookie from stdin into the OS keyring and exit")
	flag.BoolVar(&opts.clearCookie, "clear-cookie", false, "remove the session cookie from the OS keyring and exit")
	flag.BoolVar(&opts.initConfig, "init-config", false, "create or edit the config file interactively and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "hitwatch:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	vault := credential.System()
	if opts.initConfig {
		return initConfig(opts.configPath, vault)
	}
	if opts.setCookie {
		return storeCookie(vault, os.Stdin)
	}
	if opts.clearCookie {
		return clearCookie(vault)
	}

	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", opts.configPath, err)
	}

	tui := !opts.headless && !opts.test && !opts.clear
	logger, closeLog, err := setupLogger(cfg.Log, tui)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	seen, err := store.LoadSeenSet(ctx, st, cfg.StorageKey)
	if err != nil {
		// The set is empty but usable; every current assignment notifies once.
		logger.Warn("seen set unreadable, starting empty", "key", cfg.StorageKey, "error", err)
	}

	cookie, err := vault.SessionCookie(cfg.Source.Cookie)
	if err != nil {
		logger.Warn("reading session cookie from keyring", "error", err)
	}
	if cookie == "" {
		logger.Warn("no session cookie configured; the queue will likely ask for sign-in")
	}

	ext, client, err := mturk.NewExtractor(cfg.Source, cookie, logger)
	if err != nil {
		return err
	}

	notifier := notify.New(cfg.WebhookURL, cfg.WebhookTimeout(),
		notify.WithResolver(client),
		notify.WithFallbackWorkerID(cfg.WorkerID),
		notify.WithLogger(logger),
	)

	fan := display.NewFanout()
	if cfg.Telegram.Enabled() {
		tg, err := display.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return err
		}
		go tg.Run(ctx)
		fan.Add(tg)
	}

	pipeline := appsync.NewPipeline(appsync.Config{
		Extractor:      ext,
		Seen:           seen,
		Notifier:       notifier,
		Recorder:       st,
		Display:        fan,
		AcceptedStates: cfg.AcceptedStates,
		Logger:         logger,
	})

	switch {
	case opts.test:
		res := pipeline.SendTest(ctx)
		if !res.OK() {
			return res.Err
		}
		fmt.Printf("test notification delivered (HTTP %d)\n", res.StatusCode)
		return nil
	case opts.clear:
		n := seen.Len()
		if err := pipeline.ClearSeen(ctx); err != nil {
			return err
		}
		fmt.Printf("cleared %d seen assignments\n", n)
		return nil
	}

	sched := appsync.NewScheduler(pipeline, cfg.PollInterval(), logger)
	watchPauseSignal(ctx, sched.TogglePause)

	if !tui {
		fan.Add(display.NewLog(logger))
		return sched.Run(ctx)
	}
	return runTUI(ctx, sched, st, fan, summary(cfg, opts.configPath))
}

// runTUI runs the scheduler behind the Bubble Tea panel until the user
// quits or ctx is cancelled.
func runTUI(ctx context.Context, sched *appsync.Scheduler, history app.DeliveryLog, fan *display.Fanout, summary []string) error {
	p := tea.NewProgram(
		app.New(sched, history, summary),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	fan.Add(p)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sched.Run(runCtx) }()

	_, err := p.Run()
	cancel()
	<-done

	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// setupLogger builds the JSON slog logger. The panel owns the terminal, so
// in TUI mode logs go to the configured file.
func setupLogger(cfg model.LogConfig, tui bool) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if tui && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	} else if tui {
		w = io.Discard
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

// initConfig runs the setup form and writes the result. An existing file
// seeds the form. Without a terminal on stdin a starter file is written.
func initConfig(path string, vault *credential.Vault) error {
	cfg, err := model.LoadConfigFile(path)
	if err != nil {
		return err
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		if cfg.WebhookURL == "" {
			cfg.WebhookURL = "https://example.com/hitwatch-webhook"
		}
		if err := model.SaveConfig(path, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s; set webhook_url before starting\n", path)
		return nil
	}

	answers := setup.FromConfig(cfg)
	if err := setup.NewForm(answers).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("setup cancelled")
			return nil
		}
		return fmt.Errorf("running setup form: %w", err)
	}
	if err := answers.Apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cookie := strings.TrimSpace(answers.Cookie); cookie != "" {
		if err := vault.Set(credential.SessionCookieKey, cookie); err != nil {
			return err
		}
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func storeCookie(vault *credential.Vault, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading cookie from stdin: %w", err)
	}
	cookie := strings.TrimSpace(string(data))
	if cookie == "" {
		return errors.New("no cookie on stdin")
	}
	if err := vault.Set(credential.SessionCookieKey, cookie); err != nil {
		return err
	}
	fmt.Println("session cookie saved to keyring")
	return nil
}

func clearCookie(vault *credential.Vault) error {
	if err := vault.Delete(credential.SessionCookieKey); err != nil {
		return err
	}
	fmt.Println("session cookie removed from keyring")
	return nil
}

func summary(cfg *model.AppConfig, path string) []string {
	lines := []string{
		"config:   " + path,
		"webhook:  " + cfg.WebhookURL,
		fmt.Sprintf("interval: %s", cfg.PollInterval()),
		fmt.Sprintf("source:   %s %s", cfg.Source.Mode, cfg.Source.BaseURL),
		"states:   " + strings.Join(cfg.AcceptedStates, ", "),
		fmt.Sprintf("store:    %s", cfg.Store.Driver),
	}
	if cfg.Telegram.Enabled() {
		lines = append(lines, fmt.Sprintf("telegram: chat %d", cfg.Telegram.ChatID))
	}
	return lines
}
