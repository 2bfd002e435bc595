package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"halfkbd/internal/chord"
	"halfkbd/internal/config"
	"halfkbd/internal/health"
	"halfkbd/internal/journal"
	"halfkbd/internal/keymap"
	"halfkbd/internal/keystroke"
	"halfkbd/internal/logging"
	"halfkbd/internal/machine"
	"halfkbd/internal/metrics"
	"halfkbd/internal/sink"
)

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	keymapPath := fs.String("keymap", "", "Keymap file (overrides the configuration)")
	output := fs.String("output", "text", "Stroke output on stdout: text, json or none")
	logLevel := fs.String("log-level", "", "Log level (overrides the configuration)")
	noSuppress := fs.Bool("no-suppress", false, "Let keymap keys through to other applications")
	record := fs.String("record", "", "Write a replayable trace of every key transition to this file on exit")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*configPath)
	if *keymapPath != "" {
		cfg.Keymap.Path = *keymapPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *noSuppress {
		cfg.Capture.Suppress = false
	}
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fatalf("%v", err)
	}

	logger := setupLogging(cfg)
	defer logger.Close()
	log := logger.Logger

	km, err := keymap.Load(cfg.Keymap.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("keymap file not found, using the built-in keymap", "path", cfg.Keymap.Path)
		km = keymap.Default()
	case err != nil:
		fatalf("%v", err)
	}

	var sinks []chord.Sink
	switch *output {
	case "text":
		sinks = append(sinks, sink.NewText(os.Stdout))
	case "json":
		sinks = append(sinks, sink.NewJSONLines(os.Stdout))
	case "none":
		sinks = append(sinks, sink.Log(log))
	default:
		fatalf("unknown output %q (valid: text, json, none)", *output)
	}

	checker := health.NewChecker()

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			fatalf("%v", err)
		}
		defer j.Close()
		checker.RegisterFunc("journal", false, health.PingCheck(j.Ping))

		sessionID, err := j.BeginSession(time.Now(), km.Name)
		if err != nil {
			fatalf("%v", err)
		}
		js := sink.NewJournalSink(j, sessionID, cfg.Journal.Buffer, log.With("component", "journal"))
		defer func() {
			js.Close()
			written, dropped, failed := js.Stats()
			log.Info("journal closed", "session", sessionID, "written", written, "dropped", dropped, "failed", failed)
			if err := j.EndSession(sessionID, time.Now()); err != nil {
				log.Error("end journal session", "error", err)
			}
		}()
		checker.RegisterFunc("journal_writer", false, health.LossCheck(js.Stats))
		registerJournalMetrics(metrics.Default(), js)
		sinks = append(sinks, js)
	}

	if cfg.DBus.Enabled {
		d, err := sink.ConnectDBus(cfg.DBus.BusName, cfg.DBus.ObjectPath)
		if err != nil {
			log.Warn("D-Bus sink disabled", "error", err)
		} else {
			defer d.Close()
			sinks = append(sinks, d)
		}
	}

	opts := []machine.Option{machine.WithLogger(log)}

	if cfg.Metrics.Enabled {
		opts = append(opts, machine.WithMetrics(metrics.NewChordMetrics(metrics.Default())))
		srv := serveMetrics(cfg.Metrics.Listen, checker, log)
		defer srv.Close()
	}

	var trace *keystroke.TraceRecorder
	if *record != "" {
		opts = append(opts, machine.WithCaptureHook(func(h keystroke.Handler) keystroke.Handler {
			trace = keystroke.NewTraceRecorder(h, nil)
			return trace
		}))
	}

	capture := newCapture(cfg, log)
	m := machine.New(capture, km, sink.Multi(sinks...), opts...)
	if err := m.SetSuppression(cfg.Capture.Suppress); err != nil {
		fatalf("%v", err)
	}
	checker.RegisterFunc("capture", true, health.StateCheck(func() string {
		return m.State().String()
	}, machine.StateReady.String()))
	m.OnStateChange(func(s machine.State) {
		checker.SetReady(s == machine.StateReady)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.StartCapture(ctx); err != nil {
		fatalf("%v", err)
	}

	if cfg.Keymap.Watch {
		w := keymap.NewWatcher(cfg.Keymap.Path)
		defer w.Close()
		if err := watchKeymap(w, m, log); err != nil {
			log.Warn("keymap hot reload disabled", "error", err)
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnHangup(ctx, hup, *configPath, *logLevel != "", cfg.Keymap.Path, m, logger)

	log.Info("capturing", "keymap", km.Name, "suppress", cfg.Capture.Suppress)
	<-ctx.Done()
	log.Info("shutting down")

	if err := m.StopCapture(); err != nil {
		log.Error("stop capture", "error", err)
	}
	reportSinkErrors(sinks, log)

	if trace != nil {
		if err := saveTrace(*record, trace.Events()); err != nil {
			log.Error("write trace", "error", err)
		} else {
			log.Info("trace written", "path", *record)
		}
	}
}

func setupLogging(cfg *config.Config) *logging.Logger {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		fatalf("%v", err)
	}
	logger, err := logging.New(lc)
	if err != nil {
		fatalf("set up logging: %v", err)
	}
	logging.SetDefault(logger)
	return logger
}

func newCapture(cfg *config.Config, log *slog.Logger) keystroke.Capture {
	if cfg.Capture.Backend == "simulated" {
		log.Warn("simulated capture backend, no keys will be read")
		return keystroke.NewSimulated()
	}

	capture := keystroke.New(cfg.Capture.Devices)
	if ok, reason := capture.Available(); !ok {
		fatalf("%s", reason)
	}
	return capture
}

// reportSinkErrors logs the first write error of each sink that keeps one
// and returns how many sinks failed.
func reportSinkErrors(sinks []chord.Sink, log *slog.Logger) int {
	failed := 0
	for _, s := range sinks {
		e, ok := s.(interface{ Err() error })
		if !ok {
			continue
		}
		if err := e.Err(); err != nil {
			log.Error("output sink failed", "sink", fmt.Sprintf("%T", s), "error", err)
			failed++
		}
	}
	return failed
}

func registerJournalMetrics(r *metrics.Registry, js *sink.JournalSink) {
	r.RegisterCounterFunc("journal_written_total", "Strokes written to the journal", nil, func() uint64 {
		written, _, _ := js.Stats()
		return written
	})
	r.RegisterCounterFunc("journal_dropped_total", "Strokes dropped because the journal writer fell behind", nil, func() uint64 {
		_, dropped, _ := js.Stats()
		return dropped
	})
	r.RegisterCounterFunc("journal_failed_total", "Strokes the journal failed to store", nil, func() uint64 {
		_, _, failed := js.Stats()
		return failed
	})
}

// serveMetrics serves /metrics and the health endpoints on addr.
func serveMetrics(addr string, checker *health.Checker, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Default().HTTPHandler())
	checker.Mount(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}

func watchKeymap(w *keymap.Watcher, m *machine.Machine, log *slog.Logger) error {
	if _, err := w.Load(); err != nil {
		return err
	}
	w.OnChange(func(km *keymap.Keymap) {
		if err := m.SetKeymap(km); err != nil {
			log.Error("apply keymap", "error", err)
		}
	})
	if err := w.Watch(); err != nil {
		return err
	}

	go func() {
		for err := range w.Errors() {
			log.Warn("keymap reload failed, keeping the previous keymap", "error", err)
		}
	}()
	return nil
}

// reloadOnHangup re-reads the keymap and, unless it was fixed on the command
// line, the log level each time SIGHUP arrives.
func reloadOnHangup(ctx context.Context, hup <-chan os.Signal, configPath string, levelFixed bool,
	keymapPath string, m *machine.Machine, logger *logging.Logger) {
	log := logger.Logger
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		if !levelFixed {
			if configPath == "" {
				configPath = config.FindConfigFile()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				log.Warn("reload config", "error", err)
			} else if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
				logger.SetLevel(level)
			}
		}

		km, err := keymap.Load(keymapPath)
		if err != nil {
			log.Warn("reload keymap, keeping the previous one", "error", err)
			continue
		}
		if err := m.SetKeymap(km); err != nil {
			log.Error("apply keymap", "error", err)
			continue
		}
		log.Info("reloaded", "keymap", km.Name, "level", logger.Level().String())
	}
}

func saveTrace(path string, events []keystroke.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	base := time.Time{}
	if len(events) > 0 {
		base = events[0].Time
	}
	if err := keystroke.WriteTrace(f, events, base); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
