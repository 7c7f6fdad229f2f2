// Command staffproof is the terminal client for the StaffProof API.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/staffproof/internal/config"
	"github.com/abelbrown/staffproof/internal/controller"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/otel"
	"github.com/abelbrown/staffproof/internal/ui"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "config file (default ~/.staffproof/config.yaml)")
	trace := flag.Bool("trace", false, "record every key press in the event log")
	flag.Parse()
	if *trace {
		otel.SetTrace(true)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "staffproof: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logging.Init(version); err != nil {
		return err
	}
	defer logging.Close()

	eventsPath := cfg.EventsPath
	if eventsPath == "" {
		if eventsPath, err = otel.DefaultPath(); err != nil {
			return err
		}
	}
	events, err := otel.Open(eventsPath)
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.NewNullLogger()
	}
	ring := otel.NewRingBuffer(256)
	events.SetRingBuffer(ring)
	defer events.Close()

	events.Info(otel.KindStartup, "main", "staffproof "+version+" api="+cfg.API.URL)
	logging.Info("config loaded", "file", cfg.File, "api", cfg.API.URL, "page_size", cfg.List.PageSize)

	client := fetch.NewClient(fetch.Options{
		BaseURL:       cfg.API.URL,
		Token:         cfg.API.Token,
		Timeout:       cfg.API.Timeout,
		RatePerSecond: cfg.API.RatePerSecond,
		UserAgent:     "staffproof/" + version,
	})

	app := ui.NewApp(ui.Screens(ui.Config{
		Client:        client,
		PageSize:      cfg.List.PageSize,
		Debounce:      cfg.List.SearchDebounce,
		Retry:         controller.Retry{MaxAttempts: cfg.List.RetryAttempts},
		Events:        events,
		MutateTimeout: cfg.API.Timeout,
	}), ring, events)
	defer app.Close()

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logging.Error("program exited", "err", err)
		return err
	}

	events.Info(otel.KindShutdown, "main", "staffproof exiting")
	return nil
}
