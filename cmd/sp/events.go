package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/staffproof/internal/otel"
)

var (
	eventsTail     int
	eventsKind     string
	eventsResource string
	eventsLevel    string
	eventsSince    time.Duration
	eventsSession  string
	eventsPath     string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the TUI's structured event log",
	Long: `Events reads the JSONL event log written by the staffproof TUI and prints
the newest matching events.

Example:
  sp events --kind list. --resource cases
  sp events --kind list.error --since 1h`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsTail, "tail", "n", 50, "number of events to show (0 for all)")
	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "exact kind, or a subsystem prefix ending in '.'")
	eventsCmd.Flags().StringVar(&eventsResource, "resource", "", "only events for this collection")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "only events at this level")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "only events newer than this")
	eventsCmd.Flags().StringVar(&eventsSession, "session", "", "only events from this session")
	eventsCmd.Flags().StringVar(&eventsPath, "file", "", "event log (default from config)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	path := eventsPath
	if path == "" {
		path = cfg.EventsPath
	}
	if path == "" {
		var err error
		if path, err = otel.DefaultPath(); err != nil {
			return err
		}
	}

	m := otel.Match{
		Kind:     eventsKind,
		Resource: eventsResource,
		Level:    otel.Level(eventsLevel),
		Session:  eventsSession,
	}
	if eventsSince > 0 {
		m.Since = time.Now().Add(-eventsSince)
	}

	events, err := otel.ReadFile(path, m, eventsTail)
	if err != nil {
		return fmt.Errorf("%w (run staffproof first to generate events)", err)
	}
	if flagJSON {
		return printJSON(events)
	}
	for _, e := range events {
		fmt.Println(formatEvent(e))
	}
	return nil
}

func formatEvent(e otel.Event) string {
	lvl := strings.ToUpper(string(e.Level))
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s %-22s", e.Time.Format("15:04:05.000"), lvl, e.Kind)}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Page > 0 {
		parts = append(parts, fmt.Sprintf("p%d", e.Page))
	}
	if e.Kind == otel.KindFetchComplete {
		parts = append(parts, fmt.Sprintf("n=%d/%d", e.Count, e.Total))
	}
	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}
	if e.Action != "" {
		parts = append(parts, "action="+e.Action)
	}
	if e.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.1fms)", e.DurMs))
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != "" {
		parts = append(parts, "err="+e.Err)
	}
	return strings.Join(parts, " ")
}
