package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"halfkbd/internal/journal"
)

func cmdJournal() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: halfkbd journal <recent|sessions|stats|prune> [options]")
		os.Exit(1)
	}

	action := os.Args[2]
	fs := flag.NewFlagSet("journal "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	limit := fs.Int("n", 20, "Number of entries to show")
	session := fs.Int64("session", 0, "Show the strokes of one session")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "Prune strokes older than this")
	fs.Parse(os.Args[3:])

	cfg := loadConfig(*configPath)
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fatalf("%v", err)
	}
	defer j.Close()

	switch action {
	case "recent":
		var entries []journal.Entry
		if *session != 0 {
			entries, err = j.SessionStrokes(*session)
		} else {
			entries, err = j.Recent(*limit)
		}
		if err != nil {
			fatalf("%v", err)
		}
		for _, e := range entries {
			fmt.Printf("%s  %-6s %-24s %s\n",
				e.Time.Format("2006-01-02 15:04:05.000"),
				e.Kind,
				strings.Join(e.Symbols, " "),
				strings.Join(e.Sources, "+"))
		}

	case "sessions":
		sessions, err := j.Sessions(*limit)
		if err != nil {
			fatalf("%v", err)
		}
		for _, s := range sessions {
			ended := "running"
			if !s.Ended.IsZero() {
				ended = s.Ended.Sub(s.Started).Round(time.Second).String()
			}
			fmt.Printf("%4d  %s  %-10s %6d strokes  %s\n",
				s.ID, s.Started.Format("2006-01-02 15:04:05"), ended, s.Strokes, s.Keymap)
		}

	case "stats":
		counts, err := j.Counts()
		if err != nil {
			fatalf("%v", err)
		}
		kinds := make([]string, 0, len(counts))
		total := 0
		for kind, n := range counts {
			kinds = append(kinds, kind)
			total += n
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Printf("%-8s %d\n", kind, counts[kind])
		}
		fmt.Printf("%-8s %d\n", "total", total)

	case "prune":
		n, err := j.Prune(time.Now().Add(-*olderThan))
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Deleted %d stroke(s)\n", n)

	default:
		fatalf("unknown journal action: %s", action)
	}
}
