// halfkbd - one-handed stenography chord classifier
//
//	halfkbd run               Capture the keyboard and emit strokes
//	halfkbd replay <trace>    Classify a recorded key trace
//	halfkbd keymap <action>   Check, print or create keymaps
//	halfkbd journal <action>  Inspect the stroke journal
//	halfkbd devices           List keyboard input devices
//	halfkbd config <action>   Show or create the configuration
package main

import (
	"fmt"
	"os"

	"halfkbd/internal/config"
	"halfkbd/internal/keystroke"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "run":
		cmdRun()
	case "replay":
		cmdReplay()
	case "keymap":
		cmdKeymap()
	case "journal":
		cmdJournal()
	case "devices":
		cmdDevices()
	case "config":
		cmdConfig()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`halfkbd - Half keyboard chord classifier

USAGE:
    halfkbd <command> [options]

COMMANDS:
    run                 Capture the keyboard and print strokes
    replay <trace>      Classify a recorded trace ("down|up KEY SECONDS" lines)
    keymap check <file> Validate a keymap file
    keymap print [file] Print a keymap (the built-in one by default)
    keymap init [file]  Write the built-in keymap to a file
    journal recent      Show the most recent strokes
    journal sessions    Show capture sessions
    journal stats       Count strokes by kind
    journal prune       Delete old strokes
    devices             List keyboard input devices
    config show         Print the effective configuration
    config init         Write the default configuration
    help                Show this help message

Keys pressed together within 50ms, held together for 100-200ms and
released within 50ms of each other form a chord. Anything else is typed
one key at a time.

Configuration is read from ~/.halfkbd/config.toml unless -config or
HALFKBD_CONFIG names another file.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("load config: %v", err)
	}
	return cfg
}

func cmdDevices() {
	keyboards, err := keystroke.ListKeyboards()
	if err != nil {
		fatalf("find keyboard devices: %v", err)
	}
	if len(keyboards) == 0 {
		fmt.Println("No keyboard devices found.")
	}
	for _, kb := range keyboards {
		fmt.Printf("%-20s %-10s %04x:%04x  %s\n", kb.Path, kb.Connection, kb.Vendor, kb.Product, kb.Name)
	}

	ok, reason := keystroke.New(nil).Available()
	fmt.Println()
	if ok {
		fmt.Printf("Capture available: %s\n", reason)
	} else {
		fmt.Printf("Capture unavailable: %s\n", reason)
	}
}
