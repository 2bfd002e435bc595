package main

import (
	"flag"
	"io"
	"os"
	"time"

	"halfkbd/internal/chord"
	"halfkbd/internal/keymap"
	"halfkbd/internal/keystroke"
	"halfkbd/internal/sink"
)

func cmdReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	keymapPath := fs.String("keymap", "", "Keymap file (the built-in keymap by default)")
	asJSON := fs.Bool("json", false, "Print strokes as JSON lines")
	fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fatalf("usage: halfkbd replay [-keymap FILE] [-json] <trace|->")
	}

	km := keymap.Default()
	if *keymapPath != "" {
		var err error
		if km, err = keymap.Load(*keymapPath); err != nil {
			fatalf("%v", err)
		}
	}

	var in io.Reader = os.Stdin
	if name := fs.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		in = f
	}

	strokes, err := replayTrace(in, km)
	if err != nil {
		fatalf("%v", err)
	}

	var out chord.Sink = sink.NewText(os.Stdout)
	if *asJSON {
		out = sink.NewJSONLines(os.Stdout)
	}
	for _, s := range strokes {
		out.EmitStroke(s)
	}
}

// replayTrace classifies a trace the way a running machine would, dropping
// keys bound to special actions.
func replayTrace(r io.Reader, km *keymap.Keymap) ([]chord.Stroke, error) {
	events, err := keystroke.ParseTrace(r, time.Unix(0, 0).UTC())
	if err != nil {
		return nil, err
	}

	actions := km.ActionKeys()
	kept := events[:0]
	for _, e := range events {
		if _, ok := actions[e.Key]; !ok {
			kept = append(kept, e)
		}
	}
	return chord.Replay(kept, km.ChordBindings()), nil
}
