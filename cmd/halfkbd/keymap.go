package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"halfkbd/internal/config"
	"halfkbd/internal/keymap"
)

func cmdKeymap() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: halfkbd keymap <check|print|init> [file]")
		os.Exit(1)
	}

	action := os.Args[2]
	fs := flag.NewFlagSet("keymap "+action, flag.ExitOnError)
	format := fs.String("format", "", "Output format for print: toml, yaml or json")
	force := fs.Bool("force", false, "Overwrite an existing file on init")
	fs.Parse(os.Args[3:])

	switch action {
	case "check":
		if fs.NArg() != 1 {
			fatalf("usage: halfkbd keymap check <file>")
		}
		km, err := keymap.Load(fs.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		name := km.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s: OK\n", fs.Arg(0))
		fmt.Printf("  Name:    %s\n", name)
		fmt.Printf("  Symbols: %d\n", len(km.Symbols()))
		fmt.Printf("  Keys:    %d\n", len(km.Keys()))
		if actions := km.ActionKeys(); len(actions) > 0 {
			fmt.Printf("  Actions: %d key(s), dropped at capture\n", len(actions))
		}

	case "print":
		km := keymap.Default()
		if fs.NArg() > 0 {
			var err error
			if km, err = keymap.Load(fs.Arg(0)); err != nil {
				fatalf("%v", err)
			}
		}
		f := keymap.Format(*format)
		if f == "" {
			f = keymap.FormatTOML
		}
		data, err := km.Marshal(f)
		if err != nil {
			fatalf("%v", err)
		}
		os.Stdout.Write(data)

	case "init":
		path := config.DefaultConfig().Keymap.Path
		if fs.NArg() > 0 {
			path = fs.Arg(0)
		}
		if _, err := os.Stat(path); err == nil && !*force {
			fatalf("%s already exists (use -force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			fatalf("%v", err)
		}
		if err := keymap.Default().Save(path); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s\n", path)

	default:
		fatalf("unknown keymap action: %s", action)
	}
}
