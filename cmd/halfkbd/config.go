package main

import (
	"flag"
	"fmt"
	"os"

	"halfkbd/internal/config"
)

func cmdConfig() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: halfkbd config <show|init|path> [options]")
		os.Exit(1)
	}

	action := os.Args[2]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	format := fs.String("format", "toml", "Output format for show: toml, yaml or json")
	fs.Parse(os.Args[3:])

	switch action {
	case "show":
		cfg := loadConfig(*configPath)
		data, err := config.Encode(cfg, *format)
		if err != nil {
			fatalf("%v", err)
		}
		os.Stdout.Write(data)
		for _, w := range config.Check(cfg).Warnings() {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w.Error())
		}

	case "init":
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		_, created, err := config.LoadOrCreate(path)
		if err != nil {
			fatalf("%v", err)
		}
		if created {
			fmt.Printf("Wrote %s\n", path)
		} else {
			fmt.Printf("%s already exists\n", path)
		}

	case "path":
		if path := config.FindConfigFile(); path != "" {
			fmt.Println(path)
		} else {
			fmt.Printf("%s (not created)\n", config.ConfigPath())
		}

	default:
		fatalf("unknown config action: %s", action)
	}
}
