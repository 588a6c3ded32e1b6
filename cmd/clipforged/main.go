package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"clipforge/internal/config"
	"clipforge/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	cfg, path, found, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "no config file found, using defaults (run 'clipforge config init' to create %s)\n", path)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("clipforged: %v", err)
	}
}
