package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	stdiocmd "github.com/louisbranch/gridlock/internal/cmd/stdio"
	"github.com/louisbranch/gridlock/internal/platform/config"
)

func main() {
	cfg, err := stdiocmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[STDIO] ")
	log.SetOutput(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stdiocmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
