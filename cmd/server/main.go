package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seawatts/grid-sub000/internal/app"
)

func main() {
	var configDir string
	flag.StringVar(&configDir, "config", ".", "directory containing gridtd.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{ConfigDir: configDir}); err != nil {
		log.Fatalf("%v", err)
	}
}
