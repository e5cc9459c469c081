package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"module5/portal/internal/app"
	"module5/portal/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.NewAPI(ctx, cfg)
	if err != nil {
		log.Fatalf("create api: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("run api: %v", err)
	}
}
