package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	_ "time/tzdata"

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

	a, err := app.NewWeb(cfg)
	if err != nil {
		log.Fatalf("create web: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("run web: %v", err)
	}
}
