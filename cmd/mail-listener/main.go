package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pricer/internal/config"
	"pricer/internal/listener"
	"pricer/internal/pricing"
	"pricer/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	client := pricing.NewClient(cfg, pricing.NewMetrics())
	svc := listener.NewService(db, cfg, client)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
