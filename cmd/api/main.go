package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orbitacademy/subscription-service/internal/app/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}

	rt, err := bootstrap.NewRuntime(ctx, configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := rt.RunAPI(ctx); err != nil {
		log.Fatal(err)
	}
}
