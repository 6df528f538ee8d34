package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ridehub/internal/pkg/app"
)

func main() {
	log.Println("ridehub started!")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Println(err)

		return
	}

	if err := a.Run(ctx); err != nil {
		log.Println(err)
	}

	log.Println("ridehub is shutting down...")
}
