package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/dynlb/cmd/cli/cmd"
	"github.com/dynlb/pkg/telemetry"
)

func main() {
	// Optional .env for OTEL_* and harness settings.
	_ = godotenv.Load()

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		log.Printf("telemetry disabled: %v", err)
	}
	defer func() {
		_ = shutdown(ctx)
	}()

	cmd.Execute()
}
