package main

import (
	"context"
	"os"

	"github.com/dnmos/weba/internal/logger"
)

func main() {
	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
