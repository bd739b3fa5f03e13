package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cartsync-backend/internal/cli"
	"github.com/angelmondragon/cartsync-backend/pkg/config"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadDevice()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitFailure)
	}

	logg := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
	})

	app := &cli.App{Config: cfg, Logger: logg, NewRemote: cli.HTTPRemote}
	root := cli.NewRootCommand(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = root.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.WriteError(root.ErrOrStderr(), app.Format(), err)
		os.Exit(cli.ExitCode(err))
	}
}
