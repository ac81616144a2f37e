package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neovance/neovance-go/internal/conf"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/server"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}

			log := newLogger()
			srv, err := server.New(settings, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting neovance",
				logger.String("address", settings.WebServer.Address),
				logger.String("database", settings.Database.Dialect),
				logger.Bool("mqtt", settings.MQTT.Enabled),
				logger.Bool("predictor", settings.Predictor.Enabled))
			return srv.Run(ctx)
		},
	}
}
