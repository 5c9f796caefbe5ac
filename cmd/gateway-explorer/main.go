package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/gateway-network-client/cmd/flags"
	"github.com/ruteri/gateway-network-client/httpserver"
)

func main() {
	app := &cli.App{
		Name:  "gateway-explorer",
		Usage: "Serve a read-only API over gatekeeper networks and gateway tokens",
		Flags: append(append(append([]cli.Flag{}, flags.LogFlags...), flags.LedgerFlags...), flags.ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			clients, err := flags.NewClients(cCtx, logger)
			if err != nil {
				logger.Error("Failed to connect to ledger", "err", err)
				return err
			}
			defer clients.Close()

			handler := httpserver.NewHandler(clients.Directory, clients.Tokens, logger)
			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			if clients.Dev != nil {
				logger.Warn("Discarding in-memory ledger", "submissions", clients.Dev.Submissions())
			}
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
