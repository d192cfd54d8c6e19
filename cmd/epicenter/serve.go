package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/recorder"
	"github.com/Amumug/epicenter/internal/server"
	"github.com/Amumug/epicenter/internal/status"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local recording control API",
	Long: `Serve the recording control API on 127.0.0.1 so local tools can
start, stop and cancel recordings over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cfg.Audio.Engine)
		if err != nil {
			return err
		}
		defer engine.Terminate()

		rec := recorder.New(recorder.Config{
			Engine:  engine,
			Devices: engine,
			Files:   capture.OSFileStore{},
			Status:  status.LogSink{Log: log},
			Logger:  log,
		})

		srvCfg := server.DefaultConfig()
		if servePort != 0 {
			srvCfg.Port = servePort
		} else if cfg.Server.Port != 0 {
			srvCfg.Port = cfg.Server.Port
		}

		srv := server.New(rec, engine, srvCfg, log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		log.Info().Str("url", srv.URL()).Msg("Control API listening")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down")
		if err := srv.Stop(); err != nil {
			log.Warn().Err(err).Msg("Server shutdown failed")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
}
