// Package main provides the promptseq command, which plays a configured
// prompt sequence over a signaling driver.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/telq/promptseq/internal/app/prompt"
	"github.com/telq/promptseq/internal/infra/config"
	"github.com/telq/promptseq/internal/infra/logger"
	"github.com/telq/promptseq/internal/infra/loopback"
	"github.com/telq/promptseq/internal/signaling"
)

var (
	app        = kingpin.New("promptseq", "Telephony prompt sequence player")
	configPath = app.Flag("config", "Path to config file").Default("config/promptseq.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := run(cfg); err != nil {
		zlog.Error().Err(err).Msg("Playback failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	factory, channel, err := buildDriver(cfg.Driver)
	if err != nil {
		return err
	}

	player := prompt.New(cfg.Sounds(), channel, cfg.Replacements, prompt.Options{
		Factory: factory,
		Params:  cfg.ConnectionParams(),
		AppID:   cfg.Signaling.AppName,
	})
	resCh := player.Play()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			// Skipable prompts are cut off, non-skipable ones finish
			// before the session ends.
			zlog.Info().Str("signal", sig.String()).Msg("Stop requested")
			player.Stop()
		case res := <-resCh:
			if res.Err != nil {
				return res.Err
			}
			if res.Finished {
				zlog.Info().Msg("Sequence completed")
			} else {
				zlog.Info().Msg("Sequence stopped early")
			}
			return nil
		}
	}
}

// buildDriver constructs the configured signaling driver.
func buildDriver(cfg config.DriverConfig) (signaling.ClientFactory, signaling.Channel, error) {
	switch cfg.Type {
	case "loopback":
		settings, err := loopback.ParseSettings(cfg.Settings)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to configure loopback driver")
		}
		drv := loopback.New(settings)
		return drv, drv.NewChannel(), nil
	default:
		return nil, nil, errors.Newf("unsupported driver type: %s", cfg.Type)
	}
}
