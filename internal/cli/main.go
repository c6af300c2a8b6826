// Package cli wires the pipeline together behind a cobra command tree:
// `serve` runs the HTTP API, `run` processes one local video end to end.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shortify/internal/config"
	"shortify/internal/ports/adapters/ffmpeg"
	"shortify/internal/ports/adapters/gemini"
	"shortify/internal/state"
	"shortify/internal/store"
	"shortify/internal/usecase"
)

func Main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	root := &cobra.Command{
		Use:          "shortify",
		Short:        "Turn long videos into ranked short clips",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.AddCommand(newServeCmd(log))
	root.AddCommand(newRunCmd(log))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildService assembles the real adapters behind the usecase ports. The
// returned cleanup closes the Gemini client.
func buildService(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*usecase.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	st, err := store.New(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	gem, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.VideoFPS, cfg.GeminiTimeout, cfg.GeminiRetries, log)
	if err != nil {
		return nil, nil, err
	}

	svc := usecase.New(usecase.Deps{
		Media:       ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.ClipStreamCopy),
		Transcriber: gem,
		Finder:      gem,
		Boundary:    gem,
		Store:       st,
		State:       state.NewRegistry(),
		Log:         log,
		Cfg:         cfg,
	})
	cleanup := func() {
		if err := gem.Close(); err != nil {
			log.WithError(err).Warn("closing gemini client")
		}
	}
	return svc, cleanup, nil
}
