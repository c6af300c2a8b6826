package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shortify/internal/config"
	"shortify/internal/types"
)

func newRunCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Process one local video: transcribe, identify, cut",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], log)
		},
	}
	cmd.Flags().Int("shorts", 0, "Max shorts to generate (default from config)")
	cmd.Flags().Int("min", 0, "Min short duration seconds (default from config)")
	cmd.Flags().Int("max", 0, "Max short duration seconds (default from config)")
	return cmd
}

func run(cmd *cobra.Command, input string, log *logrus.Logger) error {
	maxShorts, _ := cmd.Flags().GetInt("shorts")
	minSec, _ := cmd.Flags().GetInt("min")
	maxSec, _ := cmd.Flags().GetInt("max")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
	defer cancel()

	cfg := config.Load()
	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(absIn)
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(absIn))
	v, err := svc.Upload(f, filepath.Base(absIn), contentType)
	f.Close()
	if err != nil {
		return err
	}

	analysis, err := svc.Identify(ctx, v.ID, types.Constraints{
		MaxShorts:   maxShorts,
		MinDuration: time.Duration(minSec) * time.Second,
		MaxDuration: time.Duration(maxSec) * time.Second,
	})
	if err != nil {
		return err
	}
	log.WithField("shorts", len(analysis.Shorts)).Info("candidates identified")

	res, err := svc.Generate(ctx, v.ID)
	if err != nil {
		return err
	}
	for _, fail := range res.Failures {
		log.WithFields(logrus.Fields{"rank": fail.Rank, "reason": fail.Reason}).
			Warn("short failed to generate")
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d of %d shorts to %s\n", len(res.Shorts), len(analysis.Shorts), cfg.OutputDir)
	return nil
}
