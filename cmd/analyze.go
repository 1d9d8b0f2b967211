package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vidauth/internal/detector"
	"github.com/sells-group/vidauth/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Score local image files without starting the server",
	Long:  "Reads each file, base64 encodes it and runs it through the detector. One file prints a single result, several files print a batch in argument order.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		return runAnalyze(cmd.Context(), initDetector(cfg), args, cmd.OutOrStdout())
	},
}

// runAnalyze encodes the files at paths and writes the detector's results to
// w as indented JSON.
func runAnalyze(ctx context.Context, det *detector.Detector, paths []string, w io.Writer) error {
	frames, err := loadFrames(paths)
	if err != nil {
		return err
	}

	var out any
	if len(frames) == 1 {
		res, err := det.AnalyzeFrame(ctx, frames[0])
		if err != nil {
			return eris.Wrapf(err, "analyze %s", paths[0])
		}
		out = res
	} else {
		results, err := det.AnalyzeBatch(ctx, frames)
		if err != nil {
			return eris.Wrap(err, "analyze batch")
		}
		out = results
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadFrames(paths []string) ([]model.FrameRequest, error) {
	frames := make([]model.FrameRequest, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read frame %s", p)
		}
		frames = append(frames, model.FrameRequest{
			Image:    base64.StdEncoding.EncodeToString(data),
			Filename: filepath.Base(p),
		})
	}
	return frames, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
