package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/radu103/voxtext/internal/pkg/transcriber/api"
)

// Runner invokes the external transcription engine as an isolated process.
// Contract: `engine <audio_path>`, exit code 0 plus a transcript artifact
// at a deterministic date partitioned path derived from the audio base name
type Runner struct {
	cmd       []string
	outputDir string
	now       func() time.Time
}

// NewRunner creates engine runner
func NewRunner(cmd []string, outputDir string) (*Runner, error) {
	if len(cmd) == 0 {
		return nil, errors.New("no engine cmd")
	}
	if outputDir == "" {
		return nil, errors.New("no output dir")
	}
	return &Runner{cmd: cmd, outputDir: outputDir, now: time.Now}, nil
}

// Run executes the engine for one audio file and captures its streams.
// A nonzero exit code is returned as an error together with captured stderr
func (r *Runner) Run(ctx context.Context, audioPath string) (*api.Result, error) {
	args := make([]string, 0, len(r.cmd))
	args = append(args, r.cmd[1:]...)
	args = append(args, audioPath)

	goapp.Log.Info().Str("engine", r.cmd[0]).Str("audio", audioPath).Msg("run engine")
	cmd := exec.CommandContext(ctx, r.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &api.Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return res, fmt.Errorf("engine failed: %w: %s", err, strings.TrimSpace(res.Stderr))
	}
	res.OutputPath = r.OutputPath(audioPath)
	return res, nil
}

// OutputPath computes the expected artifact location for an audio file.
// The engine writes <outputDir>/<date>/<base>_transcription.txt
func (r *Runner) OutputPath(audioPath string) string {
	base := filepath.Base(audioPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	return filepath.Join(r.outputDir, r.now().Format("2006-01-02"), name+"_transcription.txt")
}
