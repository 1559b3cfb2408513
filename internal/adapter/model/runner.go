// Package model runs the external hydrodynamic model that produces the
// netCDF output consumed by ingestion.
package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// Runner executes the model script as a subprocess.
type Runner struct {
	script string
	logger *slog.Logger
}

// NewRunner creates a Runner for the given executable.
func NewRunner(script string, logger *slog.Logger) *Runner {
	return &Runner{script: script, logger: logger}
}

// Run blocks until the model exits. The output directory is passed in
// MESH_OUTPUT_DIR. A non-zero exit returns *domain.ModelRunError carrying
// the captured standard error. Cancelling ctx kills the process.
func (r *Runner) Run(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, r.script, args...)
	cmd.Env = append(os.Environ(), "MESH_OUTPUT_DIR="+dir)
	// Children that inherit the output pipes must not hold Run open after a kill.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Info("model run started", "script", r.script, "dir", dir)

	err := cmd.Run()
	if stdout.Len() > 0 {
		r.logger.Debug("model output", "stdout", stdout.String())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		r.logger.Info("model run finished", "duration", time.Since(start))
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("run model: %w", ctx.Err())
	case errors.As(err, &exitErr):
		return &domain.ModelRunError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	default:
		return fmt.Errorf("start model: %w", err)
	}
}
