package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by every lookup miss (errors.Is).
	ErrNotFound = errors.New("not found")

	// ErrMalformedMesh marks missing variables, dimension mismatches and
	// out-of-range node indices. It aborts the whole ingestion pass.
	ErrMalformedMesh = errors.New("malformed mesh")

	// ErrFileNotFound marks a model output file that matched no pattern.
	ErrFileNotFound = errors.New("model output file not found")

	// ErrInvalidProjectType is returned for type discriminators other than 0 and 1.
	ErrInvalidProjectType = errors.New("invalid project type")

	// ErrInvalidRequest marks ingest requests that fail validation.
	ErrInvalidRequest = errors.New("invalid ingest request")
)

// ProjectNotFoundError names the project id that a lookup could not resolve.
type ProjectNotFoundError struct {
	ID int64
}

func (e *ProjectNotFoundError) Error() string {
	if e.ID == 0 {
		return "no project exists"
	}
	return fmt.Sprintf("project %d not found", e.ID)
}

func (e *ProjectNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FileNotFoundError names the directory and pattern that matched nothing.
type FileNotFoundError struct {
	Dir     string
	Pattern string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("no file matching *%s in %s", e.Pattern, e.Dir)
}

func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// ModelRunError reports a non-zero exit of the external model. Its message is
// the captured standard error, verbatim.
type ModelRunError struct {
	ExitCode int
	Stderr   string
}

func (e *ModelRunError) Error() string {
	if strings.TrimSpace(e.Stderr) == "" {
		return fmt.Sprintf("model exited with code %d", e.ExitCode)
	}
	return e.Stderr
}
