package server

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/fxamacker/cbor/v2"

	"github.com/tagd-dev/tagd/internal/project"
)

// ExecParser runs the external parser as a subprocess per job: the encoded
// payload goes to its stdin, CBOR-encoded index data comes back on stdout.
// A non-zero exit or undecodable output counts as a crash.
type ExecParser struct {
	Command string
	Args    []string
}

// NewExecParser builds an ExecParser for the given command line.
func NewExecParser(command string, args ...string) *ExecParser {
	return &ExecParser{Command: command, Args: args}
}

// Index implements Parser.
func (e *ExecParser) Index(ctx context.Context, payload []byte) (*project.IndexData, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("parser %s: %w (%s)", e.Command, err, bytes.TrimSpace(stderr.Bytes()))
	}
	var data project.IndexData
	if err := cbor.Unmarshal(stdout.Bytes(), &data); err != nil {
		return nil, fmt.Errorf("decode parser output: %w", err)
	}
	return &data, nil
}
