package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

var ErrEmptyCommand = errors.New("empty discovery command")

// Resolve runs the discovery command (for example `docker-machine env default`)
// and turns its output into an Endpoint.
func Resolve(ctx context.Context, command string) (*Endpoint, error) {
	log := zerolog.Ctx(ctx)

	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse discovery command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Strs("command", cmd.Args).Msg("executing discovery command")
	if err := cmd.Run(); err != nil {
		log.Error().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("discovery command failed")
		return nil, fmt.Errorf("run %s: %w", args[0], err)
	}

	settings, err := ParseSettings(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	ep, err := NewEndpoint(settings)
	if err != nil {
		return nil, err
	}

	log.Info().Str("host", ep.Host).Str("port", ep.Port).Bool("tls", ep.TLS != nil).Msg("resolved container engine endpoint")
	return ep, nil
}
