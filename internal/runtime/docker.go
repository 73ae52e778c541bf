package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yz4230/deployhook/internal/entity"
	"github.com/yz4230/deployhook/internal/machine"
)

// DockerRuntime implements ContainerRuntime on top of the Docker SDK.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects to the resolved endpoint. A nil endpoint falls back
// to the standard DOCKER_* environment.
func NewDockerRuntime(ep *machine.Endpoint) (*DockerRuntime, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if ep == nil {
		opts = append(opts, client.FromEnv)
	} else {
		if ep.TLS != nil {
			opts = append(opts, client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{TLSClientConfig: ep.TLS},
			}))
		}
		opts = append(opts, client.WithHost(ep.Address()))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerRuntime", "", "", err.Error(), ErrConnectionFailed)
	}
	return newDockerRuntime(cli), nil
}

func newDockerRuntime(cli *client.Client) *DockerRuntime {
	return &DockerRuntime{cli: cli}
}

func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

// Ping checks that the engine is reachable.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// ListContainers lists every container, running or not.
func (d *DockerRuntime) ListContainers(ctx context.Context) ([]entity.ContainerInstance, error) {
	summaries, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, NewDockerError("ListContainers", "container", "", err.Error(), err)
	}
	return lo.Map(summaries, func(s container.Summary, _ int) entity.ContainerInstance {
		return entity.ContainerInstance{
			ID:    s.ID,
			Image: s.Image,
			Name:  strings.TrimPrefix(lo.FirstOrEmpty(s.Names), "/"),
			State: string(s.State),
		}
	}), nil
}

// StopAndRemove stops then removes a container.
func (d *DockerRuntime) StopAndRemove(ctx context.Context, id string) error {
	log := zerolog.Ctx(ctx)

	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			log.Debug().Str("container", id).Msg("container already gone")
			return nil
		}
		return NewDockerError("StopContainer", "container", id, err.Error(), err)
	}
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return NewDockerError("RemoveContainer", "container", id, err.Error(), err)
	}
	return nil
}

// PullImage pulls ref and drains the progress stream.
func (d *DockerRuntime) PullImage(ctx context.Context, ref string, auth entity.Credentials) error {
	log := zerolog.Ctx(ctx)

	registryAuth, err := encodeRegistryAuth(auth)
	if err != nil {
		return NewDockerError("PullImage", "image", ref, "encode registry auth", err)
	}

	log.Info().Str("image", ref).Stringer("auth", auth).Msg("pulling image")
	body, err := d.cli.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: registryAuth})
	if err != nil {
		return NewDockerError("PullImage", "image", ref, err.Error(), classifyPullError(err))
	}
	defer body.Close()

	if err := decodePullStream(ctx, body); err != nil {
		return NewDockerError("PullImage", "image", ref, err.Error(), classifyPullError(err))
	}
	return nil
}

// RunContainer creates and starts a container named opts.Name.
func (d *DockerRuntime) RunContainer(ctx context.Context, ref string, opts RunOptions) (entity.ContainerInstance, error) {
	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:  ref,
			Labels: opts.Labels,
		},
		&container.HostConfig{}, nil, nil, opts.Name)
	if err != nil {
		if errdefs.IsConflict(err) || strings.Contains(err.Error(), "is already in use") {
			return entity.ContainerInstance{}, NewDockerError("CreateContainer", "container", opts.Name, err.Error(), ErrContainerAlreadyExists)
		}
		return entity.ContainerInstance{}, NewDockerError("CreateContainer", "container", opts.Name, err.Error(), err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return entity.ContainerInstance{}, NewDockerError("StartContainer", "container", resp.ID, err.Error(), err)
	}

	return entity.ContainerInstance{ID: resp.ID, Image: ref, Name: opts.Name, State: "running"}, nil
}

func decodePullStream(ctx context.Context, r io.Reader) error {
	log := zerolog.Ctx(ctx)
	dec := json.NewDecoder(r)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode pull progress: %w", err)
		}
		if jm.Error != nil {
			return errors.New(jm.Error.Message)
		}
		if jm.Status != "" {
			log.Debug().Str("layer", jm.ID).Str("status", jm.Status).Msg("pull progress")
		}
	}
}

func classifyPullError(err error) error {
	msg := err.Error()
	switch {
	case errdefs.IsUnauthorized(err),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "authentication required"),
		strings.Contains(msg, "incorrect username or password"):
		return ErrUnauthorized
	case errdefs.IsNotFound(err),
		strings.Contains(msg, "manifest unknown"),
		strings.Contains(msg, "repository does not exist"),
		strings.Contains(msg, "pull access denied"):
		return ErrImageNotFound
	}
	return ErrImagePullFailed
}
