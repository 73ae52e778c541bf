package runtime

import (
	"context"

	"github.com/yz4230/deployhook/internal/entity"
)

const (
	LabelPackage = "deployhook.package"
	LabelVersion = "deployhook.version"
)

// ContainerRuntime is the set of engine operations a deployment needs.
type ContainerRuntime interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context) ([]entity.ContainerInstance, error)
	// StopAndRemove terminates and deletes a container. A container that is
	// already gone is not an error.
	StopAndRemove(ctx context.Context, id string) error
	// PullImage returns once the image is fully available locally.
	PullImage(ctx context.Context, ref string, auth entity.Credentials) error
	// RunContainer creates and starts a container. It does not wait for the
	// container to become healthy.
	RunContainer(ctx context.Context, ref string, opts RunOptions) (entity.ContainerInstance, error)
}

type RunOptions struct {
	Name   string
	Labels map[string]string
}
