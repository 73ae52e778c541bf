package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionFailed       = errors.New("docker connection failed")
	ErrContainerAlreadyExists = errors.New("container already exists")
	ErrImagePullFailed        = errors.New("image pull failed")
	ErrImageNotFound          = errors.New("image not found")
	ErrUnauthorized           = errors.New("registry authentication failed")
)

// DockerError wraps engine errors with the operation that produced them.
type DockerError struct {
	Op      string
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
