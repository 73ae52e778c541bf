package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")

	ErrValidation  = errors.New("invalid deployment request")
	ErrRuntimeList = errors.New("list containers failed")
	ErrRuntimeStop = errors.New("stop container failed")
	ErrRuntimePull = errors.New("pull image failed")
	ErrRuntimeRun  = errors.New("run container failed")
)

// DeployStage names the step of a deployment that produced an error.
type DeployStage string

const (
	StageList DeployStage = "list"
	StageStop DeployStage = "stop"
	StagePull DeployStage = "pull"
	StageRun  DeployStage = "run"
)

var stageErrors = map[DeployStage]error{
	StageList: ErrRuntimeList,
	StageStop: ErrRuntimeStop,
	StagePull: ErrRuntimePull,
	StageRun:  ErrRuntimeRun,
}

// DeployError is the failure outcome of a deployment.
type DeployError struct {
	Stage DeployStage
	Err   error
}

func NewDeployError(stage DeployStage, err error) *DeployError {
	return &DeployError{Stage: stage, Err: err}
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("%s: %v", stageErrors[e.Stage], e.Err)
}

func (e *DeployError) Unwrap() []error {
	return []error{stageErrors[e.Stage], e.Err}
}
