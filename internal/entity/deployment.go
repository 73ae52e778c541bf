package entity

import (
	"strings"
	"time"
)

type DeploymentStatus string

const (
	DeploymentStatusPending DeploymentStatus = "pending"
	DeploymentStatusRunning DeploymentStatus = "running"
	DeploymentStatusSuccess DeploymentStatus = "success"
	DeploymentStatusFailed  DeploymentStatus = "failed"
)

// DeploymentRequest is the accepted shape of a deployment notification.
type DeploymentRequest struct {
	Package      string `json:"package"`
	Version      string `json:"version,omitempty"`
	Released     string `json:"released,omitempty"`
	ReleaseNotes string `json:"release_notes,omitempty"`
}

func (r *DeploymentRequest) Validate() error {
	if strings.TrimSpace(r.Package) == "" {
		return ErrValidation
	}
	return nil
}

// MatchImage is the image string used to find containers of the package.
// The version is deliberately not part of it.
func (r *DeploymentRequest) MatchImage() string {
	return r.Package
}

// ImageReference returns package[:version].
func (r *DeploymentRequest) ImageReference() string {
	if r.Version == "" {
		return r.Package
	}
	return r.Package + ":" + r.Version
}

// ContainerName is the part of the package after its last '/'.
func (r *DeploymentRequest) ContainerName() string {
	return r.Package[strings.LastIndex(r.Package, "/")+1:]
}

type Deployment struct {
	ID            ID               `json:"id"`
	Package       string           `json:"package"`
	Version       string           `json:"version,omitempty"`
	Image         string           `json:"image"`
	ContainerName string           `json:"container_name"`
	Status        DeploymentStatus `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Released      string           `json:"released,omitempty"`
	ReleaseNotes  string           `json:"release_notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func NewDeployment(req *DeploymentRequest) *Deployment {
	return &Deployment{
		Package:       req.Package,
		Version:       req.Version,
		Image:         req.ImageReference(),
		ContainerName: req.ContainerName(),
		Status:        DeploymentStatusPending,
		Released:      req.Released,
		ReleaseNotes:  req.ReleaseNotes,
	}
}
