package repository

import (
	"github.com/yz4230/deployhook/internal/entity"
	"gorm.io/gorm"
)

type Deployment struct {
	gorm.Model
	Package       string `gorm:"index"`
	Version       string
	Image         string
	ContainerName string
	Status        string
	Reason        string
	Released      string
	ReleaseNotes  string
}

func (d *Deployment) ToEntity() *entity.Deployment {
	return &entity.Deployment{
		ID:            entity.NewID(d.ID),
		Package:       d.Package,
		Version:       d.Version,
		Image:         d.Image,
		ContainerName: d.ContainerName,
		Status:        entity.DeploymentStatus(d.Status),
		Reason:        d.Reason,
		Released:      d.Released,
		ReleaseNotes:  d.ReleaseNotes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func (d *Deployment) FromEntity(e *entity.Deployment) {
	if e.ID != "" {
		d.ID = e.ID.Uint()
	}
	d.Package = e.Package
	d.Version = e.Version
	d.Image = e.Image
	d.ContainerName = e.ContainerName
	d.Status = string(e.Status)
	d.Reason = e.Reason
	d.Released = e.Released
	d.ReleaseNotes = e.ReleaseNotes
}
