package repository

import (
	"context"

	"github.com/yz4230/deployhook/internal/entity"
	"gorm.io/gorm"
)

type DeploymentRepository interface {
	Create(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error)
	GetByID(ctx context.Context, id entity.ID) (*entity.Deployment, error)
	List(ctx context.Context) ([]*entity.Deployment, error)
	ListByPackage(ctx context.Context, pkg string) ([]*entity.Deployment, error)
	UpdateStatus(ctx context.Context, id entity.ID, status entity.DeploymentStatus, reason string) error
}

type deploymentRepositoryImpl struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepositoryImpl{db: db}
}

// Create a new deployment record.
func (r *deploymentRepositoryImpl) Create(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error) {
	var model Deployment
	model.FromEntity(dep)
	if err := gorm.G[Deployment](r.db).Create(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// GetByID finds deployment by id.
func (r *deploymentRepositoryImpl) GetByID(ctx context.Context, id entity.ID) (*entity.Deployment, error) {
	found, err := gorm.G[Deployment](r.db).Where("id = ?", id.Uint()).First(ctx)
	if err != nil {
		return nil, toEntityErr(err)
	}
	return found.ToEntity(), nil
}

// List returns all deployments, newest first.
func (r *deploymentRepositoryImpl) List(ctx context.Context) ([]*entity.Deployment, error) {
	founds, err := gorm.G[Deployment](r.db).Order("id desc").Find(ctx)
	if err != nil {
		return nil, err
	}
	return toEntities(founds), nil
}

// ListByPackage lists deployments of one package, newest first.
func (r *deploymentRepositoryImpl) ListByPackage(ctx context.Context, pkg string) ([]*entity.Deployment, error) {
	founds, err := gorm.G[Deployment](r.db).Where("package = ?", pkg).Order("id desc").Find(ctx)
	if err != nil {
		return nil, err
	}
	return toEntities(founds), nil
}

// UpdateStatus moves a deployment to a new status.
func (r *deploymentRepositoryImpl) UpdateStatus(ctx context.Context, id entity.ID, status entity.DeploymentStatus, reason string) error {
	n, err := gorm.G[Deployment](r.db).Where("id = ?", id.Uint()).
		Updates(ctx, Deployment{Status: string(status), Reason: reason})
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func toEntities(founds []Deployment) []*entity.Deployment {
	res := make([]*entity.Deployment, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res
}
