package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/deployhook/internal/entity"
	"github.com/yz4230/deployhook/internal/repository"
)

type ListDeploymentUsecase interface {
	// Execute lists recorded deployments, newest first. An empty pkg lists all.
	Execute(ctx context.Context, pkg string) ([]*entity.Deployment, error)
}

type listDeploymentUsecaseImpl struct {
	deploymentRepository repository.DeploymentRepository
}

// Execute implements ListDeploymentUsecase.
func (l *listDeploymentUsecaseImpl) Execute(ctx context.Context, pkg string) ([]*entity.Deployment, error) {
	if pkg == "" {
		return l.deploymentRepository.List(ctx)
	}
	return l.deploymentRepository.ListByPackage(ctx, pkg)
}

func NewListDeploymentUsecase(injector *do.Injector) (ListDeploymentUsecase, error) {
	return &listDeploymentUsecaseImpl{
		deploymentRepository: do.MustInvoke[repository.DeploymentRepository](injector),
	}, nil
}
