package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/yz4230/deployhook/internal/entity"
	"github.com/yz4230/deployhook/internal/repository"
	"github.com/yz4230/deployhook/internal/runtime"
	"github.com/yz4230/deployhook/internal/utils"
)

// DeployPackageUsecase replaces the running container of a package with a
// freshly pulled image. A nil error is the success outcome; any other error
// is an *entity.DeployError or entity.ErrValidation.
type DeployPackageUsecase interface {
	Execute(ctx context.Context, req *entity.DeploymentRequest) error
}

type deployPackageUsecaseImpl struct {
	runtime     runtime.ContainerRuntime
	credentials runtime.CredentialsProvider
	deployments repository.DeploymentRepository
	locks       *utils.KeyedMutex
}

// Execute implements DeployPackageUsecase.
//
// Stopping the old containers and pulling the new image run concurrently.
// The new container is started only when both succeed. If either fails the
// failure is returned at once and the other fork is left to finish on its
// own; its result is only logged. The package lock is held until every fork
// has settled, so deployments of the same package never interleave.
func (d *deployPackageUsecaseImpl) Execute(ctx context.Context, req *entity.DeploymentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	// engine calls are not cancelled when the caller goes away
	ctx = context.WithoutCancel(ctx)
	log := zerolog.Ctx(ctx).With().Str("package", req.Package).Str("version", req.Version).Logger()
	ctx = log.WithContext(ctx)

	dep := d.record(ctx, req)
	unlock := d.locks.Lock(req.Package)
	d.transition(ctx, dep, entity.DeploymentStatusRunning, nil)
	log.Info().Str("image", req.ImageReference()).Msg("starting deployment")

	stopped := lo.Async(func() error { return d.stopExisting(ctx, req) })
	pulled := lo.Async(func() error { return d.pull(ctx, req) })

	straggler, err := awaitBoth(stopped, pulled)
	if err == nil {
		err = d.run(ctx, req)
	}

	if straggler == nil {
		unlock()
	} else {
		go func() {
			defer unlock()
			if serr := <-straggler; serr != nil {
				log.Warn().Err(serr).Msg("discarded result of abandoned fork")
			} else {
				log.Debug().Msg("abandoned fork finished")
			}
		}()
	}

	if err != nil {
		log.Error().Err(err).Msg("deployment failed")
		d.transition(ctx, dep, entity.DeploymentStatusFailed, err)
		return err
	}
	log.Info().Str("container", req.ContainerName()).Msg("deployment succeeded")
	d.transition(ctx, dep, entity.DeploymentStatusSuccess, nil)
	return nil
}

// awaitBoth joins two forks. It returns as soon as one fails, handing back the
// fork that has not settled yet.
func awaitBoth(a, b <-chan error) (<-chan error, error) {
	select {
	case err := <-a:
		if err != nil {
			return b, err
		}
		return nil, <-b
	case err := <-b:
		if err != nil {
			return a, err
		}
		return nil, <-a
	}
}

func (d *deployPackageUsecaseImpl) stopExisting(ctx context.Context, req *entity.DeploymentRequest) error {
	log := zerolog.Ctx(ctx)

	containers, err := d.runtime.ListContainers(ctx)
	if err != nil {
		return entity.NewDeployError(entity.StageList, err)
	}

	image := req.MatchImage()
	matches := lo.Filter(containers, func(c entity.ContainerInstance, _ int) bool {
		return c.Image == image
	})
	if len(matches) == 0 {
		log.Info().Str("image", image).Msg("no running container to stop")
		return nil
	}

	for _, c := range matches {
		log.Info().Str("container", c.ID).Str("name", c.Name).Msg("removing existing container")
		if err := d.runtime.StopAndRemove(ctx, c.ID); err != nil {
			return entity.NewDeployError(entity.StageStop, err)
		}
		log.Info().Str("container", c.ID).Msg("removed existing container")
	}
	return nil
}

func (d *deployPackageUsecaseImpl) pull(ctx context.Context, req *entity.DeploymentRequest) error {
	if err := d.runtime.PullImage(ctx, req.ImageReference(), d.credentials.Credentials()); err != nil {
		return entity.NewDeployError(entity.StagePull, err)
	}
	zerolog.Ctx(ctx).Info().Str("image", req.ImageReference()).Msg("pulled image")
	return nil
}

func (d *deployPackageUsecaseImpl) run(ctx context.Context, req *entity.DeploymentRequest) error {
	inst, err := d.runtime.RunContainer(ctx, req.ImageReference(), runtime.RunOptions{
		Name: req.ContainerName(),
		Labels: map[string]string{
			runtime.LabelPackage: req.Package,
			runtime.LabelVersion: req.Version,
		},
	})
	if err != nil {
		return entity.NewDeployError(entity.StageRun, err)
	}
	zerolog.Ctx(ctx).Info().Str("container", inst.ID).Str("name", inst.Name).Msg("started new container")
	return nil
}

// record and transition keep the in-memory ledger up to date. Ledger errors
// never change the deployment outcome.
func (d *deployPackageUsecaseImpl) record(ctx context.Context, req *entity.DeploymentRequest) *entity.Deployment {
	dep, err := d.deployments.Create(ctx, entity.NewDeployment(req))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record deployment")
		return nil
	}
	return dep
}

func (d *deployPackageUsecaseImpl) transition(ctx context.Context, dep *entity.Deployment, status entity.DeploymentStatus, cause error) {
	if dep == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := d.deployments.UpdateStatus(ctx, dep.ID, status, reason); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("deployment", dep.ID.String()).Msg("failed to update deployment status")
	}
}

func NewDeployPackageUsecase(injector *do.Injector) (DeployPackageUsecase, error) {
	return &deployPackageUsecaseImpl{
		runtime:     do.MustInvoke[runtime.ContainerRuntime](injector),
		credentials: do.MustInvoke[runtime.CredentialsProvider](injector),
		deployments: do.MustInvoke[repository.DeploymentRepository](injector),
		locks:       do.MustInvoke[*utils.KeyedMutex](injector),
	}, nil
}
