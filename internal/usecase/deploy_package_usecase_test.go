package usecase

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yz4230/deployhook/internal/entity"
	"github.com/yz4230/deployhook/internal/repository"
	"github.com/yz4230/deployhook/internal/runtime"
	"github.com/yz4230/deployhook/internal/utils"
)

type fakeRuntime struct {
	mu         sync.Mutex
	containers []entity.ContainerInstance
	listErr    error
	stopErr    error
	pullErr    error
	runErr     error
	// a non-nil gate blocks the operation until it is closed
	listGate chan struct{}
	pullGate chan struct{}
	calls    []string
	auths    []entity.Credentials
	labels   []map[string]string
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeRuntime) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeRuntime) Ping(ctx context.Context) error { return nil }

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]entity.ContainerInstance, error) {
	f.record("list")
	if f.listGate != nil {
		<-f.listGate
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.containers), nil
}

func (f *fakeRuntime) StopAndRemove(ctx context.Context, id string) error {
	f.record("stop " + id)
	return f.stopErr
}

func (f *fakeRuntime) PullImage(ctx context.Context, ref string, auth entity.Credentials) error {
	if f.pullGate != nil {
		<-f.pullGate
	}
	f.record("pull " + ref)
	f.mu.Lock()
	f.auths = append(f.auths, auth)
	f.mu.Unlock()
	return f.pullErr
}

func (f *fakeRuntime) RunContainer(ctx context.Context, ref string, opts runtime.RunOptions) (entity.ContainerInstance, error) {
	f.record("run " + ref + " " + opts.Name)
	f.mu.Lock()
	f.labels = append(f.labels, opts.Labels)
	f.mu.Unlock()
	if f.runErr != nil {
		return entity.ContainerInstance{}, f.runErr
	}
	return entity.ContainerInstance{ID: "new-" + opts.Name, Image: ref, Name: opts.Name, State: "running"}, nil
}

type staticCredentials entity.Credentials

func (s staticCredentials) Credentials() entity.Credentials { return entity.Credentials(s) }

type deployFixture struct {
	usecase     DeployPackageUsecase
	deployments repository.DeploymentRepository
	locks       *utils.KeyedMutex
}

func newDeployFixture(t *testing.T, rt *fakeRuntime) *deployFixture {
	t.Helper()
	db, err := repository.NewSQLiteDB()
	require.NoError(t, err)

	f := &deployFixture{
		deployments: repository.NewDeploymentRepository(db),
		locks:       utils.NewKeyedMutex(),
	}
	injector := do.New()
	do.ProvideValue[runtime.ContainerRuntime](injector, rt)
	do.ProvideValue[runtime.CredentialsProvider](injector, staticCredentials{Username: "bot", Password: "s3cret"})
	do.ProvideValue(injector, f.deployments)
	do.ProvideValue(injector, f.locks)

	f.usecase, err = NewDeployPackageUsecase(injector)
	require.NoError(t, err)
	return f
}

func testContext() context.Context {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return logger.WithContext(context.Background())
}

func (f *deployFixture) lastStatus(t *testing.T) *entity.Deployment {
	t.Helper()
	deps, err := f.deployments.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, deps)
	return deps[0]
}

func TestDeployPackage_NoExistingContainer(t *testing.T) {
	rt := &fakeRuntime{}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"list", "pull org/svc", "run org/svc svc"}, rt.Calls())
	assert.Equal(t, "run org/svc svc", rt.Calls()[2])
	assert.Equal(t, 0, rt.count("stop"))
	assert.Equal(t, []entity.Credentials{{Username: "bot", Password: "s3cret"}}, rt.auths)
	assert.Equal(t, map[string]string{runtime.LabelPackage: "org/svc", runtime.LabelVersion: ""}, rt.labels[0])
	assert.Equal(t, entity.DeploymentStatusSuccess, f.lastStatus(t).Status)
}

func TestDeployPackage_ReplacesMatchingContainer(t *testing.T) {
	rt := &fakeRuntime{containers: []entity.ContainerInstance{
		{ID: "c1", Image: "org/svc", Name: "svc", State: "running"},
		{ID: "c2", Image: "org/other", Name: "other", State: "running"},
		{ID: "c3", Image: "org/svc:1.0", Name: "svc-old", State: "running"},
	}}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc", Version: "2.0"})
	require.NoError(t, err)

	calls := rt.Calls()
	assert.ElementsMatch(t, []string{"list", "stop c1", "pull org/svc:2.0", "run org/svc:2.0 svc"}, calls)
	assert.Equal(t, "run org/svc:2.0 svc", calls[len(calls)-1])
}

func TestDeployPackage_StopsEveryMatch(t *testing.T) {
	rt := &fakeRuntime{containers: []entity.ContainerInstance{
		{ID: "c1", Image: "svc"},
		{ID: "c2", Image: "svc"},
		{ID: "c3", Image: "org/svc"},
	}}
	f := newDeployFixture(t, rt)

	require.NoError(t, f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "svc"}))

	calls := rt.Calls()
	assert.Contains(t, calls, "stop c1")
	assert.Contains(t, calls, "stop c2")
	assert.NotContains(t, calls, "stop c3")
	assert.Contains(t, calls, "run svc svc")
}

func TestDeployPackage_PullFailure(t *testing.T) {
	rt := &fakeRuntime{
		containers: []entity.ContainerInstance{{ID: "c1", Image: "org/svc"}},
		pullErr:    errors.New("unauthorized: incorrect username or password"),
	}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrRuntimePull)
	assert.NotContains(t, err.Error(), "s3cret")

	assert.Eventually(t, func() bool { return f.locks.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rt.count("run"))

	dep := f.lastStatus(t)
	assert.Equal(t, entity.DeploymentStatusFailed, dep.Status)
	assert.Equal(t, err.Error(), dep.Reason)
}

func TestDeployPackage_StopFailure(t *testing.T) {
	rt := &fakeRuntime{
		containers: []entity.ContainerInstance{{ID: "c1", Image: "org/svc"}},
		stopErr:    errors.New("cannot stop container"),
	}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	assert.ErrorIs(t, err, entity.ErrRuntimeStop)

	assert.Eventually(t, func() bool { return f.locks.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rt.count("run"))
}

func TestDeployPackage_ListFailure(t *testing.T) {
	rt := &fakeRuntime{listErr: errors.New("connection refused")}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	assert.ErrorIs(t, err, entity.ErrRuntimeList)

	assert.Eventually(t, func() bool { return f.locks.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rt.count("run"))
}

func TestDeployPackage_RunFailure(t *testing.T) {
	rt := &fakeRuntime{runErr: runtime.ErrContainerAlreadyExists}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	assert.ErrorIs(t, err, entity.ErrRuntimeRun)
	assert.ErrorIs(t, err, runtime.ErrContainerAlreadyExists)
	assert.Equal(t, 0, f.locks.Len())
}

func TestDeployPackage_FailureDoesNotWaitForOtherFork(t *testing.T) {
	rt := &fakeRuntime{
		listGate: make(chan struct{}),
		pullErr:  errors.New("manifest unknown"),
	}
	f := newDeployFixture(t, rt)

	done := make(chan error, 1)
	go func() {
		done <- f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, entity.ErrRuntimePull)
	case <-time.After(time.Second):
		t.Fatal("deployment waited for the blocked stop fork")
	}

	// the stop fork still holds the package lock
	assert.Equal(t, 1, f.locks.Len())
	close(rt.listGate)
	assert.Eventually(t, func() bool { return f.locks.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rt.count("run"))
}

func TestDeployPackage_RunWaitsForBothForks(t *testing.T) {
	rt := &fakeRuntime{pullGate: make(chan struct{})}
	f := newDeployFixture(t, rt)

	done := make(chan error, 1)
	go func() {
		done <- f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc"})
	}()

	assert.Eventually(t, func() bool { return rt.count("list") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rt.count("run"))

	close(rt.pullGate)
	require.NoError(t, <-done)
	calls := rt.Calls()
	assert.Equal(t, "run org/svc svc", calls[len(calls)-1])
}

func TestDeployPackage_SamePackageIsSerialized(t *testing.T) {
	rt := &fakeRuntime{pullGate: make(chan struct{})}
	f := newDeployFixture(t, rt)

	wg := &sync.WaitGroup{}
	errs := make(chan error, 2)
	for _, version := range []string{"1.0", "2.0"} {
		version := version
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: "org/svc", Version: version})
		}()
	}

	assert.Eventually(t, func() bool { return rt.count("list") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rt.count("list"))

	close(rt.pullGate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, rt.count("run"))
}

func TestDeployPackage_InvalidRequest(t *testing.T) {
	rt := &fakeRuntime{}
	f := newDeployFixture(t, rt)

	err := f.usecase.Execute(testContext(), &entity.DeploymentRequest{Version: "1.0"})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Empty(t, rt.Calls())
}

func TestListDeploymentUsecase(t *testing.T) {
	rt := &fakeRuntime{}
	f := newDeployFixture(t, rt)
	for _, pkg := range []string{"org/a", "org/b"} {
		require.NoError(t, f.usecase.Execute(testContext(), &entity.DeploymentRequest{Package: pkg}))
	}

	injector := do.New()
	do.ProvideValue(injector, f.deployments)
	list, err := NewListDeploymentUsecase(injector)
	require.NoError(t, err)

	all, err := list.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyB, err := list.Execute(context.Background(), "org/b")
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, "org/b", onlyB[0].Package)

	get, err := NewGetDeploymentByIdUsecase(injector)
	require.NoError(t, err)
	found, err := get.Execute(context.Background(), onlyB[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusSuccess, found.Status)
}
