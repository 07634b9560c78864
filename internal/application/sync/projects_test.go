package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

type fakeProjectRepo struct {
	mu        sync.Mutex
	seq       int
	listed    []entity.Project
	insertErr error
	updateErr error
	deleteErr error
	updates   []record.ProjectPatch
}

func (r *fakeProjectRepo) ListByUser(ctx context.Context, userID string) ([]entity.Project, error) {
	return r.listed, nil
}

func (r *fakeProjectRepo) Insert(ctx context.Context, p entity.Project) (entity.Project, error) {
	if r.insertErr != nil {
		return entity.Project{}, r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.ID = fmt.Sprintf("proj-%d", r.seq)
	return p, nil
}

func (r *fakeProjectRepo) Update(ctx context.Context, id, userID string, patch record.ProjectPatch) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, patch)
	return nil
}

func (r *fakeProjectRepo) Delete(ctx context.Context, id, userID string) error {
	return r.deleteErr
}

type fakeProjectFeed struct {
	ch chan ProjectEvent
}

func newFakeProjectFeed() *fakeProjectFeed {
	return &fakeProjectFeed{ch: make(chan ProjectEvent, 16)}
}

func (f *fakeProjectFeed) SubscribeProjects(ctx context.Context, userID string) (<-chan ProjectEvent, error) {
	return f.ch, nil
}

func newTestProjects(repo *fakeProjectRepo) *ProjectSync {
	return NewProjectSync(ProjectSyncDeps{
		UserID: "user-1",
		Repo:   repo,
		Feed:   newFakeProjectFeed(),
		Now:    func() time.Time { return testNow },
	})
}

func projectAt(id string, createdAt time.Time) entity.Project {
	return entity.Project{
		ID:        id,
		UserID:    "user-1",
		Name:      "Obra " + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestProjectLoad_SeleccionaElMasRecienteSiNoHayActivo(t *testing.T) {
	repo := &fakeProjectRepo{listed: []entity.Project{
		projectAt("proj-b", testNow),
		projectAt("proj-a", testNow.Add(-time.Hour)),
	}}
	s := newTestProjects(repo)

	require.NoError(t, s.Load(context.Background()))

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "proj-b", current.ID)
}

func TestProjectCreate_ElNuevoPasaASerActivo(t *testing.T) {
	repo := &fakeProjectRepo{}
	s := newTestProjects(repo)

	created, err := s.Create(context.Background(), "Obra Sur", "")
	require.NoError(t, err)

	assert.False(t, entity.IsTempID(created.ID))
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, created.ID, current.ID, "el proyecto confirmado queda como activo")
	require.Len(t, s.Projects(), 1)
	assert.Equal(t, created.ID, s.Projects()[0].ID)
}

func TestProjectCreate_FalloRemoto_RevierteAltaYSeleccion(t *testing.T) {
	repo := &fakeProjectRepo{insertErr: errors.New("rechazado")}
	s := newTestProjects(repo)

	_, err := s.Create(context.Background(), "Obra Sur", "")

	var remoteErr *domain.RemoteOperationError
	require.ErrorAs(t, err, &remoteErr)
	assert.Empty(t, s.Projects())
	_, ok := s.Current()
	assert.False(t, ok, "la selección optimista también se revierte")
}

func TestProjectCreate_SinUsuario_PreconditionError(t *testing.T) {
	s := NewProjectSync(ProjectSyncDeps{Repo: &fakeProjectRepo{}, Feed: newFakeProjectFeed()})

	_, err := s.Create(context.Background(), "Obra", "")

	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "user", pre.Missing)
}

func TestProjectUpdate_FalloRemoto_RestauraSnapshotYSeleccion(t *testing.T) {
	repo := &fakeProjectRepo{}
	s := newTestProjects(repo)
	p := projectAt("proj-1", testNow)
	s.col.ApplyInsert(p)
	s.setCurrent(p)

	repo.updateErr = errors.New("timeout")
	name := "Renombrada"
	err := s.Update(context.Background(), p.ID, record.ProjectPatch{Name: &name})
	require.Error(t, err)

	after, _ := s.col.Get(p.ID)
	assert.Equal(t, p, after, "snapshot exacto")
	current, _ := s.Current()
	assert.Equal(t, p.Name, current.Name, "la copia activa también se restaura")
}

func TestProjectDelete_ActivoPasaAlSiguiente(t *testing.T) {
	repo := &fakeProjectRepo{}
	s := newTestProjects(repo)
	older := projectAt("proj-a", testNow.Add(-time.Hour))
	newer := projectAt("proj-b", testNow)
	s.col.ApplyInsert(older)
	s.col.ApplyInsert(newer)
	s.setCurrent(newer)

	require.NoError(t, s.Delete(context.Background(), newer.ID))

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, older.ID, current.ID, "el más reciente restante queda activo")
}

func TestProjectDelete_FalloRemoto_RestauraFilaYSeleccion(t *testing.T) {
	repo := &fakeProjectRepo{deleteErr: errors.New("red caída")}
	s := newTestProjects(repo)
	p := projectAt("proj-1", testNow)
	s.col.ApplyInsert(p)
	s.setCurrent(p)

	err := s.Delete(context.Background(), p.ID)
	require.Error(t, err)

	require.Len(t, s.Projects(), 1)
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, p.ID, current.ID)
}

func TestProjectTouch_SoloUpdatedAt(t *testing.T) {
	repo := &fakeProjectRepo{}
	s := newTestProjects(repo)
	p := projectAt("proj-1", testNow.Add(-time.Hour))
	s.col.ApplyInsert(p)

	require.NoError(t, s.Touch(context.Background(), p.ID))

	require.Len(t, repo.updates, 1)
	fields := repo.updates[0].Fields()
	assert.Len(t, fields, 1)
	assert.Contains(t, fields, "updated_at")

	after, _ := s.col.Get(p.ID)
	assert.Equal(t, testNow, after.UpdatedAt)
	assert.Equal(t, p.Name, after.Name, "nada más cambió")
}

func TestProjectFeed_UpdateRefrescaElActivo(t *testing.T) {
	s := newTestProjects(&fakeProjectRepo{})
	p := projectAt("proj-1", testNow)
	s.col.ApplyInsert(p)
	s.setCurrent(p)

	p.Name = "Renombrada en otro dispositivo"
	rec := record.FromProject(p)
	s.applyEvent(ProjectEvent{Type: EventUpdate, New: &rec})

	current, _ := s.Current()
	assert.Equal(t, "Renombrada en otro dispositivo", current.Name)
}

func TestProjectFeed_DeleteVaciaLaSeleccion(t *testing.T) {
	s := newTestProjects(&fakeProjectRepo{})
	p := projectAt("proj-1", testNow)
	s.col.ApplyInsert(p)
	s.setCurrent(p)

	rec := record.FromProject(p)
	s.applyEvent(ProjectEvent{Type: EventDelete, Old: &rec})

	assert.Empty(t, s.Projects())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestProjectFeed_InsertIdempotente(t *testing.T) {
	s := newTestProjects(&fakeProjectRepo{})
	p := projectAt("proj-1", testNow)
	rec := record.FromProject(p)
	ev := ProjectEvent{Type: EventInsert, New: &rec}

	s.applyEvent(ev)
	s.applyEvent(ev)

	assert.Len(t, s.Projects(), 1)
}

func TestProjectSwitch_Desconocido(t *testing.T) {
	s := newTestProjects(&fakeProjectRepo{})

	_, err := s.Switch("no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
