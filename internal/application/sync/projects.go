package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
	"github.com/jhoicas/obrastock-api/pkg/logger"
)

// ProjectSyncDeps dependencias explícitas del motor de proyectos.
type ProjectSyncDeps struct {
	UserID string
	Repo   ProjectRepository
	Feed   ProjectFeed
	Log    *logger.Logger
	Now    func() time.Time
}

// ProjectSync motor de mutaciones optimistas para los proyectos de un
// usuario. Estructuralmente paralelo a MaterialSync, y además dueño de la
// selección de proyecto activo: a lo sumo un proyecto es "current", y su
// identidad define el alcance del reconciliador de materiales.
type ProjectSync struct {
	userID string
	repo   ProjectRepository
	feed   ProjectFeed
	col    *ProjectCollection
	log    *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	current    entity.Project
	hasCurrent bool
}

// NewProjectSync construye el motor. No hace IO: llamar Load y Start después.
func NewProjectSync(d ProjectSyncDeps) *ProjectSync {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return &ProjectSync{
		userID: d.UserID,
		repo:   d.Repo,
		feed:   d.Feed,
		col:    NewProjectCollection(),
		log:    d.Log,
		now:    d.Now,
	}
}

// Load trae los proyectos del usuario. Si no hay proyecto activo y la lista
// no está vacía, selecciona el más reciente.
func (s *ProjectSync) Load(ctx context.Context) error {
	if s.userID == "" {
		return &domain.PreconditionError{Missing: "user"}
	}
	items, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("cargar proyectos: %w", err)
	}
	s.col.SetAll(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCurrent {
		if first, ok := s.col.First(); ok {
			s.current, s.hasCurrent = first, true
		}
	}
	return nil
}

// Start abre la suscripción al feed de proyectos del usuario y consume
// eventos hasta que ctx se cancele.
func (s *ProjectSync) Start(ctx context.Context) error {
	events, err := s.feed.SubscribeProjects(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("suscribir proyectos: %w", err)
	}
	go func() {
		for ev := range events {
			s.applyEvent(ev)
		}
	}()
	return nil
}

// Projects devuelve la colección local en su orden actual.
func (s *ProjectSync) Projects() []entity.Project {
	return s.col.List()
}

// Current devuelve el proyecto activo, si hay alguno.
func (s *ProjectSync) Current() (entity.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// IsCurrent indica si el id corresponde al proyecto activo.
func (s *ProjectSync) IsCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCurrent && s.current.ID == id
}

// Switch cambia el proyecto activo a uno existente de la colección.
func (s *ProjectSync) Switch(id string) (entity.Project, error) {
	p, ok := s.col.Get(id)
	if !ok {
		return entity.Project{}, domain.ErrNotFound
	}
	s.setCurrent(p)
	return p, nil
}

// Create alta optimista de proyecto. El proyecto recién creado pasa a ser el
// activo de inmediato; si el alta remota falla se revierte también la
// selección.
func (s *ProjectSync) Create(ctx context.Context, name, fileName string) (entity.Project, error) {
	if s.userID == "" {
		return entity.Project{}, &domain.PreconditionError{Missing: "user"}
	}

	now := s.now()
	tempID := newTempID(now)
	speculative := entity.Project{
		ID:        tempID,
		UserID:    s.userID,
		Name:      name,
		FileName:  fileName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.col.InsertOptimistic(speculative)
	s.setCurrent(speculative)

	confirmed, err := s.repo.Insert(ctx, speculative)
	if err != nil {
		s.col.Discard(tempID)
		s.clearCurrentIf(tempID)
		return entity.Project{}, &domain.RemoteOperationError{Op: "insert", Cause: err}
	}

	s.col.Confirm(tempID, confirmed)
	s.mu.Lock()
	if s.hasCurrent && s.current.ID == tempID {
		s.current = confirmed
	}
	s.mu.Unlock()
	return confirmed, nil
}

// Update actualización parcial optimista con rollback por snapshot exacto.
func (s *ProjectSync) Update(ctx context.Context, id string, patch record.ProjectPatch) error {
	if s.userID == "" {
		return &domain.PreconditionError{Missing: "user"}
	}
	snapshot, ok := s.col.Get(id)
	if !ok {
		return nil
	}

	now := s.now()
	if patch.UpdatedAt == nil {
		patch.UpdatedAt = &now
	}
	updated := record.ApplyProjectPatch(snapshot, patch)
	s.col.Replace(id, updated)
	s.refreshCurrentIf(id, updated)

	if err := s.repo.Update(ctx, id, s.userID, patch); err != nil {
		s.col.Replace(id, snapshot)
		s.refreshCurrentIf(id, snapshot)
		return &domain.RemoteOperationError{Op: "update", Cause: err}
	}
	return nil
}

// Touch toca solo el updated_at del proyecto. Es el callback fire-and-forget
// que los motores de material disparan tras cada mutación.
func (s *ProjectSync) Touch(ctx context.Context, id string) error {
	now := s.now()
	return s.Update(ctx, id, record.ProjectPatch{UpdatedAt: &now})
}

// Delete borrado optimista. Si el proyecto borrado era el activo, el más
// reciente de los restantes pasa a serlo (o ninguno). El rollback restaura
// fila y selección.
func (s *ProjectSync) Delete(ctx context.Context, id string) error {
	if s.userID == "" {
		return &domain.PreconditionError{Missing: "user"}
	}
	snapshot, ok := s.col.Remove(id)
	if !ok {
		return nil
	}

	wasCurrent := s.IsCurrent(id)
	if wasCurrent {
		if next, ok := s.col.First(); ok {
			s.setCurrent(next)
		} else {
			s.clearCurrent()
		}
	}

	if err := s.repo.Delete(ctx, id, s.userID); err != nil {
		s.col.ReinsertOrdered(snapshot)
		if wasCurrent {
			s.setCurrent(snapshot)
		}
		return &domain.RemoteOperationError{Op: "delete", Cause: err}
	}
	return nil
}

// applyEvent pliega un evento del feed, manteniendo coherente la selección:
// un update del proyecto activo la refresca, un delete la vacía.
func (s *ProjectSync) applyEvent(ev ProjectEvent) {
	switch ev.Type {
	case EventInsert:
		if ev.New == nil {
			return
		}
		s.col.ApplyInsert(record.ToProject(*ev.New))
	case EventUpdate:
		if ev.New == nil {
			return
		}
		p := record.ToProject(*ev.New)
		s.col.ApplyUpdate(p)
		s.refreshCurrentIf(p.ID, p)
	case EventDelete:
		if ev.Old == nil {
			return
		}
		s.col.ApplyDelete(ev.Old.ID)
		s.clearCurrentIf(ev.Old.ID)
	}
}

func (s *ProjectSync) setCurrent(p entity.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.hasCurrent = p, true
}

func (s *ProjectSync) clearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.hasCurrent = entity.Project{}, false
}

func (s *ProjectSync) clearCurrentIf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCurrent && s.current.ID == id {
		s.current, s.hasCurrent = entity.Project{}, false
	}
}

func (s *ProjectSync) refreshCurrentIf(id string, p entity.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCurrent && s.current.ID == id {
		s.current = p
	}
}
