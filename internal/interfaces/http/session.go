package http

import (
	"context"
	"fmt"
	"sync"

	appsync "github.com/jhoicas/obrastock-api/internal/application/sync"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
	"github.com/jhoicas/obrastock-api/pkg/logger"
)

// SessionDeps dependencias compartidas por todas las sesiones.
type SessionDeps struct {
	Materials    appsync.MaterialRepository
	Projects     appsync.ProjectRepository
	MaterialFeed appsync.MaterialFeed
	ProjectFeed  appsync.ProjectFeed
	Log          *logger.Logger
}

// Session estado de sincronización de un usuario autenticado: su motor de
// proyectos (dueño de la selección activa) y el motor de materiales del
// proyecto activo. Cambiar de proyecto cancela la suscripción del alcance
// anterior antes de abrir la nueva.
type Session struct {
	userID   string
	deps     SessionDeps
	projects *appsync.ProjectSync

	// ctx raíz de la sesión; las suscripciones cuelgan de él.
	ctx    context.Context
	cancel context.CancelFunc

	// switchMu serializa los re-alcances del motor de materiales: sin él,
	// dos cambios de proyecto concurrentes pueden pisar el cancel del otro
	// y dejar su suscripción viva hasta el cierre de la sesión.
	switchMu sync.Mutex

	mu              sync.Mutex
	materials       *appsync.MaterialSync
	cancelMaterials context.CancelFunc
}

// SessionManager registro de sesiones por usuario. Una sesión se crea en el
// primer acceso y vive hasta el shutdown del proceso.
type SessionManager struct {
	deps SessionDeps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager construye el registro.
func NewSessionManager(deps SessionDeps) *SessionManager {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &SessionManager{deps: deps, sessions: make(map[string]*Session)}
}

// Session devuelve la sesión del usuario, creándola (con carga inicial y
// suscripciones) si es la primera vez.
func (m *SessionManager) Session(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.newSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Otra petición concurrente pudo ganar la carrera; la suya prevalece.
	if existing, ok := m.sessions[userID]; ok {
		s.close()
		return existing, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// Shutdown cancela todas las suscripciones de todas las sesiones.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.close()
	}
	m.sessions = make(map[string]*Session)
}

func (m *SessionManager) newSession(ctx context.Context, userID string) (*Session, error) {
	rootCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		userID: userID,
		deps:   m.deps,
		ctx:    rootCtx,
		cancel: cancel,
	}
	s.projects = appsync.NewProjectSync(appsync.ProjectSyncDeps{
		UserID: userID,
		Repo:   m.deps.Projects,
		Feed:   m.deps.ProjectFeed,
		Log:    m.deps.Log,
	})
	if err := s.projects.Load(ctx); err != nil {
		cancel()
		return nil, err
	}
	if err := s.projects.Start(rootCtx); err != nil {
		cancel()
		return nil, err
	}
	if current, ok := s.projects.Current(); ok {
		if err := s.openMaterials(ctx, current); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// Projects devuelve el motor de proyectos de la sesión.
func (s *Session) Projects() *appsync.ProjectSync {
	return s.projects
}

// Materials devuelve el motor de materiales del proyecto activo, o un
// PreconditionError si no hay ninguno seleccionado.
func (s *Session) Materials() (*appsync.MaterialSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.materials == nil {
		return nil, &domain.PreconditionError{Missing: "project"}
	}
	return s.materials, nil
}

// SwitchProject cambia el proyecto activo y re-alcanza el motor de
// materiales al nuevo proyecto.
func (s *Session) SwitchProject(ctx context.Context, id string) (entity.Project, error) {
	p, err := s.projects.Switch(id)
	if err != nil {
		return entity.Project{}, err
	}
	if err := s.openMaterials(ctx, p); err != nil {
		return entity.Project{}, err
	}
	return p, nil
}

// CreateProject crea el proyecto, lo deja activo y abre su motor de
// materiales (vacío).
func (s *Session) CreateProject(ctx context.Context, name, fileName string) (entity.Project, error) {
	p, err := s.projects.Create(ctx, name, fileName)
	if err != nil {
		return entity.Project{}, err
	}
	if err := s.openMaterials(ctx, p); err != nil {
		return entity.Project{}, err
	}
	return p, nil
}

// DeleteProject borra el proyecto y, si era el activo, re-alcanza los
// materiales al nuevo activo (o los cierra si no queda ninguno).
func (s *Session) DeleteProject(ctx context.Context, id string) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	if current, ok := s.projects.Current(); ok {
		if s.materialScope() != current.ID {
			return s.openMaterials(ctx, current)
		}
		return nil
	}
	s.closeMaterials()
	return nil
}

// openMaterials cancela la suscripción de materiales anterior (si la hay) y
// abre un motor nuevo con alcance en project. El orden importa: primero se
// corta el feed viejo, después se carga y suscribe el nuevo.
func (s *Session) openMaterials(ctx context.Context, project entity.Project) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.cancelMaterials != nil {
		s.cancelMaterials()
		s.cancelMaterials = nil
	}
	s.materials = nil
	s.mu.Unlock()

	engine := appsync.NewMaterialSync(appsync.MaterialSyncDeps{
		Project: project,
		UserID:  s.userID,
		Repo:    s.deps.Materials,
		Feed:    s.deps.MaterialFeed,
		Touch:   s.projects.Touch,
		Current: func() bool { return s.projects.IsCurrent(project.ID) },
		Log:     s.deps.Log,
	})
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("abrir materiales del proyecto %s: %w", project.ID, err)
	}
	subCtx, cancel := context.WithCancel(s.ctx)
	if err := engine.Start(subCtx); err != nil {
		cancel()
		return fmt.Errorf("abrir materiales del proyecto %s: %w", project.ID, err)
	}

	s.mu.Lock()
	s.materials = engine
	s.cancelMaterials = cancel
	s.mu.Unlock()
	return nil
}

func (s *Session) closeMaterials() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelMaterials != nil {
		s.cancelMaterials()
		s.cancelMaterials = nil
	}
	s.materials = nil
}

func (s *Session) materialScope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.materials == nil {
		return ""
	}
	return s.materials.Project().ID
}

func (s *Session) close() {
	s.closeMaterials()
	s.cancel()
}
