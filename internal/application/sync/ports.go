package sync

import (
	"context"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// EventType tipo de evento del change feed.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// MaterialEvent notificación de cambio sobre la tabla de materiales, en forma
// de cable. New está presente en insert/update; Old en update/delete.
type MaterialEvent struct {
	Type EventType
	New  *record.MaterialRecord
	Old  *record.MaterialRecord
}

// ProjectEvent notificación de cambio sobre la tabla de proyectos.
type ProjectEvent struct {
	Type EventType
	New  *record.ProjectRecord
	Old  *record.ProjectRecord
}

// MaterialRepository puerto de persistencia de materiales. Toda escritura va
// acotada por id Y user_id (defensa contra escrituras entre usuarios, espejo
// del row-level security del store remoto).
type MaterialRepository interface {
	// ListByProject devuelve los materiales del proyecto en orden
	// created_at DESC, id DESC.
	ListByProject(ctx context.Context, projectID, userID string) ([]entity.Material, error)
	// Insert persiste el material y devuelve la fila confirmada por el store.
	Insert(ctx context.Context, m entity.Material) (entity.Material, error)
	// Update aplica un update parcial; solo toca las columnas del patch.
	Update(ctx context.Context, id, userID string, patch record.MaterialPatch) error
	Delete(ctx context.Context, id, userID string) error
}

// ProjectRepository puerto de persistencia de proyectos.
type ProjectRepository interface {
	ListByUser(ctx context.Context, userID string) ([]entity.Project, error)
	Insert(ctx context.Context, p entity.Project) (entity.Project, error)
	Update(ctx context.Context, id, userID string, patch record.ProjectPatch) error
	Delete(ctx context.Context, id, userID string) error
}

// MaterialFeed suscripción a eventos de cambio de materiales acotados a un
// proyecto. El canal se cierra cuando ctx se cancela; no hay replay de
// eventos anteriores a la suscripción.
type MaterialFeed interface {
	SubscribeMaterials(ctx context.Context, projectID string) (<-chan MaterialEvent, error)
}

// ProjectFeed suscripción a eventos de cambio de proyectos de un usuario.
type ProjectFeed interface {
	SubscribeProjects(ctx context.Context, userID string) (<-chan ProjectEvent, error)
}
