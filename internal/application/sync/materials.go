// Package sync implementa la capa de sincronización optimista entre el
// estado local de inventario y el store remoto: motor de mutaciones
// (aplicar local → escribir remoto → confirmar o revertir), reconciliador
// del change feed y filtro de vista sobre la colección local.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
	"github.com/jhoicas/obrastock-api/pkg/logger"
)

// AdjustOp dirección de un ajuste de cantidad.
type AdjustOp string

const (
	AdjustIncrease AdjustOp = "increase"
	AdjustDecrease AdjustOp = "decrease"
)

// MaterialSyncDeps dependencias explícitas del motor: alcance (proyecto),
// usuario, store remoto y feed. Sin singletons ambientales.
type MaterialSyncDeps struct {
	Project entity.Project
	UserID  string
	Repo    MaterialRepository
	Feed    MaterialFeed
	// Touch toca el updated_at del proyecto contenedor tras cada mutación de
	// material. Se invoca fire-and-forget: su fallo jamás revierte ni bloquea
	// la operación que lo disparó.
	Touch func(ctx context.Context, projectID string) error
	// Current indica si este alcance sigue siendo el proyecto activo; guarda
	// la limpieza de estado de UI compartido cuando una mutación termina
	// después de un cambio de proyecto. nil equivale a "siempre activo".
	Current func() bool
	Log     *logger.Logger
	// Now permite fijar el reloj en tests. El default trunca a microsegundos,
	// la precisión con la que PostgreSQL devuelve los timestamps que el
	// cliente envió (la correspondencia eco↔alta provisional compara
	// igualdad exacta de created_at).
	Now func() time.Time
}

// MaterialSync motor de mutaciones optimistas para los materiales de un
// proyecto, más su reconciliador de eventos. Una instancia por selección de
// proyecto; cambiar de proyecto implica cancelar el contexto de Start y
// construir una instancia nueva.
type MaterialSync struct {
	project entity.Project
	userID  string
	repo    MaterialRepository
	feed    MaterialFeed
	col     *MaterialCollection
	touch   func(ctx context.Context, projectID string) error
	current func() bool
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	editing string // id del material "en edición" en la UI; "" si ninguno
}

// NewMaterialSync construye el motor. No hace IO: llamar Load y Start después.
func NewMaterialSync(d MaterialSyncDeps) *MaterialSync {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return &MaterialSync{
		project: d.Project,
		userID:  d.UserID,
		repo:    d.Repo,
		feed:    d.Feed,
		col:     NewMaterialCollection(),
		touch:   d.Touch,
		current: d.Current,
		log:     d.Log,
		now:     d.Now,
	}
}

// Load trae del store remoto la colección completa del proyecto.
func (s *MaterialSync) Load(ctx context.Context) error {
	if err := s.preconditions(); err != nil {
		return err
	}
	items, err := s.repo.ListByProject(ctx, s.project.ID, s.userID)
	if err != nil {
		return fmt.Errorf("cargar materiales: %w", err)
	}
	s.col.SetAll(items)
	return nil
}

// Start abre la suscripción al change feed del proyecto y consume eventos
// hasta que ctx se cancele. La suscripción del alcance anterior debe estar
// cancelada antes de llamar (lo garantiza la sesión al cambiar de proyecto).
func (s *MaterialSync) Start(ctx context.Context) error {
	events, err := s.feed.SubscribeMaterials(ctx, s.project.ID)
	if err != nil {
		return fmt.Errorf("suscribir materiales: %w", err)
	}
	go func() {
		for ev := range events {
			s.applyEvent(ev)
		}
	}()
	return nil
}

// Materials devuelve la colección local en su orden actual.
func (s *MaterialSync) Materials() []entity.Material {
	return s.col.List()
}

// Filtered devuelve la vista filtrada de la colección actual.
func (s *MaterialSync) Filtered(term, category string) []entity.Material {
	return FilterMaterials(s.col.List(), term, category)
}

// Project devuelve el proyecto (alcance) de este motor.
func (s *MaterialSync) Project() entity.Project {
	return s.project
}

// Editing devuelve el id del material en edición, o cadena vacía.
func (s *MaterialSync) Editing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// SetEditing fija el material en edición.
func (s *MaterialSync) SetEditing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = id
}

// Add alta optimista: inserta una fila especulativa con id temporal, escribe
// en el remoto y reconcilia la respuesta. En fallo elimina la fila
// especulativa y propaga el error; no reintenta.
func (s *MaterialSync) Add(ctx context.Context, draft record.MaterialDraft) (entity.Material, error) {
	if err := s.preconditions(); err != nil {
		return entity.Material{}, err
	}

	now := s.now()
	tempID := newTempID(now)
	speculative := draft.Material(tempID, s.project.ID, s.userID, now)

	s.col.InsertOptimistic(speculative)

	confirmed, err := s.repo.Insert(ctx, speculative)
	if err != nil {
		s.col.Discard(tempID)
		return entity.Material{}, &domain.RemoteOperationError{Op: "insert", Cause: err}
	}

	// Sección crítica: reemplazo de fila + canje provisional temp→permanente
	// en una sola toma del lock. Si el eco del feed llegó primero, esto es un
	// no-op y la identidad ya quedó resuelta.
	s.col.Confirm(tempID, confirmed)

	s.touchProject()
	return confirmed, nil
}

// Update actualización parcial optimista. Si el material no existe localmente
// es un no-op (no un error). En fallo restaura el snapshot exacto previo a la
// mutación, no un estado recalculado.
func (s *MaterialSync) Update(ctx context.Context, id string, patch record.MaterialPatch) error {
	if err := s.preconditions(); err != nil {
		return err
	}
	snapshot, ok := s.col.Get(id)
	if !ok {
		return nil
	}

	now := s.now()
	patch.UpdatedAt = &now
	s.col.Replace(id, record.ApplyMaterialPatch(snapshot, patch))

	if err := s.repo.Update(ctx, id, s.userID, patch); err != nil {
		s.col.Replace(id, snapshot)
		return &domain.RemoteOperationError{Op: "update", Cause: err}
	}

	// Limpiar el puntero "en edición" solo si este alcance sigue activo: una
	// mutación que termina tras un cambio de proyecto no debe tocar estado de
	// UI del proyecto ahora activo (los datos de SU colección sí se aplican).
	if s.isCurrent() && s.Editing() == id {
		s.SetEditing("")
	}

	s.touchProject()
	return nil
}

// Delete borrado optimista. El snapshot completo se toma antes de quitar la
// fila: el rollback reinserta en la posición que dicta el orden por fecha de
// creación descendente, no en el índice original.
func (s *MaterialSync) Delete(ctx context.Context, id string) error {
	if err := s.preconditions(); err != nil {
		return err
	}
	snapshot, ok := s.col.Remove(id)
	if !ok {
		return nil
	}

	if err := s.repo.Delete(ctx, id, s.userID); err != nil {
		s.col.ReinsertOrdered(snapshot)
		return &domain.RemoteOperationError{Op: "delete", Cause: err}
	}

	s.touchProject()
	return nil
}

// AdjustQuantity ajuste de cantidad optimista. delta debe ser no negativo; la
// resta se recorta en cero (el stock nunca es negativo), la suma es exacta.
// En fallo revierte solo el valor numérico previo, no la entidad completa.
func (s *MaterialSync) AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal, op AdjustOp) error {
	if err := s.preconditions(); err != nil {
		return err
	}
	if delta.IsNegative() {
		return domain.ErrInvalidInput
	}
	m, ok := s.col.Get(id)
	if !ok {
		return nil
	}

	prev := m.Quantity
	var next decimal.Decimal
	switch op {
	case AdjustIncrease:
		next = prev.Add(delta)
	case AdjustDecrease:
		next = prev.Sub(delta)
		if next.IsNegative() {
			next = decimal.Zero
		}
	default:
		return domain.ErrInvalidInput
	}

	now := s.now()
	s.col.SetQuantity(id, next, &now)

	patch := record.MaterialPatch{Quantity: &next, UpdatedAt: &now}
	if err := s.repo.Update(ctx, id, s.userID, patch); err != nil {
		// Rollback del valor numérico; el updated_at especulativo se queda,
		// igual que en el comportamiento original.
		s.col.SetQuantity(id, prev, nil)
		return &domain.RemoteOperationError{Op: "update", Cause: err}
	}

	s.touchProject()
	return nil
}

// applyEvent pliega un evento del feed en la colección. Los eventos de otro
// alcance nunca llegan aquí: el feed filtra por project_id y la suscripción
// se cancela antes de cambiar de proyecto.
func (s *MaterialSync) applyEvent(ev MaterialEvent) {
	switch ev.Type {
	case EventInsert:
		if ev.New == nil {
			return
		}
		s.col.ApplyInsert(record.ToMaterial(*ev.New))
	case EventUpdate:
		if ev.New == nil {
			return
		}
		s.col.ApplyUpdate(record.ToMaterial(*ev.New))
	case EventDelete:
		if ev.Old == nil {
			return
		}
		s.col.ApplyDelete(ev.Old.ID)
	}
}

func (s *MaterialSync) preconditions() error {
	if s.project.ID == "" {
		return &domain.PreconditionError{Missing: "project"}
	}
	if s.userID == "" {
		return &domain.PreconditionError{Missing: "user"}
	}
	return nil
}

func (s *MaterialSync) isCurrent() bool {
	return s.current == nil || s.current()
}

// touchProject toca el updated_at del proyecto en segundo plano. Errores solo
// se registran; nunca se propagan ni revierten la operación disparadora.
func (s *MaterialSync) touchProject() {
	if s.touch == nil {
		return
	}
	projectID := s.project.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.touch(ctx, projectID); err != nil {
			s.log.Warn().Err(err).Str("project_id", projectID).Msg("tocar updated_at del proyecto")
		}
	}()
}

// newTempID genera un id provisional reconocible: temp-<unixms>-<aleatorio>.
func newTempID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", entity.TempIDPrefix, now.UnixMilli(), uuid.NewString()[:8])
}
