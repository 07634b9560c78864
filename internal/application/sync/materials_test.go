package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

// fakeMaterialRepo store remoto en memoria controlable: errores inyectables y
// compuertas para simular latencia de red (puntos de suspensión).
type fakeMaterialRepo struct {
	mu          sync.Mutex
	seq         int
	permanentID string // si no vacío, Insert devuelve este id
	insertErr   error
	updateErr   error
	deleteErr   error
	insertGate  chan struct{} // Insert bloquea hasta que se cierre
	deleteGate  chan struct{} // Delete bloquea hasta que se cierre
	updates     []record.MaterialPatch
}

func (r *fakeMaterialRepo) ListByProject(ctx context.Context, projectID, userID string) ([]entity.Material, error) {
	return nil, nil
}

func (r *fakeMaterialRepo) Insert(ctx context.Context, m entity.Material) (entity.Material, error) {
	if r.insertGate != nil {
		<-r.insertGate
	}
	if r.insertErr != nil {
		return entity.Material{}, r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.permanentID != "" {
		m.ID = r.permanentID
	} else {
		m.ID = fmt.Sprintf("mat-%d", r.seq)
	}
	return m, nil
}

func (r *fakeMaterialRepo) Update(ctx context.Context, id, userID string, patch record.MaterialPatch) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, patch)
	return nil
}

func (r *fakeMaterialRepo) Delete(ctx context.Context, id, userID string) error {
	if r.deleteGate != nil {
		<-r.deleteGate
	}
	return r.deleteErr
}

// fakeMaterialFeed feed de cambios alimentado por el test.
type fakeMaterialFeed struct {
	ch chan MaterialEvent
}

func newFakeMaterialFeed() *fakeMaterialFeed {
	return &fakeMaterialFeed{ch: make(chan MaterialEvent, 16)}
}

func (f *fakeMaterialFeed) SubscribeMaterials(ctx context.Context, projectID string) (<-chan MaterialEvent, error) {
	return f.ch, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

var (
	testProject = entity.Project{ID: "proj-1", UserID: "user-1", Name: "Obra Norte"}
	testNow     = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
)

func newTestSync(repo *fakeMaterialRepo, opts ...func(*MaterialSyncDeps)) *MaterialSync {
	deps := MaterialSyncDeps{
		Project: testProject,
		UserID:  "user-1",
		Repo:    repo,
		Feed:    newFakeMaterialFeed(),
		Now:     func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewMaterialSync(deps)
}

func cementDraft() record.MaterialDraft {
	return record.MaterialDraft{
		Name:        "Cement",
		Category:    "Cemento y Mortero",
		Brand:       "Holcim",
		Location:    "A1",
		Quantity:    decimal.NewFromInt(10),
		MinQuantity: decimal.NewFromInt(5),
		Price:       decimal.NewFromInt(8),
	}
}

// seed mete un material confirmado directamente en la colección.
func seed(s *MaterialSync, id string, createdAt time.Time) entity.Material {
	m := entity.Material{
		ID:        id,
		ProjectID: testProject.ID,
		UserID:    "user-1",
		Name:      "Material " + id,
		Category:  "Otros",
		Unit:      entity.DefaultUnit,
		Quantity:  decimal.NewFromInt(1),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.col.ApplyInsert(m)
	return m
}

func wireRecord(m entity.Material) *record.MaterialRecord {
	r := record.FromMaterial(m)
	return &r
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta optimista
// ──────────────────────────────────────────────────────────────────────────────

func TestAdd_ConfirmaConIdentidadPermanente(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)

	got, err := s.Add(context.Background(), cementDraft())
	require.NoError(t, err)

	assert.Equal(t, "mat-1", got.ID, "la respuesta lleva el id permanente del store")
	list := s.Materials()
	require.Len(t, list, 1)
	assert.Equal(t, "mat-1", list[0].ID)
	assert.False(t, entity.IsTempID(list[0].ID), "tras confirmar no queda id temporal visible")
	assert.Equal(t, testProject.ID, list[0].ProjectID)
	assert.Equal(t, "user-1", list[0].UserID)
}

func TestAdd_FalloRemoto_RevierteElAltaEspeculativa(t *testing.T) {
	repo := &fakeMaterialRepo{insertErr: errors.New("conexión rechazada")}
	s := newTestSync(repo)

	_, err := s.Add(context.Background(), cementDraft())

	var remoteErr *domain.RemoteOperationError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "insert", remoteErr.Op)
	assert.Empty(t, s.Materials(), "el rollback elimina la fila especulativa")
}

func TestAdd_SinProyecto_PreconditionError(t *testing.T) {
	s := newTestSync(&fakeMaterialRepo{}, func(d *MaterialSyncDeps) {
		d.Project = entity.Project{}
	})

	_, err := s.Add(context.Background(), cementDraft())

	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "project", pre.Missing)
	assert.ErrorIs(t, err, domain.ErrNoProject)
	assert.Empty(t, s.Materials(), "sin cambio de estado alguno")
}

func TestAdd_SinUsuario_PreconditionError(t *testing.T) {
	s := newTestSync(&fakeMaterialRepo{}, func(d *MaterialSyncDeps) {
		d.UserID = ""
	})

	_, err := s.Add(context.Background(), cementDraft())

	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "user", pre.Missing)
	assert.ErrorIs(t, err, domain.ErrNoUser)
}

func TestAdd_MidFlight_SoloIdTemporalVisible(t *testing.T) {
	gate := make(chan struct{})
	repo := &fakeMaterialRepo{insertGate: gate}
	s := newTestSync(repo)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Add(context.Background(), cementDraft())
	}()

	require.Eventually(t, func() bool { return s.col.Len() == 1 }, time.Second, time.Millisecond)
	list := s.Materials()
	assert.True(t, entity.IsTempID(list[0].ID), "antes de confirmar, la fila lleva id provisional")

	close(gate)
	<-done

	list = s.Materials()
	require.Len(t, list, 1, "nunca conviven fila temporal y permanente")
	assert.False(t, entity.IsTempID(list[0].ID))
}

// Escenario: el eco del feed llega antes que la respuesta directa del insert.
// La colección debe quedar con exactamente una fila con id permanente, y la
// respuesta directa posterior debe ser un no-op sobre la identidad resuelta.
func TestAdd_EcoDelFeedAntesQueRespuestaDirecta(t *testing.T) {
	gate := make(chan struct{})
	repo := &fakeMaterialRepo{insertGate: gate, permanentID: "mat-77"}
	s := newTestSync(repo)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Add(context.Background(), cementDraft())
	}()
	require.Eventually(t, func() bool { return s.col.Len() == 1 }, time.Second, time.Millisecond)

	// Eco del insert: id permanente, misma marca de creación y autor.
	echo := cementDraft().Material("mat-77", testProject.ID, "user-1", testNow)
	s.applyEvent(MaterialEvent{Type: EventInsert, New: wireRecord(echo)})

	list := s.Materials()
	require.Len(t, list, 1, "el eco resuelve el alta provisional, no duplica")
	assert.Equal(t, "mat-77", list[0].ID)

	close(gate)
	<-done

	list = s.Materials()
	require.Len(t, list, 1, "la respuesta directa posterior es un no-op")
	assert.Equal(t, "mat-77", list[0].ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Update
// ──────────────────────────────────────────────────────────────────────────────

func TestUpdate_FalloRemoto_RestauraSnapshotExacto(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)
	snapshot, _ := s.col.Get(m.ID)

	repo.updateErr = errors.New("timeout")
	name := "Cemento gris"
	err := s.Update(context.Background(), m.ID, record.MaterialPatch{Name: &name})

	var remoteErr *domain.RemoteOperationError
	require.ErrorAs(t, err, &remoteErr)

	after, ok := s.col.Get(m.ID)
	require.True(t, ok)
	assert.Equal(t, snapshot, after, "tras el rollback la entidad es idéntica al snapshot previo, no un estado recalculado")
}

func TestUpdate_MaterialInexistente_EsNoOp(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)

	name := "x"
	err := s.Update(context.Background(), "no-existe", record.MaterialPatch{Name: &name})

	assert.NoError(t, err, "actualizar un material ausente no es un error")
	assert.Empty(t, repo.updates, "tampoco llega al store remoto")
}

func TestUpdate_ExitoLimpiaPunteroDeEdicion(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)
	s.SetEditing(m.ID)

	name := "Cemento gris"
	require.NoError(t, s.Update(context.Background(), m.ID, record.MaterialPatch{Name: &name}))

	assert.Empty(t, s.Editing())
	after, _ := s.col.Get(m.ID)
	assert.Equal(t, "Cemento gris", after.Name)
}

// Escenario: cambio de proyecto con un update pendiente del proyecto antiguo.
// La colección del proyecto antiguo sí se actualiza; el estado de UI
// compartido (puntero de edición) no se toca porque el alcance ya no es el
// activo.
func TestUpdate_AlcanceYaNoActivo_NoTocaEstadoDeUI(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo, func(d *MaterialSyncDeps) {
		d.Current = func() bool { return false }
	})
	m := seed(s, "mat-1", testNow)
	s.SetEditing(m.ID)

	name := "Cemento gris"
	require.NoError(t, s.Update(context.Background(), m.ID, record.MaterialPatch{Name: &name}))

	assert.Equal(t, m.ID, s.Editing(), "el puntero de edición queda intacto")
	after, _ := s.col.Get(m.ID)
	assert.Equal(t, "Cemento gris", after.Name, "los datos del proyecto antiguo sí se aplican")
}

func TestUpdate_SoloEnviaLasColumnasDelPatch(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)

	name := "Nuevo nombre"
	require.NoError(t, s.Update(context.Background(), m.ID, record.MaterialPatch{Name: &name}))

	require.Len(t, repo.updates, 1)
	fields := repo.updates[0].Fields()
	assert.Len(t, fields, 2, "solo name y el updated_at refrescado")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "updated_at")
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

func TestDelete_EliminaLocalYRemoto(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)

	require.NoError(t, s.Delete(context.Background(), m.ID))
	assert.Empty(t, s.Materials())
}

// Escenario: el delete remoto falla; el material reaparece en la posición que
// dicta el orden por fecha de creación descendente, aunque hayan entrado
// filas nuevas entre medias.
func TestDelete_FalloRemoto_ReinsertaEnPosicionOrdenada(t *testing.T) {
	gate := make(chan struct{})
	repo := &fakeMaterialRepo{deleteGate: gate, deleteErr: errors.New("red caída")}
	s := newTestSync(repo)

	t1 := testNow.Add(-3 * time.Hour)
	t2 := testNow.Add(-2 * time.Hour)
	t3 := testNow.Add(-1 * time.Hour)
	seed(s, "mat-a", t1)
	m2 := seed(s, "mat-b", t2)
	seed(s, "mat-c", t3)

	done := make(chan error, 1)
	go func() { done <- s.Delete(context.Background(), m2.ID) }()
	require.Eventually(t, func() bool { return s.col.Len() == 2 }, time.Second, time.Millisecond)

	// Mientras el delete está en vuelo llega un insert de otro cliente, más
	// reciente que todo lo existente.
	newer := seed(s, "mat-d", testNow)
	_ = newer

	close(gate)
	err := <-done
	var remoteErr *domain.RemoteOperationError
	require.ErrorAs(t, err, &remoteErr)

	ids := make([]string, 0, 4)
	for _, m := range s.Materials() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"mat-d", "mat-c", "mat-b", "mat-a"}, ids,
		"reinserción por created_at descendente, no en el índice original")
}

func TestDelete_TimestampsIguales_DesempataPorId(t *testing.T) {
	repo := &fakeMaterialRepo{deleteErr: errors.New("falló")}
	s := newTestSync(repo)

	seed(s, "mat-b", testNow)
	mA := seed(s, "mat-a", testNow)

	err := s.Delete(context.Background(), mA.ID)
	require.Error(t, err)

	ids := []string{s.Materials()[0].ID, s.Materials()[1].ID}
	assert.Equal(t, []string{"mat-b", "mat-a"}, ids, "con created_at idéntico ordena por id descendente")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ajuste de cantidad
// ──────────────────────────────────────────────────────────────────────────────

func TestAdjustQuantity_RecortaEnCeroAlRestar(t *testing.T) {
	cases := []struct {
		name    string
		current int64
		delta   int64
		op      AdjustOp
		want    int64
	}{
		{"resta dentro de rango", 10, 4, AdjustDecrease, 6},
		{"resta exacta a cero", 10, 10, AdjustDecrease, 0},
		{"resta por debajo de cero recorta", 10, 15, AdjustDecrease, 0},
		{"suma exacta sin recorte", 10, 15, AdjustIncrease, 25},
		{"suma con delta cero", 10, 0, AdjustIncrease, 10},
		{"resta con delta cero", 10, 0, AdjustDecrease, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeMaterialRepo{}
			s := newTestSync(repo)
			m := seed(s, "mat-1", testNow)
			s.col.SetQuantity(m.ID, decimal.NewFromInt(tc.current), nil)

			err := s.AdjustQuantity(context.Background(), m.ID, decimal.NewFromInt(tc.delta), tc.op)
			require.NoError(t, err)

			after, _ := s.col.Get(m.ID)
			assert.True(t, after.Quantity.Equal(decimal.NewFromInt(tc.want)),
				"cantidad esperada %d, quedó %s", tc.want, after.Quantity)
		})
	}
}

func TestAdjustQuantity_FalloRemoto_RevierteSoloElValor(t *testing.T) {
	repo := &fakeMaterialRepo{updateErr: errors.New("timeout")}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)
	s.col.SetQuantity(m.ID, decimal.NewFromInt(10), nil)

	err := s.AdjustQuantity(context.Background(), m.ID, decimal.NewFromInt(3), AdjustDecrease)
	require.Error(t, err)

	after, _ := s.col.Get(m.ID)
	assert.True(t, after.Quantity.Equal(decimal.NewFromInt(10)), "la cantidad vuelve al valor previo")
}

func TestAdjustQuantity_DeltaNegativo_Rechazado(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)

	err := s.AdjustQuantity(context.Background(), m.ID, decimal.NewFromInt(-1), AdjustDecrease)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Escenario completo: alta de "Cement" y resta mayor que el stock.
func TestEscenario_AltaYRestaConRecorte(t *testing.T) {
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo)

	created, err := s.Add(context.Background(), cementDraft())
	require.NoError(t, err)
	require.Len(t, s.Materials(), 1)
	assert.False(t, entity.IsTempID(created.ID))

	require.NoError(t, s.AdjustQuantity(context.Background(), created.ID, decimal.NewFromInt(15), AdjustDecrease))

	after, _ := s.col.Get(created.ID)
	assert.True(t, after.Quantity.Equal(decimal.Zero), "10 - 15 recorta en 0, nunca -5")
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliador
// ──────────────────────────────────────────────────────────────────────────────

func TestReconciliador_InsertDuplicado_EsIdempotente(t *testing.T) {
	s := newTestSync(&fakeMaterialRepo{})
	m := cementDraft().Material("mat-9", testProject.ID, "user-1", testNow)
	ev := MaterialEvent{Type: EventInsert, New: wireRecord(m)}

	s.applyEvent(ev)
	s.applyEvent(ev)

	assert.Equal(t, 1, s.col.Len(), "aplicar dos veces el mismo insert no duplica")
}

func TestReconciliador_InsertDeOtroCliente_Antepone(t *testing.T) {
	s := newTestSync(&fakeMaterialRepo{})
	seed(s, "mat-1", testNow.Add(-time.Hour))

	remote := cementDraft().Material("mat-2", testProject.ID, "user-1", testNow)
	s.applyEvent(MaterialEvent{Type: EventInsert, New: wireRecord(remote)})

	list := s.Materials()
	require.Len(t, list, 2)
	assert.Equal(t, "mat-2", list[0].ID, "el insert ajeno se antepone (más reciente primero)")
}

func TestReconciliador_UpdateReemplazaIncondicional(t *testing.T) {
	s := newTestSync(&fakeMaterialRepo{})
	m := seed(s, "mat-1", testNow)

	m.Name = "Renombrado en otro dispositivo"
	s.applyEvent(MaterialEvent{Type: EventUpdate, New: wireRecord(m)})

	after, _ := s.col.Get("mat-1")
	assert.Equal(t, "Renombrado en otro dispositivo", after.Name)
}

func TestReconciliador_DeleteGanaAlRollbackLocal(t *testing.T) {
	gate := make(chan struct{})
	repo := &fakeMaterialRepo{deleteGate: gate, deleteErr: errors.New("falló")}
	s := newTestSync(repo)
	m := seed(s, "mat-1", testNow)

	done := make(chan error, 1)
	go func() { done <- s.Delete(context.Background(), m.ID) }()
	require.Eventually(t, func() bool { return s.col.Len() == 0 }, time.Second, time.Millisecond)
	close(gate)
	<-done

	// El rollback local reinsertó la fila; pero el remoto confirma el borrado
	// vía feed (otro cliente lo borró): el estado remoto es autoritativo.
	require.Equal(t, 1, s.col.Len())
	s.applyEvent(MaterialEvent{Type: EventDelete, Old: wireRecord(m)})
	assert.Equal(t, 0, s.col.Len())
}

func TestStart_ConsumeEventosDelFeed(t *testing.T) {
	feed := newFakeMaterialFeed()
	s := newTestSync(&fakeMaterialRepo{}, func(d *MaterialSyncDeps) {
		d.Feed = feed
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	m := cementDraft().Material("mat-5", testProject.ID, "user-1", testNow)
	feed.ch <- MaterialEvent{Type: EventInsert, New: wireRecord(m)}

	require.Eventually(t, func() bool { return s.col.Len() == 1 }, time.Second, time.Millisecond)
}

// ──────────────────────────────────────────────────────────────────────────────
// Efecto lateral: tocar el proyecto
// ──────────────────────────────────────────────────────────────────────────────

func TestTouchProyecto_FireAndForget_NoAfectaLaOperacion(t *testing.T) {
	touched := make(chan string, 1)
	repo := &fakeMaterialRepo{}
	s := newTestSync(repo, func(d *MaterialSyncDeps) {
		d.Touch = func(ctx context.Context, projectID string) error {
			touched <- projectID
			return errors.New("el touch falla, pero a nadie le importa")
		}
	})

	_, err := s.Add(context.Background(), cementDraft())
	require.NoError(t, err, "el fallo del touch jamás se propaga")

	select {
	case id := <-touched:
		assert.Equal(t, testProject.ID, id)
	case <-time.After(time.Second):
		t.Fatal("el touch del proyecto no se disparó")
	}
}
