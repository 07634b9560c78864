package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	appsync "github.com/jhoicas/obrastock-api/internal/application/sync"
	"github.com/jhoicas/obrastock-api/internal/infrastructure/metrics"
	"github.com/jhoicas/obrastock-api/pkg/logger"
)

// channelName canal LISTEN/NOTIFY donde los triggers publican los cambios
// de filas de projects y materials.
const channelName = "obrastock_changes"

const subscriberBuffer = 64

var _ appsync.MaterialFeed = (*Listener)(nil)
var _ appsync.ProjectFeed = (*Listener)(nil)

// envelope payload JSON que emiten los triggers: tabla, operación y la fila
// nueva/vieja en forma de cable (row_to_json).
type envelope struct {
	Table string          `json:"table"`
	Type  string          `json:"type"`
	New   json.RawMessage `json:"new"`
	Old   json.RawMessage `json:"old"`
}

type materialSub struct {
	projectID string
	ch        chan appsync.MaterialEvent
}

type projectSub struct {
	userID string
	ch     chan appsync.ProjectEvent
}

// Listener mantiene una conexión dedicada en LISTEN y reparte cada
// notificación a los suscriptores cuyo ámbito (proyecto o usuario) coincide.
// Un suscriptor saturado pierde el evento en lugar de bloquear el reparto.
type Listener struct {
	pool *pgxpool.Pool
	log  *logger.Logger

	mu           sync.Mutex
	materialSubs map[*materialSub]struct{}
	projectSubs  map[*projectSub]struct{}
}

// NewListener construye el listener sobre el pool.
func NewListener(pool *pgxpool.Pool, log *logger.Logger) *Listener {
	return &Listener{
		pool:         pool,
		log:          log,
		materialSubs: make(map[*materialSub]struct{}),
		projectSubs:  make(map[*projectSub]struct{}),
	}
}

// Run bloquea escuchando notificaciones hasta que ctx se cancele. Si la
// conexión se cae, reintenta con backoff; los eventos emitidos durante el
// corte se pierden (no hay replay), igual que en el feed original.
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("change feed desconectado, reintentando")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return err
	}
	l.log.Info().Str("channel", channelName).Msg("change feed conectado")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch([]byte(notification.Payload))
	}
}

func (l *Listener) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		l.log.Error().Err(err).Msg("payload de change feed inválido")
		return
	}
	evType, ok := eventType(env.Type)
	if !ok {
		l.log.Warn().Str("type", env.Type).Msg("operación de change feed desconocida")
		return
	}
	metrics.FeedEvents.WithLabelValues(env.Table, string(evType)).Inc()

	switch env.Table {
	case "materials":
		l.dispatchMaterial(evType, env)
	case "projects":
		l.dispatchProject(evType, env)
	default:
		l.log.Warn().Str("table", env.Table).Msg("tabla de change feed desconocida")
	}
}

func (l *Listener) dispatchMaterial(evType appsync.EventType, env envelope) {
	ev := appsync.MaterialEvent{Type: evType}
	ev.New = decodeMaterial(env.New)
	ev.Old = decodeMaterial(env.Old)

	projectID := ""
	if ev.New != nil {
		projectID = ev.New.ProjectID
	} else if ev.Old != nil {
		projectID = ev.Old.ProjectID
	}
	if projectID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.materialSubs {
		if sub.projectID != projectID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.FeedDropped.Inc()
			l.log.Warn().Str("project_id", projectID).Msg("suscriptor de materiales saturado, evento descartado")
		}
	}
}

func (l *Listener) dispatchProject(evType appsync.EventType, env envelope) {
	ev := appsync.ProjectEvent{Type: evType}
	ev.New = decodeProject(env.New)
	ev.Old = decodeProject(env.Old)

	userID := ""
	if ev.New != nil {
		userID = ev.New.UserID
	} else if ev.Old != nil {
		userID = ev.Old.UserID
	}
	if userID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.projectSubs {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.FeedDropped.Inc()
			l.log.Warn().Str("user_id", userID).Msg("suscriptor de proyectos saturado, evento descartado")
		}
	}
}

// SubscribeMaterials registra una suscripción a los cambios de materiales de
// un proyecto. El canal se cierra al cancelar ctx.
func (l *Listener) SubscribeMaterials(ctx context.Context, projectID string) (<-chan appsync.MaterialEvent, error) {
	sub := &materialSub{projectID: projectID, ch: make(chan appsync.MaterialEvent, subscriberBuffer)}
	l.mu.Lock()
	l.materialSubs[sub] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.materialSubs, sub)
		l.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}

// SubscribeProjects registra una suscripción a los cambios de proyectos de
// un usuario. El canal se cierra al cancelar ctx.
func (l *Listener) SubscribeProjects(ctx context.Context, userID string) (<-chan appsync.ProjectEvent, error) {
	sub := &projectSub{userID: userID, ch: make(chan appsync.ProjectEvent, subscriberBuffer)}
	l.mu.Lock()
	l.projectSubs[sub] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.projectSubs, sub)
		l.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}

func eventType(op string) (appsync.EventType, bool) {
	switch strings.ToUpper(op) {
	case "INSERT":
		return appsync.EventInsert, true
	case "UPDATE":
		return appsync.EventUpdate, true
	case "DELETE":
		return appsync.EventDelete, true
	default:
		return "", false
	}
}

func decodeMaterial(raw json.RawMessage) *record.MaterialRecord {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var rec record.MaterialRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	return &rec
}

func decodeProject(raw json.RawMessage) *record.ProjectRecord {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var rec record.ProjectRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	return &rec
}
