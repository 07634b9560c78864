package sync

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// MaterialCollection estado local de los materiales del proyecto activo,
// ordenado por (created_at DESC, id DESC). El conjunto provisional rastrea
// los ids de altas optimistas aún no reconciliadas.
//
// El modelo de mutaciones exige que ciertos pasos compuestos sean atómicos
// frente al reconciliador (en particular el canje de id provisional por id
// permanente): cada uno de esos pasos es una única toma del mutex, sin punto
// de suspensión intermedio observable.
type MaterialCollection struct {
	mu          sync.Mutex
	items       []entity.Material
	provisional map[string]struct{}
}

// NewMaterialCollection crea la colección vacía.
func NewMaterialCollection() *MaterialCollection {
	return &MaterialCollection{provisional: make(map[string]struct{})}
}

// SetAll reemplaza el contenido completo (fetch inicial). Descarta el
// conjunto provisional: el fetch es posterior a cualquier alta pendiente del
// alcance anterior.
func (c *MaterialCollection) SetAll(items []entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]entity.Material(nil), items...)
	c.provisional = make(map[string]struct{})
}

// List devuelve una copia de la colección en su orden actual.
func (c *MaterialCollection) List() []entity.Material {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.Material(nil), c.items...)
}

// Len cantidad de materiales visibles.
func (c *MaterialCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Get devuelve una copia del material por id.
func (c *MaterialCollection) Get(id string) (entity.Material, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return entity.Material{}, false
}

// InsertOptimistic inserta el alta especulativa a la cabeza y registra su id
// provisional, en un solo paso atómico.
func (c *MaterialCollection) InsertOptimistic(m entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]entity.Material{m}, c.items...)
	c.provisional[m.ID] = struct{}{}
}

// Confirm reemplaza el alta provisional por la fila confirmada y canjea la
// entrada provisional de tempID a la identidad permanente. El canje ocurre
// bajo una sola toma del lock: no hay ventana en la que ninguna de las dos
// claves esté registrada, porque un evento insert del feed puede llegar en
// cualquier punto de esta sección crítica.
//
// Si el feed ya resolvió el alta (el id permanente ya está en la colección),
// la confirmación directa es un no-op salvo la limpieza del conjunto
// provisional. Si ni el temporal ni el permanente existen, un delete remoto
// ganó la carrera y el estado remoto es autoritativo: no se reinserta.
func (c *MaterialCollection) Confirm(tempID string, confirmed entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(tempID); i >= 0 {
		c.items[i] = confirmed
		delete(c.provisional, tempID)
		c.provisional[confirmed.ID] = struct{}{}
		return
	}
	delete(c.provisional, tempID)
}

// Discard revierte un alta optimista fallida: quita la fila especulativa y su
// entrada provisional.
func (c *MaterialCollection) Discard(tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(tempID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	delete(c.provisional, tempID)
}

// Replace sustituye el material con ese id, si existe.
func (c *MaterialCollection) Replace(id string, m entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		c.items[i] = m
	}
}

// Remove elimina por id y devuelve la fila eliminada.
func (c *MaterialCollection) Remove(id string) (entity.Material, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		removed := c.items[i]
		c.items = append(c.items[:i], c.items[i+1:]...)
		return removed, true
	}
	return entity.Material{}, false
}

// ReinsertOrdered reinserta una fila (rollback de delete) en la posición que
// dicta el orden (created_at DESC, id DESC), no necesariamente en su índice
// original: pueden haber entrado filas nuevas entre medias.
func (c *MaterialCollection) ReinsertOrdered(m entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.orderedIndex(m)
	c.items = append(c.items, entity.Material{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = m
}

// SetQuantity fija solo la cantidad (y opcionalmente el updated_at) de una
// fila. Es la mutación local del ajuste de cantidad y su rollback numérico.
func (c *MaterialCollection) SetQuantity(id string, q decimal.Decimal, updatedAt *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		c.items[i].Quantity = q
		if updatedAt != nil {
			c.items[i].UpdatedAt = *updatedAt
		}
	}
}

// ApplyInsert pliega un evento insert del feed. Idempotente:
//   - si el id ya existe, se reemplaza en el sitio (eco de una mutación de
//     este mismo cliente, o evento duplicado);
//   - si no, pero hay un alta provisional con id temporal cuya marca de
//     creación, autor y nombre coinciden, el evento es el eco que llegó antes
//     que la respuesta directa: se resuelve el canje temporal→permanente aquí;
//   - si no hay correspondencia, el insert vino de otro cliente: se antepone.
//
// En todos los casos la identidad del evento deja de estar en el conjunto
// provisional, y nunca conviven la fila temporal y su eco permanente.
func (c *MaterialCollection) ApplyInsert(m entity.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(m.ID); i >= 0 {
		c.items[i] = m
		delete(c.provisional, m.ID)
		return
	}
	for i := range c.items {
		id := c.items[i].ID
		if _, pending := c.provisional[id]; !pending || !entity.IsTempID(id) {
			continue
		}
		if c.items[i].CreatedAt.Equal(m.CreatedAt) && c.items[i].UserID == m.UserID && c.items[i].Name == m.Name {
			c.items[i] = m
			delete(c.provisional, id)
			return
		}
	}
	c.items = append([]entity.Material{m}, c.items...)
	delete(c.provisional, m.ID)
}

// ApplyUpdate pliega un evento update: reemplazo incondicional de la fila con
// esa identidad (last-writer-wins a nivel de registro completo).
func (c *MaterialCollection) ApplyUpdate(m entity.Material) {
	c.Replace(m.ID, m)
}

// ApplyDelete pliega un evento delete: eliminación incondicional, incluso si
// la fila está a mitad de rollback de un delete local fallido. El estado
// remoto es autoritativo.
func (c *MaterialCollection) ApplyDelete(id string) {
	_, _ = c.Remove(id)
}

// indexOf busca por id. Llamar con el lock tomado.
func (c *MaterialCollection) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// orderedIndex devuelve el índice de inserción según (created_at DESC,
// id DESC); el id desempata timestamps idénticos de forma determinista.
// Llamar con el lock tomado.
func (c *MaterialCollection) orderedIndex(m entity.Material) int {
	for i := range c.items {
		if c.items[i].CreatedAt.Before(m.CreatedAt) {
			return i
		}
		if c.items[i].CreatedAt.Equal(m.CreatedAt) && c.items[i].ID < m.ID {
			return i
		}
	}
	return len(c.items)
}
