package sync

import (
	"sync"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// ProjectCollection estado local de los proyectos de un usuario, con el mismo
// orden e invariantes que MaterialCollection. Se mantiene aparte porque el
// ciclo de vida de ambas colecciones es independiente (los proyectos viven
// toda la sesión; los materiales se reconstruyen al cambiar de proyecto).
type ProjectCollection struct {
	mu          sync.Mutex
	items       []entity.Project
	provisional map[string]struct{}
}

// NewProjectCollection crea la colección vacía.
func NewProjectCollection() *ProjectCollection {
	return &ProjectCollection{provisional: make(map[string]struct{})}
}

// SetAll reemplaza el contenido completo (fetch inicial).
func (c *ProjectCollection) SetAll(items []entity.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]entity.Project(nil), items...)
	c.provisional = make(map[string]struct{})
}

// List devuelve una copia de la colección en su orden actual.
func (c *ProjectCollection) List() []entity.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.Project(nil), c.items...)
}

// Get devuelve una copia del proyecto por id.
func (c *ProjectCollection) Get(id string) (entity.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return entity.Project{}, false
}

// First devuelve el proyecto más reciente, si hay alguno.
func (c *ProjectCollection) First() (entity.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return entity.Project{}, false
	}
	return c.items[0], true
}

// InsertOptimistic inserta el alta especulativa a la cabeza y registra su id
// provisional.
func (c *ProjectCollection) InsertOptimistic(p entity.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]entity.Project{p}, c.items...)
	c.provisional[p.ID] = struct{}{}
}

// Confirm canjea el alta provisional por la fila confirmada; misma sección
// crítica que MaterialCollection.Confirm.
func (c *ProjectCollection) Confirm(tempID string, confirmed entity.Project) {
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

// Discard revierte un alta optimista fallida.
func (c *ProjectCollection) Discard(tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(tempID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	delete(c.provisional, tempID)
}

// Replace sustituye el proyecto con ese id, si existe.
func (c *ProjectCollection) Replace(id string, p entity.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		c.items[i] = p
	}
}

// Remove elimina por id y devuelve la fila eliminada.
func (c *ProjectCollection) Remove(id string) (entity.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		removed := c.items[i]
		c.items = append(c.items[:i], c.items[i+1:]...)
		return removed, true
	}
	return entity.Project{}, false
}

// ReinsertOrdered reinserta una fila en la posición que dicta el orden
// (created_at DESC, id DESC).
func (c *ProjectCollection) ReinsertOrdered(p entity.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.items)
	for j := range c.items {
		if c.items[j].CreatedAt.Before(p.CreatedAt) ||
			(c.items[j].CreatedAt.Equal(p.CreatedAt) && c.items[j].ID < p.ID) {
			i = j
			break
		}
	}
	c.items = append(c.items, entity.Project{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = p
}

// ApplyInsert pliega un evento insert del feed; misma resolución idempotente
// del eco que MaterialCollection.ApplyInsert. Para proyectos la
// correspondencia del eco usa (created_at, user_id, name).
func (c *ProjectCollection) ApplyInsert(p entity.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(p.ID); i >= 0 {
		c.items[i] = p
		delete(c.provisional, p.ID)
		return
	}
	for i := range c.items {
		id := c.items[i].ID
		if _, pending := c.provisional[id]; !pending || !entity.IsTempID(id) {
			continue
		}
		if c.items[i].CreatedAt.Equal(p.CreatedAt) && c.items[i].UserID == p.UserID && c.items[i].Name == p.Name {
			c.items[i] = p
			delete(c.provisional, id)
			return
		}
	}
	c.items = append([]entity.Project{p}, c.items...)
	delete(c.provisional, p.ID)
}

// ApplyUpdate reemplazo incondicional por identidad.
func (c *ProjectCollection) ApplyUpdate(p entity.Project) {
	c.Replace(p.ID, p)
}

// ApplyDelete eliminación incondicional por identidad.
func (c *ProjectCollection) ApplyDelete(id string) {
	_, _ = c.Remove(id)
}

func (c *ProjectCollection) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
