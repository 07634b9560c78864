package record

import (
	"time"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// ProjectRecord forma de cable/almacenamiento de un proyecto.
type ProjectRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	FileName  *string   `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToProject convierte el registro de cable a la entidad de aplicación.
func ToProject(r ProjectRecord) entity.Project {
	return entity.Project{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		FileName:  deref(r.FileName),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// FromProject convierte la entidad a forma de cable.
func FromProject(p entity.Project) ProjectRecord {
	return ProjectRecord{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		FileName:  nullable(p.FileName),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ProjectPatch actualización parcial de proyecto.
type ProjectPatch struct {
	Name      *string
	FileName  *string
	UpdatedAt *time.Time
}

// Fields devuelve únicamente las claves presentes, con nombre de columna.
func (p ProjectPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.FileName != nil {
		out["file_name"] = *p.FileName
	}
	if p.UpdatedAt != nil {
		out["updated_at"] = *p.UpdatedAt
	}
	return out
}

// ApplyProjectPatch aplica el patch sobre una copia de la entidad.
func ApplyProjectPatch(p entity.Project, patch ProjectPatch) entity.Project {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.FileName != nil {
		p.FileName = *patch.FileName
	}
	if patch.UpdatedAt != nil {
		p.UpdatedAt = *patch.UpdatedAt
	}
	return p
}
