// Package record define la traducción entre la forma de almacenamiento
// (snake_case, opcionales anulables) y la forma de aplicación (camelCase,
// opcionales con defaults). Funciones puras, sin condiciones de error: todo
// campo opcional tiene un default definido, nunca se depende de la presencia
// dinámica de claves.
package record

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// MaterialRecord forma de cable/almacenamiento de un material: claves
// snake_case y punteros para las columnas anulables. Es lo que emiten el
// change feed (row_to_json) y el SELECT, y lo que se escribe en el INSERT.
type MaterialRecord struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Color       *string         `json:"color"`
	Size        *string         `json:"size"`
	Dimensions  *string         `json:"dimensions"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	Price       decimal.Decimal `json:"price"`
	Location    string          `json:"location"`
	Supplier    *string         `json:"supplier"`
	Notes       *string         `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToMaterial convierte el registro de cable a la entidad de aplicación,
// aplicando defaults a todo campo opcional ausente (nil -> cadena vacía,
// unidad vacía -> unidad canónica).
func ToMaterial(r MaterialRecord) entity.Material {
	unit := r.Unit
	if unit == "" {
		unit = entity.DefaultUnit
	}
	return entity.Material{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Brand:       r.Brand,
		Color:       deref(r.Color),
		Size:        deref(r.Size),
		Dimensions:  deref(r.Dimensions),
		Unit:        unit,
		Quantity:    r.Quantity,
		MinQuantity: r.MinQuantity,
		Price:       r.Price,
		Location:    r.Location,
		Supplier:    deref(r.Supplier),
		Notes:       deref(r.Notes),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// FromMaterial convierte la entidad a forma de cable. Los opcionales vacíos
// se escriben como NULL (puntero nil), igual que hacía el alta original.
func FromMaterial(m entity.Material) MaterialRecord {
	return MaterialRecord{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		UserID:      m.UserID,
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		Brand:       m.Brand,
		Color:       nullable(m.Color),
		Size:        nullable(m.Size),
		Dimensions:  nullable(m.Dimensions),
		Unit:        m.Unit,
		Quantity:    m.Quantity,
		MinQuantity: m.MinQuantity,
		Price:       m.Price,
		Location:    m.Location,
		Supplier:    nullable(m.Supplier),
		Notes:       nullable(m.Notes),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// MaterialPatch actualización parcial: solo los campos con puntero no-nil se
// incluyen en el update remoto, de modo que un update parcial nunca pisa
// columnas que no tocó.
type MaterialPatch struct {
	Name        *string
	Description *string
	Category    *string
	Brand       *string
	Color       *string
	Size        *string
	Dimensions  *string
	Unit        *string
	Quantity    *decimal.Decimal
	MinQuantity *decimal.Decimal
	Price       *decimal.Decimal
	Location    *string
	Supplier    *string
	Notes       *string
	UpdatedAt   *time.Time
}

// Fields devuelve únicamente las claves presentes en el patch, con nombre de
// columna snake_case. Nunca emite claves no tocadas.
func (p MaterialPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Category != nil {
		out["category"] = *p.Category
	}
	if p.Brand != nil {
		out["brand"] = *p.Brand
	}
	if p.Color != nil {
		out["color"] = *p.Color
	}
	if p.Size != nil {
		out["size"] = *p.Size
	}
	if p.Dimensions != nil {
		out["dimensions"] = *p.Dimensions
	}
	if p.Unit != nil {
		out["unit"] = *p.Unit
	}
	if p.Quantity != nil {
		out["quantity"] = *p.Quantity
	}
	if p.MinQuantity != nil {
		out["min_quantity"] = *p.MinQuantity
	}
	if p.Price != nil {
		out["price"] = *p.Price
	}
	if p.Location != nil {
		out["location"] = *p.Location
	}
	if p.Supplier != nil {
		out["supplier"] = *p.Supplier
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if p.UpdatedAt != nil {
		out["updated_at"] = *p.UpdatedAt
	}
	return out
}

// ApplyMaterialPatch aplica el patch sobre una copia de la entidad. Es la
// mutación especulativa local; el UpdatedAt refrescado lo pone el motor.
func ApplyMaterialPatch(m entity.Material, p MaterialPatch) entity.Material {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.Brand != nil {
		m.Brand = *p.Brand
	}
	if p.Color != nil {
		m.Color = *p.Color
	}
	if p.Size != nil {
		m.Size = *p.Size
	}
	if p.Dimensions != nil {
		m.Dimensions = *p.Dimensions
	}
	if p.Unit != nil {
		m.Unit = *p.Unit
	}
	if p.Quantity != nil {
		m.Quantity = *p.Quantity
	}
	if p.MinQuantity != nil {
		m.MinQuantity = *p.MinQuantity
	}
	if p.Price != nil {
		m.Price = *p.Price
	}
	if p.Location != nil {
		m.Location = *p.Location
	}
	if p.Supplier != nil {
		m.Supplier = *p.Supplier
	}
	if p.Notes != nil {
		m.Notes = *p.Notes
	}
	if p.UpdatedAt != nil {
		m.UpdatedAt = *p.UpdatedAt
	}
	return m
}

// MaterialDraft material en forma de aplicación sin identidad ni timestamps:
// lo que produce la importación y lo que recibe el alta.
type MaterialDraft struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Dimensions  string          `json:"dimensions"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"minQuantity"`
	Price       decimal.Decimal `json:"price"`
	Location    string          `json:"location"`
	Supplier    string          `json:"supplier"`
	Notes       string          `json:"notes"`
}

// Material materializa el borrador con identidad, dueños y timestamps.
func (d MaterialDraft) Material(id, projectID, userID string, now time.Time) entity.Material {
	unit := d.Unit
	if unit == "" {
		unit = entity.DefaultUnit
	}
	return entity.Material{
		ID:          id,
		ProjectID:   projectID,
		UserID:      userID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Brand:       d.Brand,
		Color:       d.Color,
		Size:        d.Size,
		Dimensions:  d.Dimensions,
		Unit:        unit,
		Quantity:    d.Quantity,
		MinQuantity: d.MinQuantity,
		Price:       d.Price,
		Location:    d.Location,
		Supplier:    d.Supplier,
		Notes:       d.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
