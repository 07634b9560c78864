package entity

import "time"

// Project agrupa los materiales de una obra. Un usuario puede tener varios
// proyectos pero solo uno está activo a la vez; el proyecto activo define el
// alcance de la suscripción de cambios y de todas las operaciones de material.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	FileName  string    `json:"fileName"` // informativo: archivo del que se importó
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
