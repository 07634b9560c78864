package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TempIDPrefix marca los identificadores provisionales generados en el
// cliente antes de la confirmación del store remoto.
const TempIDPrefix = "temp-"

// DefaultUnit unidad canónica cuando la importación o el alta no especifican una.
const DefaultUnit = "unidades"

// Material representa un material de obra dentro de un proyecto.
// Quantity nunca es negativa: las restas se recortan en cero.
type Material struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	UserID      string          `json:"userId"`
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
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsTempID indica si un identificador es provisional (aún sin confirmar).
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// BelowMinimum indica si el stock está por debajo del umbral mínimo.
func (m Material) BelowMinimum() bool {
	return m.Quantity.LessThan(m.MinQuantity)
}
