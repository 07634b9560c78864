package dto

import "github.com/shopspring/decimal"

// UpdateMaterialRequest entrada para editar un material (campos opcionales;
// solo lo presente se aplica y se envía al servidor).
type UpdateMaterialRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	Category    *string          `json:"category" validate:"omitempty,min=1"`
	Brand       *string          `json:"brand"`
	Color       *string          `json:"color"`
	Size        *string          `json:"size"`
	Dimensions  *string          `json:"dimensions"`
	Unit        *string          `json:"unit"`
	Quantity    *decimal.Decimal `json:"quantity"`
	MinQuantity *decimal.Decimal `json:"minQuantity"`
	Price       *decimal.Decimal `json:"price"`
	Location    *string          `json:"location" validate:"omitempty,min=1"`
	Supplier    *string          `json:"supplier"`
	Notes       *string          `json:"notes"`
}

// AdjustQuantityRequest entrada para sumar o restar stock de un material.
// Delta siempre es positiva; la dirección la decide Op.
type AdjustQuantityRequest struct {
	Op    string          `json:"op" validate:"required,oneof=increase decrease"`
	Delta decimal.Decimal `json:"delta"`
}

// ImportResultResponse resumen de una importación aceptada.
type ImportResultResponse struct {
	Imported int `json:"imported"`
}
