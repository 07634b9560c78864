package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/obrastock-api/internal/application/dto"
	"github.com/jhoicas/obrastock-api/internal/application/record"
	appsync "github.com/jhoicas/obrastock-api/internal/application/sync"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// MaterialHandler maneja el inventario del proyecto activo de la sesión.
type MaterialHandler struct {
	sessions *SessionManager
}

// NewMaterialHandler construye el handler de materiales.
func NewMaterialHandler(sessions *SessionManager) *MaterialHandler {
	return &MaterialHandler{sessions: sessions}
}

func (h *MaterialHandler) engine(c *fiber.Ctx) (*appsync.MaterialSync, error) {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return nil, err
	}
	return s.Materials()
}

// materialListResponse lista filtrada más el material en edición y los ids
// con stock por debajo del mínimo (para la alerta de bajo stock del cliente).
type materialListResponse struct {
	Materials   []entity.Material `json:"materials"`
	EditingID   string            `json:"editingId,omitempty"`
	LowStockIDs []string          `json:"lowStockIds,omitempty"`
}

func lowStockIDs(materials []entity.Material) []string {
	var ids []string
	for _, m := range materials {
		if m.BelowMinimum() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// List godoc
// @Summary      Listar materiales del proyecto activo
// @Description  Filtra por texto (nombre, descripción o marca) y por categoría exacta. El orden siempre es por fecha de creación descendente.
// @Tags         materials
// @Produce      json
// @Security     BearerAuth
// @Param        search    query  string  false  "texto a buscar"
// @Param        category  query  string  false  "categoría exacta; vacío o 'all' no filtra"
// @Success      200  {object}  materialListResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/materials [get]
func (h *MaterialHandler) List(c *fiber.Ctx) error {
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	filtered := engine.Filtered(c.Query("search"), c.Query("category"))
	out := materialListResponse{
		Materials:   filtered,
		EditingID:   engine.Editing(),
		LowStockIDs: lowStockIDs(filtered),
	}
	return c.JSON(out)
}

// Create godoc
// @Summary      Agregar material (alta optimista)
// @Tags         materials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  record.MaterialDraft  true  "material sin identidad"
// @Success      201   {object}  entity.Material
// @Failure      412   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/materials [post]
func (h *MaterialHandler) Create(c *fiber.Ctx) error {
	var draft record.MaterialDraft
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if draft.Name == "" || draft.Category == "" || draft.Location == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "name, category y location son requeridos"})
	}
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	m, err := engine.Add(c.Context(), draft)
	recordOp("material", "insert", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// Update godoc
// @Summary      Editar material (update parcial optimista)
// @Tags         materials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                     true  "material id"
// @Param        body  body  dto.UpdateMaterialRequest  true  "solo los campos tocados"
// @Success      204
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/materials/{id} [put]
func (h *MaterialHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateMaterialRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	err = engine.Update(c.Context(), c.Params("id"), materialPatch(in))
	recordOp("material", "update", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete godoc
// @Summary      Eliminar material (borrado optimista)
// @Tags         materials
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "material id"
// @Success      204
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/materials/{id} [delete]
func (h *MaterialHandler) Delete(c *fiber.Ctx) error {
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	err = engine.Delete(c.Context(), c.Params("id"))
	recordOp("material", "delete", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AdjustQuantity godoc
// @Summary      Ajustar cantidad (suma o resta; la resta se recorta en cero)
// @Tags         materials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                     true  "material id"
// @Param        body  body  dto.AdjustQuantityRequest  true  "op y delta (delta >= 0)"
// @Success      204
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/materials/{id}/quantity [post]
func (h *MaterialHandler) AdjustQuantity(c *fiber.Ctx) error {
	var in dto.AdjustQuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	err = engine.AdjustQuantity(c.Context(), c.Params("id"), in.Delta, appsync.AdjustOp(in.Op))
	recordOp("material", "adjust", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// editingRequest fija (o limpia, con id vacío) el material en edición.
type editingRequest struct {
	ID string `json:"id"`
}

// SetEditing godoc
// @Summary      Marcar material en edición
// @Tags         materials
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  editingRequest  true  "id del material; vacío para limpiar"
// @Success      204
// @Router       /api/materials/editing [put]
func (h *MaterialHandler) SetEditing(c *fiber.Ctx) error {
	var in editingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	if in.ID != "" {
		if _, ok := findMaterial(engine.Materials(), in.ID); !ok {
			return respondError(c, domain.ErrNotFound)
		}
	}
	engine.SetEditing(in.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

func findMaterial(items []entity.Material, id string) (entity.Material, bool) {
	for _, m := range items {
		if m.ID == id {
			return m, true
		}
	}
	return entity.Material{}, false
}

// materialPatch traduce el request parcial al patch de columnas.
func materialPatch(in dto.UpdateMaterialRequest) record.MaterialPatch {
	return record.MaterialPatch{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Brand:       in.Brand,
		Color:       in.Color,
		Size:        in.Size,
		Dimensions:  in.Dimensions,
		Unit:        in.Unit,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
		Price:       in.Price,
		Location:    in.Location,
		Supplier:    in.Supplier,
		Notes:       in.Notes,
	}
}
