package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/obrastock-api/internal/application/dto"
	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// ProjectHandler maneja el CRUD de proyectos y la selección del activo.
type ProjectHandler struct {
	sessions *SessionManager
}

// NewProjectHandler construye el handler de proyectos.
func NewProjectHandler(sessions *SessionManager) *ProjectHandler {
	return &ProjectHandler{sessions: sessions}
}

// projectListResponse lista de proyectos más el id del activo.
type projectListResponse struct {
	Projects  []entity.Project `json:"projects"`
	CurrentID string           `json:"currentId,omitempty"`
}

// List godoc
// @Summary      Listar proyectos del usuario
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  projectListResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/projects [get]
func (h *ProjectHandler) List(c *fiber.Ctx) error {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	out := projectListResponse{Projects: s.Projects().Projects()}
	if current, ok := s.Projects().Current(); ok {
		out.CurrentID = current.ID
	}
	return c.JSON(out)
}

// Current godoc
// @Summary      Proyecto activo
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  entity.Project
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/projects/current [get]
func (h *ProjectHandler) Current(c *fiber.Ctx) error {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	current, ok := s.Projects().Current()
	if !ok {
		return respondError(c, &domain.PreconditionError{Missing: "project"})
	}
	return c.JSON(current)
}

// Create godoc
// @Summary      Crear proyecto (pasa a ser el activo)
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.CreateProjectRequest  true  "name"
// @Success      201   {object}  entity.Project
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/projects [post]
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateProjectRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "name es requerido"})
	}
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	p, err := s.CreateProject(c.Context(), in.Name, in.FileName)
	recordOp("project", "insert", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Update godoc
// @Summary      Renombrar proyecto
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                    true  "project id"
// @Param        body  body  dto.UpdateProjectRequest  true  "campos a tocar"
// @Success      204
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/projects/{id} [put]
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateProjectRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	patch := record.ProjectPatch{Name: in.Name, FileName: in.FileName}
	err = s.Projects().Update(c.Context(), c.Params("id"), patch)
	recordOp("project", "update", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Select godoc
// @Summary      Seleccionar proyecto activo
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "project id"
// @Success      200  {object}  entity.Project
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/projects/{id}/select [post]
func (h *ProjectHandler) Select(c *fiber.Ctx) error {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	p, err := s.SwitchProject(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

// Delete godoc
// @Summary      Eliminar proyecto
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "project id"
// @Success      204
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/projects/{id} [delete]
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	err = s.DeleteProject(c.Context(), c.Params("id"))
	recordOp("project", "delete", err)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
