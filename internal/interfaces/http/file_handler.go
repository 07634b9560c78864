package http

import (
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/obrastock-api/internal/application/dto"
	"github.com/jhoicas/obrastock-api/internal/application/exporter"
	"github.com/jhoicas/obrastock-api/internal/application/importer"
	appsync "github.com/jhoicas/obrastock-api/internal/application/sync"
)

// FileHandler importación y exportación del inventario del proyecto activo.
type FileHandler struct {
	sessions *SessionManager
}

// NewFileHandler construye el handler de archivos.
func NewFileHandler(sessions *SessionManager) *FileHandler {
	return &FileHandler{sessions: sessions}
}

// Import godoc
// @Summary      Importar materiales desde archivo
// @Description  Acepta .xlsx, .csv o .json. El lote se valida completo antes de dar ninguna alta: una sola fila inválida rechaza el archivo entero.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "archivo a importar"
// @Success      201   {object}  dto.ImportResultResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/materials/import [post]
func (h *FileHandler) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "archivo requerido en el campo 'file'"})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el archivo"})
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el archivo"})
	}

	drafts, err := importer.Import(data, fileHeader.Filename)
	if err != nil {
		return respondError(c, err)
	}

	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	imported := 0
	for _, draft := range drafts {
		_, err := engine.Add(c.Context(), draft)
		recordOp("material", "insert", err)
		if err != nil {
			return respondError(c, fmt.Errorf("importadas %d de %d filas: %w", imported, len(drafts), err))
		}
		imported++
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ImportResultResponse{Imported: imported})
}

// Export godoc
// @Summary      Exportar inventario del proyecto activo
// @Tags         files
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        format  query  string  false  "xlsx (default), csv o json"
// @Success      200  {file}  file
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/materials/export [get]
func (h *FileHandler) Export(c *fiber.Ctx) error {
	format := c.Query("format", "xlsx")
	engine, err := h.engine(c)
	if err != nil {
		return respondError(c, err)
	}
	art, err := exporter.Export(engine.Materials(), engine.Project().Name, format, time.Now())
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, art.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, art.Name))
	return c.Send(art.Data)
}

func (h *FileHandler) engine(c *fiber.Ctx) (*appsync.MaterialSync, error) {
	s, err := h.sessions.Session(c.Context(), GetUserID(c))
	if err != nil {
		return nil, err
	}
	return s.Materials()
}
