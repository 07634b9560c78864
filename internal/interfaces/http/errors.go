package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/obrastock-api/internal/application/dto"
	"github.com/jhoicas/obrastock-api/internal/domain"
)

// respondError traduce los errores de dominio a estatus HTTP. El taxón
// importa: precondición no satisfecha (412) no es lo mismo que entrada
// inválida (400) ni que un rechazo del store remoto (502, ya revertido).
func respondError(c *fiber.Ctx, err error) error {
	var precond *domain.PreconditionError
	if errors.As(err, &precond) {
		return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "PRECONDITION", Message: precond.Error()})
	}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: validation.Error()})
	}
	var format *domain.FormatError
	if errors.As(err, &format) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_FORMAT", Message: format.Error()})
	}
	var remote *domain.RemoteOperationError
	if errors.As(err, &remote) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "REMOTE_FAILED", Message: remote.Error()})
	}
	switch {
	case errors.Is(err, domain.ErrNoProject), errors.Is(err, domain.ErrNoUser):
		return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "PRECONDITION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: err.Error()})
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
