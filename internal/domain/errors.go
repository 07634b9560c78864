package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrNoProject          = errors.New("debes crear o seleccionar un proyecto primero")
	ErrNoUser             = errors.New("debes iniciar sesión para continuar")
)

// PreconditionError indica que una operación se invocó sin proyecto activo
// o sin usuario autenticado. No se reintenta: el caller debe resolver la
// precondición antes de volver a llamar.
type PreconditionError struct {
	Missing string // "project" | "user"
}

func (e *PreconditionError) Error() string {
	switch e.Missing {
	case "project":
		return ErrNoProject.Error()
	case "user":
		return ErrNoUser.Error()
	}
	return "precondición no satisfecha: " + e.Missing
}

func (e *PreconditionError) Unwrap() error {
	switch e.Missing {
	case "project":
		return ErrNoProject
	case "user":
		return ErrNoUser
	}
	return nil
}

// RemoteOperationError indica que el store remoto rechazó un insert/update/delete.
// El estado local ya fue restaurado cuando este error llega al caller.
type RemoteOperationError struct {
	Op    string // "insert" | "update" | "delete"
	Cause error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("operación remota %s falló: %v", e.Op, e.Cause)
}

func (e *RemoteOperationError) Unwrap() error { return e.Cause }

// ValidationError indica que una fila de importación carece de campos
// requeridos. Aborta el lote completo: ninguna fila del archivo se importa.
type ValidationError struct {
	Row    int      // ordinal de la fila entre las filas de datos (sin contar encabezado)
	Fields []string // nombres de campos faltantes, en forma de aplicación
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fila %d: faltan campos requeridos (%s)", e.Row, strings.Join(e.Fields, ", "))
}

// FormatError indica extensión desconocida o contenido no parseable en una
// importación. Se produce antes de generar fila alguna.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "formato de archivo inválido: " + e.Reason
}
