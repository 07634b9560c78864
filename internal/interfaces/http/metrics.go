package http

import (
	"errors"

	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/infrastructure/metrics"
)

// recordOp cuenta la operación optimista y, si el remoto la rechazó (estado
// local ya revertido), también el rollback.
func recordOp(entity, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var remote *domain.RemoteOperationError
		if errors.As(err, &remote) {
			metrics.SyncRollbacks.WithLabelValues(entity, op).Inc()
		}
	}
	metrics.SyncOps.WithLabelValues(entity, op, result).Inc()
}
