package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/application/sync"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

var _ sync.ProjectRepository = (*ProjectRepo)(nil)

const projectColumns = `id, user_id, name, file_name, created_at, updated_at`

// ProjectRepo implementación del puerto ProjectRepository sobre PostgreSQL (usable con pool o tx).
type ProjectRepo struct {
	q Querier
}

// NewProjectRepository construye el adaptador de persistencia para proyectos. Pasar pool o tx (Querier).
func NewProjectRepository(q Querier) *ProjectRepo {
	return &ProjectRepo{q: q}
}

// ListByUser devuelve los proyectos del usuario ordenados por created_at
// descendente, con id descendente como desempate estable.
func (r *ProjectRepo) ListByUser(ctx context.Context, userID string) ([]entity.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, projectColumns)
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []entity.Project
	for rows.Next() {
		rec, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, record.ToProject(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// Insert persiste el proyecto. El id lo genera el servidor; la fila
// confirmada vuelve completa vía RETURNING.
func (r *ProjectRepo) Insert(ctx context.Context, p entity.Project) (entity.Project, error) {
	rec := record.FromProject(p)
	query := fmt.Sprintf(`
		INSERT INTO projects (user_id, name, file_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, projectColumns)
	row := r.q.QueryRow(ctx, query, rec.UserID, rec.Name, rec.FileName, rec.CreatedAt, rec.UpdatedAt)
	saved, err := scanProject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.Project{}, domain.ErrDuplicate
		}
		return entity.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return record.ToProject(saved), nil
}

// Update aplica un update parcial acotado por id y user_id.
func (r *ProjectRepo) Update(ctx context.Context, id, userID string, patch record.ProjectPatch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}
	set, args := setClause(fields)
	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d AND user_id = $%d`,
		set, len(args)-1, len(args))
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina el proyecto. Los materiales del proyecto caen en cascada
// (FK ON DELETE CASCADE).
func (r *ProjectRepo) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProject(row rowScanner) (record.ProjectRecord, error) {
	var rec record.ProjectRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.FileName, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}
