package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/application/sync"
	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

var _ sync.MaterialRepository = (*MaterialRepo)(nil)

const materialColumns = `id, project_id, user_id, name, description, category, brand,
		color, size, dimensions, unit, quantity, min_quantity, price,
		location, supplier, notes, created_at, updated_at`

// MaterialRepo implementación del puerto MaterialRepository sobre PostgreSQL (usable con pool o tx).
type MaterialRepo struct {
	q Querier
}

// NewMaterialRepository construye el adaptador de persistencia para materiales. Pasar pool o tx (Querier).
func NewMaterialRepository(q Querier) *MaterialRepo {
	return &MaterialRepo{q: q}
}

// ListByProject devuelve los materiales del proyecto ordenados por
// created_at descendente, con id descendente como desempate estable.
func (r *MaterialRepo) ListByProject(ctx context.Context, projectID, userID string) ([]entity.Material, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM materials
		WHERE project_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC`, materialColumns)
	rows, err := r.q.Query(ctx, query, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var out []entity.Material
	for rows.Next() {
		rec, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, record.ToMaterial(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return out, nil
}

// Insert persiste el material. El id lo genera el servidor (el id provisional
// del cliente nunca se escribe); created_at y updated_at sí son los del
// cliente, y la fila confirmada vuelve completa vía RETURNING.
func (r *MaterialRepo) Insert(ctx context.Context, m entity.Material) (entity.Material, error) {
	rec := record.FromMaterial(m)
	query := fmt.Sprintf(`
		INSERT INTO materials (project_id, user_id, name, description, category, brand,
			color, size, dimensions, unit, quantity, min_quantity, price,
			location, supplier, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING %s`, materialColumns)
	row := r.q.QueryRow(ctx, query,
		rec.ProjectID, rec.UserID, rec.Name, rec.Description, rec.Category, rec.Brand,
		rec.Color, rec.Size, rec.Dimensions, rec.Unit, rec.Quantity, rec.MinQuantity, rec.Price,
		rec.Location, rec.Supplier, rec.Notes, rec.CreatedAt, rec.UpdatedAt,
	)
	saved, err := scanMaterial(row)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.Material{}, domain.ErrDuplicate
		}
		return entity.Material{}, fmt.Errorf("insert material: %w", err)
	}
	return record.ToMaterial(saved), nil
}

// Update aplica un update parcial: solo las columnas presentes en el patch.
// La escritura va acotada por id y user_id.
func (r *MaterialRepo) Update(ctx context.Context, id, userID string, patch record.MaterialPatch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}
	set, args := setClause(fields)
	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE materials SET %s WHERE id = $%d AND user_id = $%d`,
		set, len(args)-1, len(args))
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina el material, acotado por id y user_id.
func (r *MaterialRepo) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM materials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// setClause arma el SET dinámico con claves en orden estable para que la
// query sea determinista.
func setClause(fields map[string]any) (string, []any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := ""
	args := make([]any, 0, len(fields)+2)
	for i, k := range keys {
		if i > 0 {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, fields[k])
	}
	return set, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (record.MaterialRecord, error) {
	var rec record.MaterialRecord
	err := row.Scan(
		&rec.ID, &rec.ProjectID, &rec.UserID, &rec.Name, &rec.Description, &rec.Category, &rec.Brand,
		&rec.Color, &rec.Size, &rec.Dimensions, &rec.Unit, &rec.Quantity, &rec.MinQuantity, &rec.Price,
		&rec.Location, &rec.Supplier, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}
