package sync

import (
	"strings"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// CategoryAll valor centinela del selector de categoría: sin filtro.
const CategoryAll = "all"

// FilterMaterials deriva la vista filtrada de la colección: coincidencia de
// subcadena sin distinguir mayúsculas contra nombre, descripción o marca
// (basta una), y categoría exacta salvo el centinela "all". Derivación pura,
// recalculada en cada llamada; el orden de entrada se conserva.
func FilterMaterials(materials []entity.Material, term, category string) []entity.Material {
	out := make([]entity.Material, 0, len(materials))
	needle := strings.ToLower(term)
	for _, m := range materials {
		if needle != "" &&
			!strings.Contains(strings.ToLower(m.Name), needle) &&
			!strings.Contains(strings.ToLower(m.Description), needle) &&
			!strings.Contains(strings.ToLower(m.Brand), needle) {
			continue
		}
		if category != "" && category != CategoryAll && m.Category != category {
			continue
		}
		out = append(out, m)
	}
	return out
}
