package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

func filterFixture() []entity.Material {
	return []entity.Material{
		{ID: "1", Name: "Cemento Portland", Description: "saco 50kg", Brand: "Holcim", Category: "Cemento y Mortero"},
		{ID: "2", Name: "Arena fina", Description: "para revoque", Brand: "Local", Category: "Áridos"},
		{ID: "3", Name: "Ladrillo hueco", Description: "12x18x33", Brand: "Cerámica Norte", Category: "Mampostería"},
	}
}

func TestFilterMaterials(t *testing.T) {
	cases := []struct {
		name     string
		term     string
		category string
		wantIDs  []string
	}{
		{"sin filtros devuelve todo", "", CategoryAll, []string{"1", "2", "3"}},
		{"término sobre nombre, sin mayúsculas", "CEMENTO", CategoryAll, []string{"1"}},
		{"término sobre descripción", "revoque", CategoryAll, []string{"2"}},
		{"término sobre marca", "cerámica", CategoryAll, []string{"3"}},
		{"categoría exacta", "", "Áridos", []string{"2"}},
		{"término y categoría combinados", "cemento", "Cemento y Mortero", []string{"1"}},
		{"categoría exacta no es subcadena", "", "Cemento", nil},
		{"sin coincidencias", "acero", CategoryAll, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterMaterials(filterFixture(), tc.term, tc.category)
			ids := make([]string, 0, len(got))
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			if tc.wantIDs == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestFilterMaterials_ConservaElOrden(t *testing.T) {
	in := filterFixture()
	got := FilterMaterials(in, "", "")
	assert.Equal(t, in, got, "sin filtros la vista es la colección en su orden")
}
