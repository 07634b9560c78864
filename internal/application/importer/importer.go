// Package importer implementa el colaborador de importación: dados los bytes
// de un archivo y su formato declarado, produce la lista de borradores de
// material validados o falla con un error descriptivo. Un lote con una sola
// fila inválida se rechaza completo: nunca hay importación parcial.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/obrastock-api/internal/application/record"
	"github.com/jhoicas/obrastock-api/internal/domain"
)

// Encabezados de columna reconocidos (como los produce la exportación).
const (
	headerName        = "nombre"
	headerDescription = "descripción"
	headerCategory    = "categoría"
	headerBrand       = "marca"
	headerColor       = "color"
	headerSize        = "tamaño"
	headerDimensions  = "medidas"
	headerUnit        = "unidad"
	headerQuantity    = "cantidad actual"
	headerMinQuantity = "cantidad mínima"
	headerPrice       = "precio por unidad"
	headerLocation    = "ubicación"
	headerSupplier    = "proveedor"
	headerNotes       = "notas"
)

// Import parsea el archivo según su extensión y devuelve los borradores
// validados. Extensión desconocida o contenido no parseable -> FormatError;
// fila sin campos requeridos -> ValidationError con el ordinal de la fila
// (entre las filas de datos) y los campos faltantes.
func Import(data []byte, filename string) ([]record.MaterialDraft, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return importExcel(data)
	case ".csv":
		return importCSV(data)
	case ".json":
		return importJSON(data)
	default:
		return nil, &domain.FormatError{Reason: "extensión no soportada (se admite .xlsx, .csv o .json)"}
	}
}

func importExcel(data []byte) ([]record.MaterialDraft, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.FormatError{Reason: "el archivo Excel está dañado o no es .xlsx"}
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) < 2 {
		return nil, &domain.FormatError{Reason: "el archivo debe tener una fila de encabezados y al menos una de datos"}
	}
	return draftsFromRows(rows[0], rows[1:])
}

func importCSV(data []byte) ([]record.MaterialDraft, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // filas cortas se toleran; faltantes quedan vacíos
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &domain.FormatError{Reason: "el archivo CSV no se pudo parsear"}
	}
	if len(rows) < 2 {
		return nil, &domain.FormatError{Reason: "el archivo debe tener una fila de encabezados y al menos una de datos"}
	}
	return draftsFromRows(rows[0], rows[1:])
}

func importJSON(data []byte) ([]record.MaterialDraft, error) {
	var drafts []record.MaterialDraft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, &domain.FormatError{Reason: "el archivo JSON no se pudo parsear"}
	}
	if len(drafts) == 0 {
		return nil, &domain.FormatError{Reason: "no se encontraron datos válidos para importar"}
	}
	for i, d := range drafts {
		if missing := missingFields(d); len(missing) > 0 {
			return nil, &domain.ValidationError{Row: i + 1, Fields: missing}
		}
	}
	return drafts, nil
}

// draftsFromRows mapea filas tabulares (xlsx/csv) a borradores usando los
// encabezados. Valida el lote entero antes de devolver nada.
func draftsFromRows(header []string, rows [][]string) ([]record.MaterialDraft, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	drafts := make([]record.MaterialDraft, 0, len(rows))
	rowNum := 0
	for _, row := range rows {
		if emptyRow(row) {
			continue
		}
		rowNum++
		d := record.MaterialDraft{
			Name:        cell(row, cols, headerName),
			Description: cell(row, cols, headerDescription),
			Category:    cell(row, cols, headerCategory),
			Brand:       cell(row, cols, headerBrand),
			Color:       cell(row, cols, headerColor),
			Size:        cell(row, cols, headerSize),
			Dimensions:  cell(row, cols, headerDimensions),
			Unit:        cell(row, cols, headerUnit),
			Quantity:    cellDecimal(row, cols, headerQuantity),
			MinQuantity: cellDecimal(row, cols, headerMinQuantity),
			Price:       cellDecimal(row, cols, headerPrice),
			Location:    cell(row, cols, headerLocation),
			Supplier:    cell(row, cols, headerSupplier),
			Notes:       cell(row, cols, headerNotes),
		}
		if missing := missingFields(d); len(missing) > 0 {
			return nil, &domain.ValidationError{Row: rowNum, Fields: missing}
		}
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, &domain.FormatError{Reason: "no se encontraron datos válidos para importar"}
	}
	return drafts, nil
}

// missingFields devuelve los campos requeridos ausentes, en forma de
// aplicación, en orden estable.
func missingFields(d record.MaterialDraft) []string {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(d.Location) == "" {
		missing = append(missing, "location")
	}
	return missing
}

func cell(row []string, cols map[string]int, header string) string {
	i, ok := cols[header]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellDecimal(row []string, cols map[string]int, header string) decimal.Decimal {
	s := cell(row, cols, header)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
