// Package exporter genera los archivos descargables del inventario de un
// proyecto en los tres formatos soportados. Los formatos tabulares agregan la
// columna derivada "Valor Total" (cantidad por precio); el JSON serializa las
// entidades tal cual para que el archivo sea reimportable.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/obrastock-api/internal/domain"
	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// Artifact es un archivo exportado listo para servir.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

const sheetName = "Inventario"

var exportHeader = []string{
	"ID", "Nombre", "Descripción", "Categoría", "Marca", "Color", "Tamaño",
	"Medidas", "Unidad", "Cantidad Actual", "Cantidad Mínima",
	"Precio por Unidad", "Valor Total", "Ubicación", "Proveedor", "Notas",
	"Fecha Creación", "Última Actualización",
}

var columnWidths = []float64{10, 25, 30, 15, 15, 10, 10, 15, 10, 15, 15, 15, 20, 20, 30, 15, 15, 20}

// Export produce el artefacto en el formato pedido ("xlsx", "csv" o "json").
// El nombre del archivo lleva el nombre del proyecto y la fecha del día.
func Export(materials []entity.Material, projectName, format string, now time.Time) (*Artifact, error) {
	switch format {
	case "xlsx":
		return exportExcel(materials, projectName, now)
	case "csv":
		return exportCSV(materials, projectName, now)
	case "json":
		return exportJSON(materials, projectName, now)
	default:
		return nil, &domain.FormatError{Reason: fmt.Sprintf("formato de exportación no soportado: %q", format)}
	}
}

func exportExcel(materials []entity.Material, projectName string, now time.Time) (*Artifact, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := writeSheetRow(f, 1, exportHeader); err != nil {
		return nil, err
	}
	for i, m := range materials {
		if err := writeSheetRow(f, i+2, rowValues(m)); err != nil {
			return nil, err
		}
	}
	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &Artifact{
		Name:        artifactName(projectName, "xlsx", now),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

func exportCSV(materials []entity.Material, projectName string, now time.Time) (*Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, m := range materials {
		if err := w.Write(rowValues(m)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &Artifact{
		Name:        artifactName(projectName, "csv", now),
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}

func exportJSON(materials []entity.Material, projectName string, now time.Time) (*Artifact, error) {
	if materials == nil {
		materials = []entity.Material{}
	}
	data, err := json.MarshalIndent(materials, "", "  ")
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Name:        artifactName(projectName, "json", now),
		ContentType: "application/json",
		Data:        data,
	}, nil
}

func rowValues(m entity.Material) []string {
	return []string{
		m.ID, m.Name, m.Description, m.Category, m.Brand, m.Color, m.Size,
		m.Dimensions, m.Unit,
		m.Quantity.String(), m.MinQuantity.String(), m.Price.String(),
		m.Quantity.Mul(m.Price).String(),
		m.Location, m.Supplier, m.Notes,
		m.CreatedAt.Format("02/01/2006"), m.UpdatedAt.Format("02/01/2006"),
	}
}

func writeSheetRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}

func artifactName(projectName, ext string, now time.Time) string {
	return fmt.Sprintf("%s_Inventario_%s.%s", projectName, now.Format("2006-01-02"), ext)
}
