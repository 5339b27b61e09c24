package harvest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Per-chargepoint columns in the flattened projection.
const (
	colProtocol  = "Charging Protocol"
	colEquipment = "Charging Equipment"
	colMode      = "EVCS mode"
)

// flatPriorityColumns lead the flattened projection in this exact
// order; every other column follows alphabetically.
var flatPriorityColumns = []string{
	"station_id",
	"company_id",
	"evcs_establishment_name",
	colProtocol,
	colEquipment,
	colMode,
	"region",
}

type grid struct {
	columns []string
	rows    [][]string
}

// Exporter writes the tabular projections of a station set into an
// output directory.
type Exporter struct {
	OutputDir string
}

// Export writes the aggregated and flattened projections, each as both
// a spreadsheet and a CSV, and returns the written paths in order.
func (e Exporter) Export(set *StationSet, base string) ([]string, error) {
	var manifest []string

	aggregated := aggregatedGrid(set)
	flattened := flattenedGrid(set)

	for _, out := range []struct {
		name string
		g    grid
	}{
		{name: base, g: aggregated},
		{name: base + "_flat", g: flattened},
	} {
		xlsxPath := filepath.Join(e.OutputDir, out.name+".xlsx")
		if err := writeXlsx(xlsxPath, out.g); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", xlsxPath, err)
		}
		manifest = append(manifest, xlsxPath)

		csvPath := filepath.Join(e.OutputDir, out.name+".csv")
		if err := writeCsv(csvPath, out.g); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", csvPath, err)
		}
		manifest = append(manifest, csvPath)
	}

	return manifest, nil
}

// aggregatedGrid has one row per station with the union of every
// station's fields as columns, sorted by name.
func aggregatedGrid(set *StationSet) grid {
	stations := set.Stations()

	flat := make([]map[string]string, 0, len(stations))
	columnSet := map[string]bool{}
	for _, station := range stations {
		fields := flattenFields(station.Fields)
		for column := range fields {
			columnSet[column] = true
		}
		flat = append(flat, fields)
	}

	columns := make([]string, 0, len(columnSet))
	for column := range columnSet {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	rows := make([][]string, 0, len(flat))
	for _, fields := range flat {
		rows = append(rows, rowValues(columns, fields))
	}
	return grid{columns: columns, rows: rows}
}

// flattenedGrid has one row per charge point, each carrying its
// station's fields. A station without charge points still gets one row
// so it stays visible in the export.
func flattenedGrid(set *StationSet) grid {
	stations := set.Stations()

	var flat []map[string]string
	columnSet := map[string]bool{}
	for _, station := range stations {
		fields := flattenFields(station.Fields)
		if _, ok := fields["station_id"]; !ok {
			fields["station_id"] = station.ID
		}
		for column := range fields {
			columnSet[column] = true
		}

		points := unwrapChargepoints(station.Chargepoints)
		if len(points) == 0 {
			row := cloneFields(fields)
			row[colProtocol] = ""
			row[colEquipment] = ""
			row[colMode] = ""
			flat = append(flat, row)
			continue
		}
		for _, point := range points {
			row := cloneFields(fields)
			row[colProtocol] = joinSorted(toSet(protocolValues(point[protocolKey])))
			row[colEquipment] = firstNonEmpty(point, equipmentKeys)
			row[colMode] = firstNonEmpty(point, modeKeys)
			flat = append(flat, row)
		}
	}

	for _, column := range flatPriorityColumns {
		delete(columnSet, column)
	}
	remaining := make([]string, 0, len(columnSet))
	for column := range columnSet {
		remaining = append(remaining, column)
	}
	sort.Strings(remaining)
	columns := append(append([]string{}, flatPriorityColumns...), remaining...)

	rows := make([][]string, 0, len(flat))
	for _, fields := range flat {
		rows = append(rows, rowValues(columns, fields))
	}
	return grid{columns: columns, rows: rows}
}

// flattenFields renders a record into string cells, expanding nested
// objects into dotted column names and serializing lists as JSON.
func flattenFields(fields map[string]any) map[string]string {
	out := map[string]string{}
	flattenInto(out, "", fields)
	return out
}

func flattenInto(out map[string]string, prefix string, fields map[string]any) {
	for key, value := range fields {
		column := key
		if prefix != "" {
			column = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(out, column, v)
		case []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				out[column] = fmt.Sprintf("%v", v)
				continue
			}
			out[column] = string(encoded)
		default:
			out[column] = cellValue(v)
		}
	}
}

func cellValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, value := range values {
		out[value] = true
	}
	return out
}

func rowValues(columns []string, fields map[string]string) []string {
	row := make([]string, len(columns))
	for i, column := range columns {
		row[i] = fields[column]
	}
	return row
}

func writeXlsx(path string, g grid) error {
	book := excelize.NewFile()
	defer book.Close()

	header := make([]any, len(g.columns))
	for i, column := range g.columns {
		header[i] = column
	}
	if err := book.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return err
	}
	for i, row := range g.rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		if err := book.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return err
		}
	}

	return book.SaveAs(path)
}

func writeCsv(path string, g grid) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(g.columns); err != nil {
		return err
	}
	for _, row := range g.rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
