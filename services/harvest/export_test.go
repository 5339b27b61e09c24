package harvest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportFixture(t *testing.T) *StationSet {
	t.Helper()
	sm := map[string]any{
		"id":                      float64(1),
		"station_id":              float64(1),
		"evcs_establishment_name": "SM North EDSA",
		"company_id":              float64(10),
		"region":                  "NCR",
		"address": map[string]any{
			"city":     "Quezon City",
			"barangay": "Bagong Pag-asa",
		},
	}
	vacant := map[string]any{
		"id":                      float64(2),
		"station_id":              float64(2),
		"evcs_establishment_name": "Vacant Lot Site",
		"company_id":              float64(11),
		"region":                  "Region III",
	}
	set := Aggregate([][]map[string]any{{
		chargepoint(sm, map[string]any{
			"mode": "Mode 4", "charging_protocol": "CCS", "id_or_serial_number": "CP-1",
		}),
		chargepoint(sm, map[string]any{
			"mode": "Mode 3", "charging_protocol": "Type 2", "id_or_serial_number": "CP-2",
		}),
		chargepoint(vacant, nil),
	}})
	Enrich(set)
	return set
}

func readCsv(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportManifestOrder(t *testing.T) {
	dir := t.TempDir()
	manifest, err := Exporter{OutputDir: dir}.Export(exportFixture(t), "evcs_data_January_02_2026_08_30")
	require.NoError(t, err)

	var names []string
	for _, path := range manifest {
		names = append(names, filepath.Base(path))
	}
	want := []string{
		"evcs_data_January_02_2026_08_30.xlsx",
		"evcs_data_January_02_2026_08_30.csv",
		"evcs_data_January_02_2026_08_30_flat.xlsx",
		"evcs_data_January_02_2026_08_30_flat.csv",
	}
	require.Empty(t, cmp.Diff(want, names))

	for _, path := range manifest {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}

func TestExportAggregatedCsv(t *testing.T) {
	dir := t.TempDir()
	manifest, err := Exporter{OutputDir: dir}.Export(exportFixture(t), "out")
	require.NoError(t, err)

	rows := readCsv(t, manifest[1])
	require.Len(t, rows, 3)

	header := rows[0]
	require.IsIncreasing(t, header)
	require.Contains(t, header, FieldProtocols)
	require.Contains(t, header, "address.city")
	require.NotContains(t, header, "chargepoints")

	byColumn := func(row []string) map[string]string {
		out := map[string]string{}
		for i, column := range header {
			out[column] = row[i]
		}
		return out
	}
	first := byColumn(rows[1])
	require.Equal(t, "SM North EDSA", first["evcs_establishment_name"])
	require.Equal(t, "CCS, Type 2", first[FieldProtocols])
	require.Equal(t, "Quezon City", first["address.city"])
}

func TestExportFlattenedCsv(t *testing.T) {
	dir := t.TempDir()
	manifest, err := Exporter{OutputDir: dir}.Export(exportFixture(t), "out")
	require.NoError(t, err)

	rows := readCsv(t, manifest[3])

	// two charge point rows for the first station plus a placeholder
	// row for the station without any
	require.Len(t, rows, 4)

	header := rows[0]
	require.Equal(t, flatPriorityColumns, header[:len(flatPriorityColumns)])
	require.IsIncreasing(t, header[len(flatPriorityColumns):])

	require.Equal(t, []string{"1", "10", "SM North EDSA", "CCS", "CP-1", "Mode 4", "NCR"},
		rows[1][:len(flatPriorityColumns)])
	require.Equal(t, []string{"1", "10", "SM North EDSA", "Type 2", "CP-2", "Mode 3", "NCR"},
		rows[2][:len(flatPriorityColumns)])
	require.Equal(t, []string{"2", "11", "Vacant Lot Site", "", "", "", "Region III"},
		rows[3][:len(flatPriorityColumns)])
}

func TestExportXlsxMatchesCsv(t *testing.T) {
	dir := t.TempDir()
	manifest, err := Exporter{OutputDir: dir}.Export(exportFixture(t), "out")
	require.NoError(t, err)

	book, err := excelize.OpenFile(manifest[0])
	require.NoError(t, err)
	defer book.Close()

	sheetRows, err := book.GetRows("Sheet1")
	require.NoError(t, err)

	csvRows := readCsv(t, manifest[1])
	require.Equal(t, len(csvRows), len(sheetRows))
	require.Equal(t, csvRows[0], sheetRows[0])
}
