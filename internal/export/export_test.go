package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/nelhattab/electratrack/internal/tabular"
)

func exportFixture(t *testing.T) *tabular.Dataset {
	t.Helper()
	return tabular.FromStrings(
		[]string{"Numéro contrat", "Puissance", "Date de fin"},
		[][]string{
			{"C1", "70", "2024-06-10"},
			{"C2", "", ""},
		},
	)
}

func TestXLSX(t *testing.T) {
	raw, err := XLSX(exportFixture(t))
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(raw)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Données", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	hdr := sheet.Rows[0]
	assert.Equal(t, "Numéro contrat", hdr.Cells[0].String())
	assert.Equal(t, "Puissance", hdr.Cells[1].String())

	row := sheet.Rows[1]
	assert.Equal(t, "C1", row.Cells[0].String())
	n, err := row.Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 70, n, 1e-9)
}

func TestXLSXEmptyDataset(t *testing.T) {
	ds := tabular.New([]string{"a", "b"})
	raw, err := XLSX(ds)
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(raw)
	require.NoError(t, err)
	require.Len(t, f.Sheets[0].Rows, 1)
}

func TestCSV(t *testing.T) {
	raw, err := CSV(exportFixture(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Numéro contrat,Puissance,Date de fin", lines[0])
	assert.Equal(t, "C1,70,2024-06-10", lines[1])
	// nulls render as empty cells
	assert.Equal(t, "C2,,", lines[2])
}
