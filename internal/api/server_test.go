package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/nelhattab/electratrack/internal/config"
	"github.com/nelhattab/electratrack/internal/session"
	"github.com/nelhattab/electratrack/internal/store"
	"github.com/nelhattab/electratrack/internal/tabular"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           0,
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 8 << 20,
			UploadsPerMin:  1000,
		},
		Engine: config.EngineConfig{PageSize: 10, CacheEntries: 64},
	}
	mgr := session.NewManager(time.Hour, nil)
	return New(cfg, mgr, nil).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, sessionID string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func uploadCSV(t *testing.T, h http.Handler, slot, filename, csv, sessionID string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, csv)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/"+slot+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Header().Get("X-Session-ID")
}

const kelaaCSV = `Numéro contrat,Nom de client titulaire,Commune,Catégorie d'abonnement,Date resiliation du contrat,Date de début,Date de fin
C1,OULED AISSA,El Kelaa des Sraghna,Domestique,,2023-02-10,2024-01-20
C2,BENNANI,Tamellalt,Industriel,2023-05-01,2022-07-01,2024-03-01
C3,ALAMI,El Kelaa des Sraghna,Domestique,,2023-02-15,
C4,EL IDRISSI,Laataouia,Domestique,,2024-03-05,2024-01-15
`

const postesCSV = `MATRICULE,NOMDEPART,NOM COMMUNE,TYPEPOSTE,PUISNOM,ADRESCIVIQ
P1,DEP1,El Kelaa,H61,100,Rue A
P2,DEP1,El Kelaa,Cabine,160,Rue B
P3,DEP2,Tamellalt,H61,50,Rue C
`

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec, body := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestListSlots(t *testing.T) {
	h := newTestServer(t)
	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))

	slots := body["slots"].([]any)
	require.Len(t, slots, 3)
	first := slots[0].(map[string]any)
	assert.Equal(t, "contrats_kelaa", first["slot"])
	assert.Equal(t, false, first["loaded"])
}

// slotLister stubs the persistence layer with canned slot summaries.
type slotLister struct {
	infos []store.SlotInfo
}

func (s *slotLister) SaveDataset(context.Context, string, string, *tabular.Dataset) error {
	return nil
}

func (s *slotLister) GetDataset(context.Context, string, string) (*tabular.Dataset, error) {
	return nil, nil
}

func (s *slotLister) ListSlots(context.Context, string) ([]store.SlotInfo, error) {
	return s.infos, nil
}

func (s *slotLister) DeleteExpired(context.Context) (int, error) { return 0, nil }
func (s *slotLister) Migrate(context.Context) error              { return nil }
func (s *slotLister) Close() error                               { return nil }

func TestListSlotsIncludesPersisted(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 8 << 20,
			UploadsPerMin:  1000,
		},
		Engine: config.EngineConfig{PageSize: 10, CacheEntries: 64},
	}
	uploaded := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	st := &slotLister{infos: []store.SlotInfo{
		{Slot: "postes", RowCount: 7, UploadedAt: uploaded},
	}}
	mgr := session.NewManager(time.Hour, nil)
	h := New(cfg, mgr, st).Router()

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, raw := range body["slots"].([]any) {
		m := raw.(map[string]any)
		if m["slot"] == "postes" {
			assert.Equal(t, true, m["persisted"])
			assert.Equal(t, false, m["loaded"])
			assert.InDelta(t, 7, m["rows"].(float64), 1e-9)
			assert.Equal(t, uploaded.Format(time.RFC3339), m["uploaded_at"])
		} else {
			assert.Equal(t, false, m["persisted"])
		}
	}
}

func TestUploadAndSlotInfo(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")
	require.NotEmpty(t, sid)

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/", sid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["rows"])

	// the other slot is unaffected
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/slots/postes/", sid)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// another session sees nothing
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/", "other-session")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadUnknownSlot(t *testing.T) {
	h := newTestServer(t)
	rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/slots/bogus/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadUnsupportedFile(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	io.WriteString(fw, "plain text")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/postes/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unsupported", body["kind"])
}

func TestUploadMissingFileField(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/postes/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRowsFilteredAndPaged(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/rows?commune=kelaa", sid)
	require.Equal(t, http.StatusOK, rec.Code)

	rows := body["rows"].([]any)
	assert.Len(t, rows, 2)
	page := body["page"].(map[string]any)
	assert.EqualValues(t, 1, page["number"])
	assert.EqualValues(t, 2, page["total_rows"])
	assert.EqualValues(t, 1, page["total_pages"])

	// derived status column is present
	cols := body["columns"].([]any)
	assert.Contains(t, cols, "État Contrat")
}

func TestRowsNoUpload(t *testing.T) {
	h := newTestServer(t)
	rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/rows", "fresh")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRowsSortedByStartDateDesc(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	_, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/rows", sid)
	rows := body["rows"].([]any)
	require.Len(t, rows, 4)
	first := rows[0].([]any)
	// C4 has the newest start date
	assert.Equal(t, "C4", first[0])
}

func TestAlerts(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/alerts?as_of=2024-01-15", sid)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["available"])
	// C1 ends Jan 20 (inside), C4 ends Jan 15 (inclusive lower bound),
	// C2 ends Mar 1 (outside), C3 has no end date
	assert.EqualValues(t, 2, body["count"])
	cols := body["columns"].([]any)
	assert.Equal(t, []any{"Numéro contrat", "Nom de client titulaire", "Date de fin"}, cols)
}

func TestAlertsUnavailableForSubstations(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/postes/alerts", sid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["available"])
	assert.EqualValues(t, 0, body["count"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/slots/postes/alerts/export", sid)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsSummary(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	rec, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/stats/summary", sid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["total"])

	status := body["status"].(map[string]any)
	assert.EqualValues(t, 3, status["active"])
	assert.EqualValues(t, 1, status["terminated"])
	assert.InDelta(t, 75, status["active_pct"].(float64), 1e-9)
}

func TestStatsSummaryRespectsFilters(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	_, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/stats/summary?commune=kelaa", sid)
	assert.EqualValues(t, 2, body["total"])
}

func TestStatsCategories(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	_, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/stats/categories", sid)
	counts := body["counts"].([]any)
	require.Len(t, counts, 2)
	first := counts[0].(map[string]any)
	assert.Equal(t, "Domestique", first["key"])
	assert.EqualValues(t, 3, first["count"])
}

func TestStatsYearsAndMonths(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")

	_, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/stats/years", sid)
	years := body["years"].([]any)
	require.Len(t, years, 3)
	first := years[0].(map[string]any)
	assert.EqualValues(t, 2022, first["year"])

	_, body = doJSON(t, h, http.MethodGet, "/api/v1/slots/contrats_kelaa/stats/months", sid)
	assert.Equal(t, true, body["available"])
	assert.EqualValues(t, 2024, body["year"])
	months := body["months"].([]any)
	require.Len(t, months, 1)
	m := months[0].(map[string]any)
	assert.Equal(t, "mars", m["label"])
}

func TestStatsPivot(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	rec, body := doJSON(t, h, http.MethodGet,
		"/api/v1/slots/postes/stats/pivot?rows=NOM+COMMUNE&cols=TYPEPOSTE", sid)
	require.Equal(t, http.StatusOK, rec.Code)

	rowKeys := body["row_keys"].([]any)
	colKeys := body["col_keys"].([]any)
	assert.Equal(t, []any{"El Kelaa", "Tamellalt"}, rowKeys)
	assert.Equal(t, []any{"H61", "Cabine"}, colKeys)
	cells := body["cells"].([]any)
	require.Len(t, cells, 2)

	rec, _ = doJSON(t, h, http.MethodGet,
		"/api/v1/slots/postes/stats/pivot?rows=PUISNOM&cols=TYPEPOSTE", sid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsPower(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	rec, body := doJSON(t, h, http.MethodGet,
		"/api/v1/slots/postes/stats/power?by=NOM+COMMUNE", sid)
	require.Equal(t, http.StatusOK, rec.Code)

	sums := body["sums"].([]any)
	require.Len(t, sums, 2)
	first := sums[0].(map[string]any)
	assert.Equal(t, "El Kelaa", first["key"])
	assert.InDelta(t, 260, first["sum"].(float64), 1e-9)

	// contracts carry no value column
	sid2 := uploadCSV(t, h, "contrats_kelaa", "contrats.csv", kelaaCSV, "")
	rec, _ = doJSON(t, h, http.MethodGet,
		"/api/v1/slots/contrats_kelaa/stats/power?by=Commune", sid2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsPairs(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	rec, body := doJSON(t, h, http.MethodGet,
		"/api/v1/slots/postes/stats/pairs?a=NOMDEPART&b=TYPEPOSTE", sid)
	require.Equal(t, http.StatusOK, rec.Code)
	pairs := body["pairs"].([]any)
	require.Len(t, pairs, 3)
}

func TestExportWorkbook(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/postes/export?commune=kelaa", nil)
	req.Header.Set("X-Session-ID", sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "postes_filtres.xlsx")

	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	// header plus the two El Kelaa rows
	assert.Len(t, f.Sheets[0].Rows, 3)
}

func TestExportCSV(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/postes/export?format=csv", nil)
	req.Header.Set("X-Session-ID", sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "postes_filtres.csv")
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
}

func TestUploadReplacesWholesale(t *testing.T) {
	h := newTestServer(t)
	sid := uploadCSV(t, h, "postes", "postes.csv", postesCSV, "")

	smaller := "MATRICULE,NOM COMMUNE,TYPEPOSTE,PUISNOM,NOMDEPART,ADRESCIVIQ\nP9,Attaouia,H61,25,DEP9,Rue Z\n"
	uploadCSV(t, h, "postes", "postes2.csv", smaller, sid)

	_, body := doJSON(t, h, http.MethodGet, "/api/v1/slots/postes/", sid)
	assert.EqualValues(t, 1, body["rows"])
}
