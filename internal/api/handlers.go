package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nelhattab/electratrack/internal/engine"
	"github.com/nelhattab/electratrack/internal/export"
	"github.com/nelhattab/electratrack/internal/ingest"
	"github.com/nelhattab/electratrack/internal/schema"
	"github.com/nelhattab/electratrack/internal/session"
	"github.com/nelhattab/electratrack/internal/store"
	"github.com/nelhattab/electratrack/internal/tabular"
)

// slotRequest bundles what almost every handler needs: the slot's family,
// the caller's session, and the slot's current dataset.
type slotRequest struct {
	family schema.Family
	sess   *session.Session
	ds     *tabular.Dataset
}

// resolveSlot validates the slot, resolves the session, and loads the
// dataset. Writes the error response itself on failure.
func (s *Server) resolveSlot(w http.ResponseWriter, r *http.Request, needData bool) (slotRequest, bool) {
	slot := chi.URLParam(r, "slot")
	fam, err := schema.FamilyFor(slot)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown slot %q", slot))
		return slotRequest{}, false
	}
	sess := s.sessionFor(w, r)
	ds, ok := sess.Dataset(slot)
	if !ok && needData {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no file uploaded for slot %q", slot))
		return slotRequest{}, false
	}
	return slotRequest{family: fam, sess: sess, ds: ds}, true
}

// derived returns the slot dataset with status and year/month columns added,
// memoized against the upload's version.
func (s *Server) derived(req slotRequest) *tabular.Dataset {
	const deriveKey = "derive"
	if out, ok := s.cache.Get(req.ds.Version, deriveKey); ok {
		return out
	}
	out := req.ds
	if req.family.TerminationColumn != "" {
		out = tabular.WithStatus(out, req.family.TerminationColumn)
	}
	if req.family.StartColumn != "" {
		out = tabular.WithYearMonth(out, req.family.StartColumn)
	}
	s.cache.Put(req.ds.Version, deriveKey, out)
	return out
}

// filtered applies the family's filter fields from the query string.
func (s *Server) filtered(req slotRequest, r *http.Request) *tabular.Dataset {
	values := make(map[string]string, len(req.family.Filters))
	q := r.URL.Query()
	for _, f := range req.family.Filters {
		values[f.Param] = q.Get(f.Param)
	}
	return s.cache.FilterCached(s.derived(req), req.family.Spec(values))
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	fams, err := schema.Families()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "screen definitions unavailable")
		return
	}

	persisted := make(map[string]store.SlotInfo)
	if s.st != nil {
		infos, err := s.st.ListSlots(r.Context(), sess.ID)
		if err != nil {
			zap.L().Warn("api: list persisted slots", zap.Error(err))
		}
		for _, info := range infos {
			persisted[info.Slot] = info
		}
	}

	type slotState struct {
		Slot       string            `json:"slot"`
		Label      string            `json:"label"`
		Kind       schema.FamilyKind `json:"kind"`
		Loaded     bool              `json:"loaded"`
		Rows       int               `json:"rows"`
		Persisted  bool              `json:"persisted"`
		UploadedAt *time.Time        `json:"uploaded_at,omitempty"`
	}
	out := make([]slotState, 0, len(fams))
	for _, fam := range fams {
		st := slotState{Slot: fam.Slot, Label: fam.Label, Kind: fam.Kind}
		if ds, ok := sess.Dataset(fam.Slot); ok {
			st.Loaded = true
			st.Rows = ds.Len()
		}
		if info, ok := persisted[fam.Slot]; ok {
			st.Persisted = true
			at := info.UploadedAt
			st.UploadedAt = &at
			if !st.Loaded {
				st.Rows = info.RowCount
			}
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

func (s *Server) handleSlotInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slot":    req.family.Slot,
		"label":   req.family.Label,
		"kind":    req.family.Kind,
		"rows":    req.ds.Len(),
		"columns": req.ds.Columns,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, false)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	ds, err := ingest.Parse(hdr.Filename, file)
	if err != nil {
		var pe *ingest.ParseError
		if errors.As(err, &pe) {
			code := http.StatusBadRequest
			if pe.Kind == ingest.ErrUnsupported {
				code = http.StatusUnsupportedMediaType
			}
			writeJSON(w, code, map[string]string{
				"error": fmt.Sprintf("could not load %q", hdr.Filename),
				"kind":  string(pe.Kind),
			})
			return
		}
		writeError(w, http.StatusBadRequest, "could not load file")
		return
	}

	if err := s.sessions.Replace(r.Context(), req.sess, req.family.Slot, ds); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store dataset")
		return
	}
	zap.L().Info("slot replaced",
		zap.String("slot", req.family.Slot),
		zap.String("session", req.sess.ID),
		zap.Int("rows", ds.Len()),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"slot":    req.family.Slot,
		"rows":    ds.Len(),
		"columns": ds.Columns,
	})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}

	filtered := s.filtered(req, r)
	if req.family.SortColumn != "" {
		filtered = engine.SortByDateDesc(filtered, req.family.SortColumn)
	}

	pageNumber, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageDS, page := engine.Paginate(filtered, s.engCfg.PageSize, pageNumber)

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": pageDS.Columns,
		"rows":    rowsJSON(pageDS),
		"page":    page,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	name := "contrats_filtres"
	if req.family.Kind == schema.KindSubstations {
		name = "postes_filtres"
	}
	s.writeDownload(w, r, s.filtered(req, r), name)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	if req.family.EndColumn == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"count":     0,
			"rows":      []any{},
		})
		return
	}

	alerts := engine.ExpiringSoon(s.derived(req), req.family.EndColumn, s.asOf(r))
	view := alerts
	if len(req.family.AlertColumns) > 0 {
		view = alerts.Select(req.family.AlertColumns...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": true,
		"count":     alerts.Len(),
		"columns":   view.Columns,
		"rows":      rowsJSON(view),
	})
}

func (s *Server) handleAlertsExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	if req.family.EndColumn == "" {
		writeError(w, http.StatusNotFound, "no end date column for this slot")
		return
	}
	alerts := engine.ExpiringSoon(s.derived(req), req.family.EndColumn, s.asOf(r))
	s.writeDownload(w, r, alerts, "alertes_echeances")
}

// asOf reads the optional as_of query date, defaulting to today.
func (s *Server) asOf(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// writeDownload serializes the dataset as an xlsx workbook, or as CSV when the
// request asks for format=csv, and streams it as an attachment.
func (s *Server) writeDownload(w http.ResponseWriter, r *http.Request, ds *tabular.Dataset, basename string) {
	var (
		blob        []byte
		err         error
		filename    string
		contentType string
	)
	if r.URL.Query().Get("format") == "csv" {
		blob, err = export.CSV(ds)
		filename = basename + ".csv"
		contentType = "text/csv; charset=utf-8"
	} else {
		blob, err = export.XLSX(ds)
		filename = basename + ".xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		zap.L().Error("api: serialize download", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// rowsJSON renders dataset rows for a JSON response, never null.
func rowsJSON(ds *tabular.Dataset) []tabular.Row {
	if ds.Rows == nil {
		return []tabular.Row{}
	}
	return ds.Rows
}
