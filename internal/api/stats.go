package api

import (
	"net/http"

	"github.com/nelhattab/electratrack/internal/engine"
	"github.com/nelhattab/electratrack/internal/tabular"
)

// Every stats endpoint computes over the derived dataset narrowed by the
// same filter fields the table screen uses, so a region or category
// selection carries into the charts.

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	filtered := s.filtered(req, r)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  filtered.Len(),
		"status": engine.Breakdown(filtered),
	})
}

// groupCountResponse renders a single-key count series.
func (s *Server) groupCountResponse(w http.ResponseWriter, r *http.Request, column func(f slotRequest) string) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	counts := engine.GroupCount(s.filtered(req, r), column(req))
	if counts == nil {
		counts = []engine.KeyCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *Server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	s.groupCountResponse(w, r, func(req slotRequest) string { return req.family.CategoryColumn })
}

func (s *Server) handleStatsStatus(w http.ResponseWriter, r *http.Request) {
	s.groupCountResponse(w, r, func(slotRequest) string { return tabular.ColStatus })
}

func (s *Server) handleStatsCommunes(w http.ResponseWriter, r *http.Request) {
	s.groupCountResponse(w, r, func(req slotRequest) string { return req.family.CommuneColumn })
}

func (s *Server) handleStatsAgencies(w http.ResponseWriter, r *http.Request) {
	s.groupCountResponse(w, r, func(req slotRequest) string { return req.family.RegionColumn })
}

func (s *Server) handleStatsYears(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	years := engine.YearCounts(s.filtered(req, r), req.family.StartColumn)
	if years == nil {
		years = []engine.YearCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years})
}

func (s *Server) handleStatsMonths(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	months, year, found := engine.LatestYearMonthCounts(s.filtered(req, r), req.family.StartColumn)
	if months == nil {
		months = []engine.MonthCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":      year,
		"available": found,
		"months":    months,
	})
}

func (s *Server) handleStatsPivot(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	rowCol := r.URL.Query().Get("rows")
	colCol := r.URL.Query().Get("cols")
	if !req.family.AllowsPivot(rowCol, colCol) {
		writeError(w, http.StatusBadRequest, "rows and cols must be declared pivot columns")
		return
	}
	writeJSON(w, http.StatusOK, engine.CrossTab(s.filtered(req, r), rowCol, colCol))
}

func (s *Server) handleStatsPower(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	if req.family.ValueColumn == "" {
		writeError(w, http.StatusNotFound, "no value column for this slot")
		return
	}
	by := r.URL.Query().Get("by")
	if !req.family.AllowsPivot(by, by) {
		writeError(w, http.StatusBadRequest, "by must be a declared pivot column")
		return
	}
	sums := engine.GroupSum(s.filtered(req, r), by, req.family.ValueColumn)
	if sums == nil {
		sums = []engine.KeySum{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sums": sums})
}

func (s *Server) handleStatsPairs(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolveSlot(w, r, true)
	if !ok {
		return
	}
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if !req.family.AllowsPivot(a, b) {
		writeError(w, http.StatusBadRequest, "a and b must be declared pivot columns")
		return
	}
	pairs := engine.GroupCount2(s.filtered(req, r), a, b)
	if pairs == nil {
		pairs = []engine.PairCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}
