package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"finmate/internal/auth"
	"finmate/internal/core"
	"finmate/internal/services"

	"github.com/shopspring/decimal"
)

// trendMonths is the length of the cashflow trend on the summary.
const trendMonths = 6

type summaryResponse struct {
	OwnerID     string                 `json:"ownerId"`
	Currency    string                 `json:"currency"`
	Period      core.PeriodKey         `json:"period"`
	Totals      core.BalanceTotals     `json:"totals"`
	DebtRatio   decimal.Decimal        `json:"debtRatio"`
	Cashflow    core.PeriodFlow        `json:"cashflow"`
	Trend       []core.PeriodFlow      `json:"trend"`
	Obligations core.ObligationSummary `json:"obligations"`
	Milestones  []core.MilestoneStatus `json:"milestones"`
	Version     int64                  `json:"version"`
	Sync        services.SyncStatus    `json:"sync"`
}

type entriesResponse struct {
	Bucket  string         `json:"bucket"`
	Period  core.PeriodKey `json:"period,omitempty"`
	Entries []core.Entry   `json:"entries"`
}

type entryResponse struct {
	Entry core.Entry          `json:"entry"`
	Sync  services.SyncStatus `json:"sync"`
}

type obligationResponse struct {
	Obligation core.Obligation     `json:"obligation"`
	Sync       services.SyncStatus `json:"sync"`
}

type rolloverResponse struct {
	Period  core.PeriodKey      `json:"period"`
	Created []core.Entry        `json:"created"`
	Sync    services.SyncStatus `json:"sync"`
}

type projectionResponse struct {
	Forecast core.ForecastConfig `json:"forecast"`
	Years    []core.YearSnapshot `json:"years"`
	Cached   bool                `json:"cached"`
}

func owner(r *http.Request) string {
	id, _ := auth.OwnerFrom(r.Context())
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.projections.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"projectionCache": map[string]int{
			"entries": s.projections.Size(),
			"hits":    hits,
			"misses":  misses,
		},
		"rateLimiter": map[string]int{
			"activeClients": s.rateLimiter.activeClients(),
		},
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, st := s.ledger.Load(r.Context(), owner(r))
	now := s.ledger.Now()
	period := core.PeriodAt(now)
	writeJSON(w, http.StatusOK, summaryResponse{
		OwnerID:     snap.OwnerID,
		Currency:    snap.Currency,
		Period:      period,
		Totals:      services.Totals(snap),
		DebtRatio:   services.DebtRatio(snap),
		Cashflow:    services.Flow(snap, period),
		Trend:       services.CashflowTrend(snap, now, trendMonths),
		Obligations: services.ObligationStatus(snap),
		Milestones:  services.Milestones(snap),
		Version:     snap.Version,
		Sync:        st,
	})
}

// handleCashflow returns the flow of the current period shifted by ?offset.
func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	snap, _ := s.ledger.Load(r.Context(), owner(r))
	period := core.PeriodAt(s.ledger.Now()).Shift(offset)
	writeJSON(w, http.StatusOK, services.Flow(snap, period))
}

// handleBreakdown groups assets or expenses by category or subcategory.
// Expenses are restricted to one period; assets are a balance and are not.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	bucket, err := queryBucket(r, core.BucketExpenses)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if bucket != core.BucketAssets && bucket != core.BucketExpenses {
		respondError(w, r, badRequest{"bucket must be assets or expenses"})
		return
	}
	var label services.LabelFunc
	switch by := r.URL.Query().Get("by"); by {
	case "", "category":
		label = services.ByCategory
	case "subcategory":
		label = services.BySubcategory
	default:
		respondError(w, r, badRequest{fmt.Sprintf("invalid by %q: must be category or subcategory", by)})
		return
	}

	snap, _ := s.ledger.Load(r.Context(), owner(r))
	var keep func(core.Entry) bool
	var period core.PeriodKey
	if bucket == core.BucketExpenses {
		if period, err = queryPeriod(r, s.ledger.Now()); err != nil {
			respondError(w, r, err)
			return
		}
		keep = services.InPeriod(period)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bucket": bucket.String(),
		"period": period,
		"groups": services.CategoryBreakdown(snap.Entries(bucket), keep, label),
	})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	bucket, err := queryBucket(r, core.BucketExpenses)
	if err != nil {
		respondError(w, r, err)
		return
	}
	snap, _ := s.ledger.Load(r.Context(), owner(r))
	entries := snap.Entries(bucket)
	resp := entriesResponse{Bucket: bucket.String(), Entries: entries}
	if r.URL.Query().Get("period") != "" {
		if resp.Period, err = queryPeriod(r, s.ledger.Now()); err != nil {
			respondError(w, r, err)
			return
		}
		in := services.InPeriod(resp.Period)
		resp.Entries = make([]core.Entry, 0, len(entries))
		for _, e := range entries {
			if in(e) {
				resp.Entries = append(resp.Entries, e)
			}
		}
	}
	if resp.Entries == nil {
		resp.Entries = []core.Entry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ownerID := owner(r)
	e, err := req.toEntry(ownerID, s.ledger.Now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, st, err := s.ledger.AddEntry(r.Context(), ownerID, e)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryResponse{Entry: e, Sync: st})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, st, err := s.ledger.RemoveEntry(r.Context(), owner(r), id)
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "sync": st})
}

// respondEdit reports a refused edit. An unreadable ledger carries its sync
// status so clients can show why.
func respondEdit(w http.ResponseWriter, r *http.Request, err error, st services.SyncStatus) {
	if errors.Is(err, services.ErrLedgerUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "sync": st})
		return
	}
	respondError(w, r, err)
}

func (s *Server) handleCreateObligation(w http.ResponseWriter, r *http.Request) {
	var req obligationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ownerID := owner(r)
	o, err := req.toObligation(ownerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, st, err := s.ledger.AddObligation(r.Context(), ownerID, o)
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusCreated, obligationResponse{Obligation: o, Sync: st})
}

func (s *Server) handleDeleteObligation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, st, err := s.ledger.RemoveObligation(r.Context(), owner(r), id)
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "sync": st})
}

func (s *Server) handleSetObligationPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req paidRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.IsPaid == nil {
		respondError(w, r, badRequest{"isPaid is required"})
		return
	}
	snap, st, err := s.ledger.SetObligationPaid(r.Context(), owner(r), id, *req.IsPaid)
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	resp := obligationResponse{Sync: st}
	for _, o := range snap.Obligations {
		if o.ID == id {
			resp.Obligation = o
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetForecast(w http.ResponseWriter, r *http.Request) {
	var cfg core.ForecastConfig
	if err := decodeJSON(r, &cfg); err != nil {
		respondError(w, r, err)
		return
	}
	snap, st, err := s.ledger.SetForecast(r.Context(), owner(r), cfg)
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecast": snap.Forecast, "sync": st})
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	snap, st, err := s.ledger.SetCurrency(r.Context(), owner(r), sanitizeInput(req.Currency))
	if err != nil {
		respondEdit(w, r, err, st)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currency": snap.Currency, "sync": st})
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	now := s.ledger.Now()
	_, created, st := s.ledger.Rollover(r.Context(), owner(r), now)
	writeJSON(w, http.StatusOK, rolloverResponse{
		Period:  core.PeriodAt(now),
		Created: created,
		Sync:    st,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, st := s.ledger.Reset(r.Context(), owner(r))
	writeJSON(w, http.StatusOK, map[string]any{"version": snap.Version, "sync": st})
}

// handleProjection projects the ledger's forecast (GET) or the posted
// parameters (POST). Results are cached by parameters since the projection
// depends on nothing else.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var cfg core.ForecastConfig
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &cfg); err != nil {
			respondError(w, r, err)
			return
		}
	} else {
		snap, _ := s.ledger.Load(r.Context(), owner(r))
		cfg = snap.Forecast
	}
	if err := cfg.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	key := fmt.Sprintf("%g|%g|%g|%d", cfg.Initial, cfg.MonthlyContribution, cfg.AnnualRatePercent, cfg.Years)
	years, hit := s.projections.GetOrCompute(key, func() []core.YearSnapshot {
		return services.Project(cfg)
	})
	writeJSON(w, http.StatusOK, projectionResponse{Forecast: cfg, Years: years, Cached: hit})
}
