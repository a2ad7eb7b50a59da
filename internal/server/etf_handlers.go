package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"etfwatch/internal/nse"
	"etfwatch/internal/quotecache"
	"etfwatch/internal/store"
)

// QuoteSource provides cached quote lookups. Implemented by quotecache.Cache.
type QuoteSource interface {
	Get(ctx context.Context, symbol string) quotecache.Result
	GetBatch(ctx context.Context, symbols []string) []quotecache.Result
}

// ETFSearcher proxies the trading-app keyword search. Implemented by nse.Client.
type ETFSearcher interface {
	SearchETFs(ctx context.Context, keyword string) ([]nse.SearchResult, error)
}

// ETFHandler handles watch-list CRUD and quote enrichment.
type ETFHandler struct {
	etfs     *store.ETFRepo
	quotes   QuoteSource
	searcher ETFSearcher
	log      zerolog.Logger
}

func NewETFHandler(etfs *store.ETFRepo, quotes QuoteSource, searcher ETFSearcher, log zerolog.Logger) *ETFHandler {
	return &ETFHandler{
		etfs:     etfs,
		quotes:   quotes,
		searcher: searcher,
		log:      log.With().Str("handler", "etfs").Logger(),
	}
}

type etfBody struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	UserID string `json:"userId"`
}

// enrichedETF is a watch-list item with live quote fields attached. The
// quote fields stay null when the scraping subsystem degrades, keeping the
// response shape identical either way.
type enrichedETF struct {
	store.ETF
	LastPrice *float64 `json:"lastPrice"`
	INavValue *float64 `json:"iNavValue"`
}

// HandleCreate handles POST /api/etfs.
func (h *ETFHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body etfBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if body.Name == "" || body.Symbol == "" {
		writeError(w, http.StatusBadRequest, "Name and symbol are required")
		return
	}

	etf := store.ETF{Name: body.Name, Symbol: body.Symbol, UserID: body.UserID}
	if err := h.etfs.Create(&etf); err != nil {
		h.log.Error().Err(err).Msg("create etf")
		writeError(w, http.StatusInternalServerError, "Error creating ETF")
		return
	}
	writeJSON(w, http.StatusCreated, etf)
}

// HandleList handles GET /api/etfs?userId=. The list is enriched with live
// price and iNAV; upstream failures surface as null fields, never as an
// error response.
func (h *ETFHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	etfs, err := h.etfs.ListByUser(userID)
	if err != nil {
		h.log.Error().Err(err).Msg("list etfs")
		writeError(w, http.StatusInternalServerError, "Error fetching ETFs")
		return
	}

	symbols := make([]string, len(etfs))
	for i, e := range etfs {
		symbols[i] = e.Symbol
	}
	results := h.quotes.GetBatch(r.Context(), symbols)

	out := make([]enrichedETF, len(etfs))
	for i, e := range etfs {
		out[i] = enrichedETF{ETF: e}
		if i < len(results) {
			out[i].LastPrice = results[i].LastPrice
			out[i].INavValue = results[i].INavValue
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpdate handles PUT /api/etfs/{id}.
func (h *ETFHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var body etfBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	etf, err := h.etfs.GetByID(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ETF not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("load etf")
		writeError(w, http.StatusInternalServerError, "Error updating ETF")
		return
	}
	if etf.UserID != body.UserID {
		writeError(w, http.StatusForbidden, "Not authorized to update this ETF")
		return
	}

	if body.Name != "" {
		etf.Name = body.Name
	}
	if body.Symbol != "" {
		etf.Symbol = body.Symbol
	}
	if err := h.etfs.Update(etf); err != nil {
		h.log.Error().Err(err).Msg("update etf")
		writeError(w, http.StatusInternalServerError, "Error updating ETF")
		return
	}
	writeJSON(w, http.StatusOK, etf)
}

// HandleDelete handles DELETE /api/etfs/{id}.
func (h *ETFHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	etf, err := h.etfs.GetByID(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ETF not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("load etf")
		writeError(w, http.StatusInternalServerError, "Error deleting ETF")
		return
	}
	if etf.UserID != body.UserID {
		writeError(w, http.StatusForbidden, "Not authorized to delete this ETF")
		return
	}

	if err := h.etfs.Delete(etf.ID); err != nil {
		h.log.Error().Err(err).Msg("delete etf")
		writeError(w, http.StatusInternalServerError, "Error deleting ETF")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ETF deleted successfully"})
}

// HandleSearch handles GET /api/etfs/search?q=. Stateless pass-through; an
// upstream failure here is a hard error, unlike the quote path.
func (h *ETFHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	results, err := h.searcher.SearchETFs(r.Context(), keyword)
	if err != nil {
		h.log.Warn().Err(err).Str("keyword", keyword).Msg("search failed")
		writeError(w, http.StatusBadGateway, "Error searching ETFs")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleQuote handles GET /api/etfs/nse-data?symbol=. Upstream failure
// degrades to null fields.
func (h *ETFHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	res := h.quotes.Get(r.Context(), symbol)
	writeJSON(w, http.StatusOK, res)
}
