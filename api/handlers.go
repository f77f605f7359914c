package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seenimoa/fxvault/internal/config"
	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/metrics"
	"github.com/seenimoa/fxvault/pkg/money"
)

// metricsMiddleware observes request latency per matched route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":   "ok",
			"version":  Version,
			"time_utc": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// parseBase reads the optional base query parameter, falling back to the
// configured snapshot base.
func (s *Server) parseBase(r *http.Request) (money.Currency, error) {
	code := r.URL.Query().Get("base")
	if code == "" {
		code = s.cfg.Forex.BaseCurrency
	}
	return money.ParseCurrency(code)
}

// parseDate reads an optional YYYY-MM-DD query parameter. A nil result means
// the parameter was absent.
func parseDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, forex.NewInputError(fmt.Sprintf("invalid %s %q, want YYYY-MM-DD", key, raw))
	}
	return &d, nil
}

// handleRates serves GET /v1/rates?base=EUR&date=2024-02-15.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	base, err := s.parseBase(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	date, err := parseDate(r, "date")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cacheKey := "rates:" + base.Code()
	if date != nil {
		cacheKey += ":" + date.Format("2006-01-02")
	}
	if cached, ok := s.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cached})
		return
	}

	resp, err := forex.GetRates(r.Context(), s.storage, base, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.cache.Set(cacheKey, resp)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleConvert serves GET /v1/convert?from=USD+100&to=EUR&date=2024-02-15.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" || toRaw == "" {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}

	from, err := money.Parse(fromRaw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	to, err := money.ParseCurrency(toRaw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	date, err := parseDate(r, "date")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var conv forex.ConversionResponse
	if date == nil {
		conv, err = forex.ConvertLatest(r.Context(), s.storage, from, to)
	} else {
		conv, err = forex.ConvertHistorical(r.Context(), s.storage, from, to, *date)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.ConversionsTotal.Inc()
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: conv})
}

// parseListParams reads page, size, and order query parameters with the
// listing defaults.
func parseListParams(r *http.Request) (page, size int, order forex.Order, err error) {
	page, size, order = 1, 10, forex.OrderDesc
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			return 0, 0, order, forex.NewInputError(fmt.Sprintf("invalid page %q", raw))
		}
	}
	if raw := q.Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return 0, 0, order, forex.NewInputError(fmt.Sprintf("invalid size %q", raw))
		}
	}
	if raw := q.Get("order"); raw != "" {
		order, err = forex.ParseOrder(raw)
		if err != nil {
			return 0, 0, order, forex.NewInputError(err.Error())
		}
	}
	return page, size, order, nil
}

// handleLatestList serves GET /v1/rates/latest/list?page=1&size=10&order=desc.
func (s *Server) handleLatestList(w http.ResponseWriter, r *http.Request) {
	page, size, order, err := parseListParams(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	list, err := s.storage.GetLatestList(r.Context(), page, size, order)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: list})
}

// handleHistoricalList serves GET /v1/rates/historical/list.
func (s *Server) handleHistoricalList(w http.ResponseWriter, r *http.Request) {
	page, size, order, err := parseListParams(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	list, err := s.storage.GetHistoricalList(r.Context(), page, size, order)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: list})
}

// handleTimeseries serves GET /v1/timeseries?start=2024-01-01&end=2024-01-31
// from the stored historical records.
func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	start, err := parseDate(r, "start")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	end, err := parseDate(r, "end")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if start == nil || end == nil {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}
	if end.Before(*start) {
		writeError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	records, err := s.storage.GetHistoricalRange(r.Context(), *start, *end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: records})
}

// handleGetConfigKeys reports which provider API keys are configured,
// masked for display.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
