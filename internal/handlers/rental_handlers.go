package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"bikeshare-dashboard/internal/charts"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

const (
	defaultPage  = 1
	defaultLimit = 100
	maxLimit     = 1000
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RentalHandler serves the rental dataset API and the HTML dashboard
type RentalHandler struct {
	dashboard *services.DashboardService
	store     HealthChecker
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	validate  *validator.Validate
	title     string
	tableRows int
}

// NewRentalHandler creates a new rental handler. store may be nil when the
// dataset is read from files.
func NewRentalHandler(
	dashboard *services.DashboardService,
	store HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	tableRows int,
) *RentalHandler {
	return &RentalHandler{
		dashboard: dashboard,
		store:     store,
		logger:    logger,
		metrics:   metricsCollector,
		validate:  validator.New(),
		title:     "Bike Sharing Dashboard",
		tableRows: tableRows,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// RentalsResponse is the body of GET /api/rentals
type RentalsResponse struct {
	PaginatedResponse
	Columns  []string        `json:"columns"`
	Outcome  dataset.Outcome `json:"outcome"`
	Notice   string          `json:"notice,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// FilterRequest holds the raw selector query parameters
type FilterRequest struct {
	StartDate  string `validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `validate:"omitempty,datetime=2006-01-02"`
	Season     string `validate:"omitempty,max=32"`
	Weather    string `validate:"omitempty,max=32"`
	WorkingDay string `validate:"omitempty,oneof=all yes no 1 0 true false"`
	Holiday    string `validate:"omitempty,oneof=all yes no 1 0 true false"`
}

var queryFields = map[string]string{
	"StartDate":  "start_date",
	"EndDate":    "end_date",
	"Season":     "season",
	"Weather":    "weather",
	"WorkingDay": "working_day",
	"Holiday":    "holiday",
}

// ParseFilter reads the filter selectors from the query string.
func (h *RentalHandler) ParseFilter(r *http.Request) (models.FilterCriteria, error) {
	q := r.URL.Query()
	req := FilterRequest{
		StartDate:  strings.TrimSpace(q.Get("start_date")),
		EndDate:    strings.TrimSpace(q.Get("end_date")),
		Season:     strings.TrimSpace(q.Get("season")),
		Weather:    strings.TrimSpace(q.Get("weather")),
		WorkingDay: strings.ToLower(strings.TrimSpace(q.Get("working_day"))),
		Holiday:    strings.ToLower(strings.TrimSpace(q.Get("holiday"))),
	}

	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.FilterCriteria{}, &models.ValidationError{
				Field:   queryFields[fe.Field()],
				Value:   fmt.Sprint(fe.Value()),
				Message: describeTag(fe.Tag()),
			}
		}
		return models.FilterCriteria{}, err
	}

	var c models.FilterCriteria
	if req.StartDate != "" {
		c.StartDate, _ = time.Parse("2006-01-02", req.StartDate)
	}
	if req.EndDate != "" {
		c.EndDate, _ = time.Parse("2006-01-02", req.EndDate)
	}
	c.Season = req.Season
	c.Weather = req.Weather

	var err error
	if c.WorkingDay, err = models.ParseChoice(req.WorkingDay); err != nil {
		return models.FilterCriteria{}, err
	}
	if c.Holiday, err = models.ParseChoice(req.Holiday); err != nil {
		return models.FilterCriteria{}, err
	}
	return c, nil
}

func describeTag(tag string) string {
	switch tag {
	case "datetime":
		return "invalid date format, expected YYYY-MM-DD"
	case "oneof":
		return "invalid choice, expected All, Yes or No"
	case "max":
		return "value too long"
	}
	return "invalid value"
}

// pagination reads page and limit. Invalid values fall back to the defaults.
func pagination(r *http.Request) (page, limit int) {
	page, limit = defaultPage, defaultLimit

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	return page, limit
}

// GetRentals handles GET /api/rentals
func (h *RentalHandler) GetRentals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	criteria, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	page, limit := pagination(r)

	rows, err := h.dashboard.Rows(ctx, criteria, page, limit)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	data := make([]map[string]string, len(rows.Rows))
	for i, row := range rows.Rows {
		record := make(map[string]string, len(rows.Columns))
		for j, col := range rows.Columns {
			record[col] = row[j]
		}
		data[i] = record
	}

	response := RentalsResponse{
		PaginatedResponse: PaginatedResponse{
			Data:       data,
			Total:      rows.Total,
			Page:       page,
			Limit:      limit,
			TotalPages: (rows.Total + limit - 1) / limit,
		},
		Columns:  rows.Columns,
		Outcome:  rows.Outcome,
		Notice:   rows.Notice,
		Warnings: rows.Warnings,
	}

	h.sendJSON(w, response, http.StatusOK)
}

// GetSummary handles GET /api/rentals/summary
func (h *RentalHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	summary, err := h.dashboard.Summary(r.Context(), criteria)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, summary, http.StatusOK)
}

// GetOptions handles GET /api/rentals/options
func (h *RentalHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.dashboard.Options(), http.StatusOK)
}

// Dashboard handles GET /dashboard
func (h *RentalHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	criteria, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	report, err := h.dashboard.Report(ctx, criteria)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	options := h.dashboard.Options()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.RenderPage(w, report, charts.PageOptions{
		Title:     h.title,
		MaxRows:   h.tableRows,
		Selectors: &options,
		Action:    "/dashboard",
	}); err != nil {
		h.logger.Error(ctx, "[API_DASHBOARD_ERROR] Failed to render dashboard", logging.Fields{}, err)
		h.metrics.RecordAPIError("render_error", "/dashboard")
	}
}

// HealthCheck handles GET /health
func (h *RentalHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"dataset":   h.dashboard.Table().Name(),
		"rows":      h.dashboard.Table().Len(),
	}

	code := http.StatusOK
	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *RentalHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError maps err to a status code and sends an error response
func (h *RentalHandler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	statusCode, errorType := StatusFor(err)
	endpoint := routeTemplate(r)

	message := err.Error()
	var vErr *models.ValidationError
	if errors.As(err, &vErr) && vErr.Field != "" {
		message = fmt.Sprintf("invalid %s: %s", vErr.Field, vErr.Message)
	}
	if statusCode == http.StatusInternalServerError {
		message = "internal error"
	}

	if statusCode >= http.StatusInternalServerError {
		h.logger.Error(ctx, "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"status":   statusCode,
		}, err)
	} else {
		h.logger.Debug(ctx, "[API_BAD_REQUEST] Request rejected", logging.Fields{
			"endpoint": endpoint,
			"status":   statusCode,
			"error":    err.Error(),
		})
	}
	h.metrics.RecordAPIError(errorType, endpoint)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// StatusFor maps a domain error to an HTTP status and a metrics label.
func StatusFor(err error) (int, string) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation_error"
	case models.IsDataUnavailable(err):
		return http.StatusServiceUnavailable, "data_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	}
	if _, ok := models.AsSchemaMismatch(err); ok {
		return http.StatusUnprocessableEntity, "schema_mismatch"
	}
	return http.StatusInternalServerError, "internal_error"
}

// RegisterRoutes registers all rental API routes
func (h *RentalHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/rentals", h.GetRentals).Methods("GET")
	router.HandleFunc("/api/rentals/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/rentals/options", h.GetOptions).Methods("GET")
	router.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	router.Handle("/", http.RedirectHandler("/dashboard", http.StatusFound)).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
