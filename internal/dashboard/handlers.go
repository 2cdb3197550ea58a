// Package dashboard serves the dealer dashboard API: per-session report
// views, summaries, stock history and exports.
package dashboard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/common"
	"github.com/noah-isme/dealer-insights/internal/export"
	"github.com/noah-isme/dealer-insights/internal/obs"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/report"
	"github.com/noah-isme/dealer-insights/internal/stock"
)

// StockReader is implemented by *stock.Service.
type StockReader interface {
	Summary(ctx context.Context, creds auth.Credentials) (stock.Summary, error)
	History(ctx context.Context, creds auth.Credentials, f stock.Filter) ([]stock.Item, error)
}

// Config wires the handler's collaborators.
type Config struct {
	Reports       performance.Fetcher
	Stock         StockReader
	Sessions      *Sessions
	Display       *report.Display
	Location      *time.Location
	DefaultPeriod period.Kind
	// ExportLimit wraps the export routes, typically with a rate limiter.
	ExportLimit func(http.Handler) http.Handler
	Logger      zerolog.Logger
}

// Handler exposes dashboard endpoints.
type Handler struct {
	reports       performance.Fetcher
	stock         StockReader
	sessions      *Sessions
	display       *report.Display
	loc           *time.Location
	defaultPeriod period.Kind
	exportLimit   func(http.Handler) http.Handler
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	kind := cfg.DefaultPeriod
	if kind == "" {
		kind = period.DefaultKind
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessions(cfg.Reports, 0)
	}
	display := cfg.Display
	if display == nil {
		display = report.NewDisplay("", "")
	}
	limit := cfg.ExportLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		reports:       cfg.Reports,
		stock:         cfg.Stock,
		sessions:      sessions,
		display:       display,
		loc:           loc,
		defaultPeriod: kind,
		exportLimit:   limit,
		validate:      validator.New(),
		logger:        cfg.Logger.With().Str("component", "dashboard").Logger(),
	}
}

// Routes registers the dashboard endpoints. Callers mount it behind auth.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.Middleware)
		r.Get("/performance/{scope}", h.selectPerformance)
		r.Post("/performance/{scope}/refresh", h.refreshPerformance)
		r.With(h.exportLimit).Get("/performance/{scope}/export", h.exportPerformance)
	})
	r.Get("/summary", h.summary)
	r.Get("/overview", h.overview)
	r.Get("/stock/history", h.stockHistory)
	r.With(h.exportLimit).Get("/stock/history/export", h.exportStockHistory)
}

type performanceQuery struct {
	Period    string `validate:"omitempty,oneof=week month quarter year lifetime custom"`
	StartDate string `validate:"omitempty,max=40"`
	EndDate   string `validate:"omitempty,max=40"`
	Sort      string `validate:"omitempty,oneof=amount quantity none"`
	DealerID  string `validate:"omitempty,max=64"`
}

type exportQuery struct {
	Format string `validate:"required,oneof=xlsx excel spreadsheet pdf"`
}

type stockQuery struct {
	BrandID   string `validate:"omitempty,max=64"`
	ModelID   string `validate:"omitempty,max=64"`
	StartDate string `validate:"omitempty,max=40"`
	EndDate   string `validate:"omitempty,max=40"`
}

func (h *Handler) selectPerformance(w http.ResponseWriter, r *http.Request) {
	creds, view, ok := h.sessionView(w, r)
	if !ok {
		return
	}
	values := r.URL.Query()
	q := performanceQuery{
		Period:    strings.ToLower(strings.TrimSpace(values.Get("period"))),
		StartDate: strings.TrimSpace(values.Get("startDate")),
		EndDate:   strings.TrimSpace(values.Get("endDate")),
		Sort:      strings.ToLower(strings.TrimSpace(values.Get("sort"))),
		DealerID:  strings.TrimSpace(values.Get("dealerId")),
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, r, err)
		return
	}
	sel, err := period.ParseSelection(q.Period, q.StartDate, q.EndDate, h.defaultPeriod, h.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sortKey, err := performance.ParseSortKey(q.Sort)
	if err != nil {
		writeError(w, r, common.Validation(err, map[string]string{"sort": err.Error()}))
		return
	}
	scope, _ := performance.ParseScope(chi.URLParam(r, "scope"))

	rep, err := view.Select(r.Context(), creds, performance.Request{
		Scope:     scope,
		DealerID:  creds.ForDealer(q.DealerID),
		Selection: sel,
		Sort:      sortKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, report.Render(rep, h.display))
}

func (h *Handler) refreshPerformance(w http.ResponseWriter, r *http.Request) {
	creds, view, ok := h.sessionView(w, r)
	if !ok {
		return
	}
	rep, err := view.Refresh(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, report.Render(rep, h.display))
}

func (h *Handler) exportPerformance(w http.ResponseWriter, r *http.Request) {
	_, view, ok := h.sessionView(w, r)
	if !ok {
		return
	}
	format, ok := h.exportFormat(w, r)
	if !ok {
		return
	}
	rep := view.Current()
	if rep == nil {
		writeError(w, r, ErrNoReport)
		return
	}
	h.writeExport(w, r, format, report.FileBase, report.BuildTable(rep))
}

type summaryResponse struct {
	TotalQuantity int64           `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	DisplayAmount string          `json:"displayAmount"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	sum, err := h.stock.Summary(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, h.summaryView(sum))
}

type overviewResponse struct {
	Summary  summaryResponse `json:"summary"`
	Period   string          `json:"period"`
	TopBrand *report.BarView `json:"topBrand"`
}

// overview loads the stock summary and this week's best brand concurrently.
func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	var (
		sum   stock.Summary
		brand *performance.Report
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		sum, err = h.stock.Summary(ctx, creds)
		return err
	})
	g.Go(func() error {
		var err error
		brand, err = h.reports.FetchReport(ctx, creds, performance.Request{
			Scope:     performance.ScopeBrand,
			Selection: period.Named(period.Week),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	resp := overviewResponse{Summary: h.summaryView(sum), Period: brand.Interval.Label()}
	if view := report.Render(brand, h.display); len(view.Bars) > 0 {
		top := view.Bars[0]
		resp.TopBrand = &top
	}
	common.JSON(w, http.StatusOK, resp)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	items, ok := h.loadStock(w, r, creds)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) exportStockHistory(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	format, ok := h.exportFormat(w, r)
	if !ok {
		return
	}
	items, ok := h.loadStock(w, r, creds)
	if !ok {
		return
	}
	h.writeExport(w, r, format, stock.FileBase, stock.BuildTable(items))
}

func (h *Handler) loadStock(w http.ResponseWriter, r *http.Request, creds auth.Credentials) ([]stock.Item, bool) {
	values := r.URL.Query()
	q := stockQuery{
		BrandID:   strings.TrimSpace(values.Get("brandId")),
		ModelID:   strings.TrimSpace(values.Get("modelId")),
		StartDate: strings.TrimSpace(values.Get("startDate")),
		EndDate:   strings.TrimSpace(values.Get("endDate")),
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, r, err)
		return nil, false
	}
	filter := stock.Filter{BrandID: q.BrandID, ModelID: q.ModelID}
	if q.StartDate != "" && q.EndDate != "" {
		sel, err := period.ParseSelection(string(period.Custom), q.StartDate, q.EndDate, h.defaultPeriod, h.loc)
		if err != nil {
			writeError(w, r, err)
			return nil, false
		}
		filter.Start, filter.End = sel.Start, sel.End
	}
	items, err := h.stock.History(r.Context(), creds, filter)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return items, true
}

func (h *Handler) exportFormat(w http.ResponseWriter, r *http.Request) (export.Format, bool) {
	q := exportQuery{Format: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, r, err)
		return 0, false
	}
	f, err := export.ParseFormat(q.Format)
	if err != nil {
		writeError(w, r, common.Validation(err, map[string]string{"format": err.Error()}))
		return 0, false
	}
	return f, true
}

// writeExport renders t fully before writing so a failed export never sends a partial file.
func (h *Handler) writeExport(w http.ResponseWriter, r *http.Request, f export.Format, base string, t export.Table) {
	body, err := export.Bytes(f, t)
	if err != nil {
		countExport(f, "error")
		writeError(w, r, err)
		return
	}
	countExport(f, "ok")
	zerolog.Ctx(r.Context()).Info().Str("format", f.String()).Str("file", base).Int("bytes", len(body)).Msg("export_rendered")
	common.Attachment(w, export.Filename(base, f), f.ContentType(), body)
}

func (h *Handler) sessionView(w http.ResponseWriter, r *http.Request) (auth.Credentials, *performance.View, bool) {
	creds, ok := credentials(w, r)
	if !ok {
		return auth.Credentials{}, nil, false
	}
	scope, err := performance.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_SCOPE", err.Error(), nil)
		return auth.Credentials{}, nil, false
	}
	sessionID, _ := common.SessionID(r.Context())
	return creds, h.sessions.View(creds.DealerID, sessionID, scope), true
}

func (h *Handler) summaryView(sum stock.Summary) summaryResponse {
	return summaryResponse{
		TotalQuantity: sum.TotalQuantity,
		TotalAmount:   sum.TotalAmount,
		DisplayAmount: h.display.Amount(sum.TotalAmount),
	}
}

func credentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, bool) {
	creds, ok := auth.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return auth.Credentials{}, false
	}
	return creds, true
}

func countExport(f export.Format, result string) {
	if obs.ExportTotal != nil {
		obs.ExportTotal.WithLabelValues(f.String(), result).Inc()
	}
}
