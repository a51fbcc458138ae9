// Package server exposes the rule catalog over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rulemapper/convert"
	"rulemapper/internal/codec"
	"rulemapper/internal/config"
	"rulemapper/internal/metrics"
	"rulemapper/internal/ruleset"
)

// Query parameter prefixes carrying conversion vars and overrides.
const (
	VarPrefix      = "var."
	OverridePrefix = "set."
)

// CatalogSource provides the active catalog. *catalog.Holder implements it.
type CatalogSource interface {
	Get() *ruleset.Catalog
}

// Deps contains dependencies for the handler.
type Deps struct {
	Catalog CatalogSource
	Config  config.ServerConfig
	Logger  zerolog.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
	// MetricsHandler serves MetricsPath when Metrics is set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// Handler serves the conversion API.
type Handler struct {
	catalog      CatalogSource
	logger       zerolog.Logger
	metrics      *metrics.Collector
	maxBodyBytes int64
	startTime    time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog:      deps.Catalog,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		maxBodyBytes: deps.Config.MaxBodyBytes,
		startTime:    time.Now(),
	}
}

// NewRouter creates the main HTTP router.
func NewRouter(deps Deps) chi.Router {
	h := NewHandler(deps)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)

	if deps.Metrics != nil {
		r.Use(NewMetricsMiddleware(deps.Metrics))

		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}

		handler := deps.MetricsHandler
		if handler == nil {
			handler = promhttp.Handler()
		}

		r.Handle(path, handler)
	}

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/converters", h.ListConverters)
		r.Get("/converters/{name}", h.GetConverter)
		r.Post("/convert/{name}", h.Convert)
	})

	return r
}

// NewHTTPServer wraps router in a server configured from cfg.
func NewHTTPServer(cfg config.ServerConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// Run serves until ctx is done, then shuts the server down gracefully.
func Run(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting http server")

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// Health reports liveness and the size of the active catalog.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"converters": h.catalog.Get().Len(),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ConverterInfo describes one converter of the catalog.
type ConverterInfo struct {
	Name    string     `json:"name"`
	Source  string     `json:"source"`
	Target  string     `json:"target"`
	Extends string     `json:"extends,omitempty"`
	Rules   []RuleInfo `json:"rules,omitempty"`
}

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	Index      int    `json:"index"`
	Target     string `json:"target"`
	Source     string `json:"source"`
	Value      string `json:"value"`
	Collection bool   `json:"collection,omitempty"`
}

// ListConverters lists the converters of the active catalog.
func (h *Handler) ListConverters(w http.ResponseWriter, _ *http.Request) {
	cat := h.catalog.Get()

	infos := make([]ConverterInfo, 0, cat.Len())
	for _, name := range cat.Names() {
		infos = append(infos, info(cat, name))
	}

	writeJSON(w, http.StatusOK, map[string]any{"converters": infos})
}

// GetConverter describes one converter with its compiled rules.
func (h *Handler) GetConverter(w http.ResponseWriter, r *http.Request) {
	cat := h.catalog.Get()
	name := chi.URLParam(r, "name")

	d, err := cat.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_converter", err.Error())
		return
	}

	rules, err := d.Rules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid_converter", err.Error())
		return
	}

	ci := info(cat, name)
	for _, rule := range rules {
		ci.Rules = append(ci.Rules, RuleInfo{
			Index:      rule.Index,
			Target:     rule.Target.String(),
			Source:     rule.SourceSpec(),
			Value:      rule.Value.String(),
			Collection: rule.Collection,
		})
	}

	writeJSON(w, http.StatusOK, ci)
}

func info(cat *ruleset.Catalog, name string) ConverterInfo {
	ci := ConverterInfo{Name: name}

	if def, ok := cat.Def(name); ok {
		ci.Source, ci.Target, ci.Extends = def.Source, def.Target, def.Extends
	}

	return ci
}

// Convert runs a converter over the request body. The body format follows
// Content-Type, the response format follows the "format" query parameter or
// defaults to the natural format of the converter's target kind.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, err := h.catalog.Get().Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_converter", err.Error())
		return
	}

	in, err := requestFormat(r, d.Source().Kind())
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
		return
	}

	out := codec.ForKind(d.Target().Kind())
	if q := r.URL.Query().Get("format"); q != "" {
		out, err = codec.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown_format", err.Error())
			return
		}
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return
		}

		writeError(w, http.StatusBadRequest, "bad_request", err.Error())

		return
	}

	batch, err := codec.Decode(bytes.NewReader(data), in, d.Source().Kind())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	opts := h.callOptions(r)

	result := codec.Batch{Many: batch.Many, Records: make([]any, len(batch.Records))}

	for i, rec := range batch.Records {
		result.Records[i], err = convert.Convert(d, rec, opts...)
		if err != nil {
			writeConversionError(w, i, batch.Many, err)
			return
		}
	}

	w.Header().Set("Content-Type", contentType(out))
	w.WriteHeader(http.StatusOK)

	err = codec.Encode(w, out, result)
	if err != nil {
		h.logger.Error().Err(err).Str("converter", name).Msg("encode response")
	}
}

func (h *Handler) callOptions(r *http.Request) []convert.CallOption {
	logger := h.logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()

	opts := []convert.CallOption{convert.WithLogger(logger)}

	if h.metrics != nil {
		opts = append(opts, convert.WithObserver(h.metrics))
	}

	vars := map[string]any{}
	overrides := map[string]any{}

	for key, values := range r.URL.Query() {
		switch {
		case strings.HasPrefix(key, VarPrefix):
			vars[strings.TrimPrefix(key, VarPrefix)] = values[0]
		case strings.HasPrefix(key, OverridePrefix):
			overrides[strings.TrimPrefix(key, OverridePrefix)] = values[0]
		}
	}

	if len(vars) > 0 {
		opts = append(opts, convert.WithVars(vars))
	}

	if len(overrides) > 0 {
		opts = append(opts, convert.WithOverrides(overrides))
	}

	return opts
}

// requestFormat picks the body format from Content-Type, falling back to the
// natural format of the source kind.
func requestFormat(r *http.Request, kind string) (codec.Format, error) {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	switch strings.TrimSpace(strings.ToLower(ct)) {
	case "":
		return codec.ForKind(kind), nil
	case "application/json":
		return codec.JSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return codec.YAML, nil
	case "text/csv":
		return codec.CSV, nil
	case "application/xml", "text/xml":
		return codec.XML, nil
	case "text/plain":
		return codec.Fixed, nil
	}

	return "", fmt.Errorf("unsupported content type %q", ct)
}

func contentType(f codec.Format) string {
	switch f {
	case codec.YAML:
		return "application/yaml"
	case codec.CSV:
		return "text/csv"
	case codec.XML:
		return "application/xml"
	case codec.Fixed:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// conversionError is the body of a failed conversion.
type conversionError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Converter string `json:"converter,omitempty"`
	Rule      *int   `json:"rule,omitempty"`
	Target    string `json:"target,omitempty"`
	Source    string `json:"source,omitempty"`
	Record    *int   `json:"record,omitempty"`
}

func writeConversionError(w http.ResponseWriter, record int, many bool, err error) {
	body := conversionError{
		Code:    metrics.Result(err),
		Message: err.Error(),
	}

	var re *convert.RuleError
	if errors.As(err, &re) {
		body.Converter = re.Descriptor
		body.Rule = &re.Index
		body.Target = re.TargetPath
		body.Source = re.SourceSpec
	}

	if many {
		body.Record = &record
	}

	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
