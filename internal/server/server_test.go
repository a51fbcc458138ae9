package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulemapper/internal/config"
	"rulemapper/internal/metrics"
	"rulemapper/internal/ruleset"
)

const testRules = `
layouts:
  - name: legacy
    fields:
      - {name: id, start: 0, end: 4, align: right, pad: "0"}
      - {name: name, start: 4, end: 8}
converters:
  - name: Order
    rules:
      - id
      - {target: total, source: amount, transform: float}
      - {target: region, default: eu}
      - {target: customer, source: customer_id, required: true}
  - name: Tagged
    rules:
      - channel
  - name: Customer
    source: tabular
    target: fixedwidth:legacy
    rules:
      - id
      - name
`

type staticCatalog struct {
	cat *ruleset.Catalog
}

func (s staticCatalog) Get() *ruleset.Catalog { return s.cat }

func newTestServer(t *testing.T, cfg config.ServerConfig) (*httptest.Server, *metrics.Collector, *prometheus.Registry) {
	t.Helper()

	f, err := ruleset.Parse([]byte(testRules))
	require.NoError(t, err)

	cat, diags := ruleset.Build(f, nil)
	require.False(t, diags.HasErrors(), diags.Error())

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	router := NewRouter(Deps{
		Catalog:        staticCatalog{cat: cat},
		Config:         cfg,
		Logger:         zerolog.Nop(),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, m, reg
}

func post(t *testing.T, url, contentType, body string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func TestConvertSingle(t *testing.T) {
	srv, m, _ := newTestServer(t, config.ServerConfig{})

	resp, body := post(t, srv.URL+"/v1/convert/Order", "application/json",
		`{"id": 7, "amount": "12.5", "customer_id": "c-1"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id": 7, "total": 12.5, "region": "eu", "customer": "c-1"}`, body)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConversionsTotal.WithLabelValues("Order", metrics.ResultOK)), 0)
}

func TestConvertBatch(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ServerConfig{})

	resp, body := post(t, srv.URL+"/v1/convert/Order?format=yaml", "application/json",
		`[{"id": 1, "amount": 1, "customer_id": "a"}, {"id": 2, "amount": 2, "customer_id": "b", "region": "us"}]`)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "- customer: a\n")
	assert.Contains(t, body, "- customer: b\n")
	assert.NotContains(t, body, "region: us")
	assert.Equal(t, 2, strings.Count(body, "region: eu"))
}

func TestConvertErrors(t *testing.T) {
	srv, m, _ := newTestServer(t, config.ServerConfig{MaxBodyBytes: 64})

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"unknown converter", "/v1/convert/Ordr", "application/json", `{}`, http.StatusNotFound, "unknown_converter"},
		{"bad media type", "/v1/convert/Order", "image/png", `{}`, http.StatusUnsupportedMediaType, "unsupported_format"},
		{"bad format", "/v1/convert/Order?format=toml", "application/json", `{}`, http.StatusBadRequest, "unknown_format"},
		{"bad json", "/v1/convert/Order", "application/json", `{`, http.StatusBadRequest, "bad_request"},
		{"too large", "/v1/convert/Order", "application/json", `{"id": "` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+tt.path, tt.contentType, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)

			var out struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}

			require.NoError(t, json.Unmarshal([]byte(body), &out))
			assert.Equal(t, tt.code, out.Error.Code)
			assert.NotEmpty(t, out.Error.Message)
		})
	}

	assert.Equal(t, 0, testutil.CollectAndCount(m.ConversionsTotal))
}

func TestConvertRuleError(t *testing.T) {
	srv, m, _ := newTestServer(t, config.ServerConfig{})

	resp, body := post(t, srv.URL+"/v1/convert/Order", "application/json", `[{"id": 1, "amount": 1, "customer_id": "a"}, {"id": 2, "amount": 1}]`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out struct {
		Error conversionError `json:"error"`
	}

	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, metrics.ResultMissingSource, out.Error.Code)
	assert.Equal(t, "Order", out.Error.Converter)
	assert.Equal(t, "customer", out.Error.Target)
	assert.Equal(t, "customer_id", out.Error.Source)
	require.NotNil(t, out.Error.Rule)
	assert.Equal(t, 3, *out.Error.Rule)
	require.NotNil(t, out.Error.Record)
	assert.Equal(t, 1, *out.Error.Record)

	resp, body = post(t, srv.URL+"/v1/convert/Order", "application/json", `{"id": 1, "amount": "lots", "customer_id": "a"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `"code":"transform"`)
	assert.NotContains(t, body, `"record"`)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConversionsTotal.WithLabelValues("Order", metrics.ResultTransform)), 0)
}

func TestConvertVarsAndOverrides(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ServerConfig{})

	_, body := post(t, srv.URL+"/v1/convert/Tagged?var.channel=web", "application/json", `{}`)
	assert.JSONEq(t, `{"channel": "web"}`, body)

	_, body = post(t, srv.URL+"/v1/convert/Tagged?var.channel=web", "application/json", `{"channel": "app"}`)
	assert.JSONEq(t, `{"channel": "app"}`, body)

	_, body = post(t, srv.URL+"/v1/convert/Tagged?set.channel=batch", "application/json", `{"channel": "app"}`)
	assert.JSONEq(t, `{"channel": "batch"}`, body)
}

func TestConvertCSVToFixedWidth(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ServerConfig{})

	resp, body := post(t, srv.URL+"/v1/convert/Customer", "text/csv", "id,name\n7,Ann\n12,Bo\n")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0007Ann \n0012Bo  \n", body)
}

func TestConverters(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/v1/converters")
	require.NoError(t, err)

	var list struct {
		Converters []ConverterInfo `json:"converters"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()

	require.Len(t, list.Converters, 3)
	assert.Equal(t, ConverterInfo{Name: "Customer", Source: "tabular", Target: "fixedwidth:legacy"}, list.Converters[2])

	resp, err = http.Get(srv.URL + "/v1/converters/Order")
	require.NoError(t, err)

	var ci ConverterInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ci))
	resp.Body.Close()

	require.Len(t, ci.Rules, 4)
	assert.Equal(t, RuleInfo{Index: 2, Target: "region", Source: "NO_SOURCE", Value: ci.Rules[2].Value}, ci.Rules[2])
	assert.Equal(t, "amount", ci.Rules[1].Source)

	resp, err = http.Get(srv.URL + "/v1/converters/Nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, m, _ := newTestServer(t, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()

	assert.Equal(t, "ok", health["status"])
	assert.InDelta(t, 3, health["converters"], 0)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, string(data), "rulemapper_http_requests_total")
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/healthz", "200")), 0)
}

func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- Run(ctx, srv, zerolog.Nop()) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}

		resp.Body.Close()

		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(config.ServerConfig{Host: "127.0.0.1", Port: 9000, ReadTimeout: time.Second, WriteTimeout: 2 * time.Second}, http.NotFoundHandler())

	assert.Equal(t, "127.0.0.1:9000", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
}
