// Package server exposes the pricing service over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/market"
	"github.com/contactkeval/option-montecarlo/internal/metrics"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/report"
	"github.com/contactkeval/option-montecarlo/internal/service"
)

// Per-request limits. A sweep counts paths once per strike.
const (
	DefaultMaxPaths = 1_000_000
	DefaultMaxSteps = 10_000
)

// Server routes HTTP requests to a service.Service.
type Server struct {
	svc      *service.Service
	metrics  *metrics.Metrics
	maxPaths int
	maxSteps int
	router   *gin.Engine
}

type Option func(*Server)

// WithMetrics serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxPaths caps the number of paths a single request may simulate.
func WithMaxPaths(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxPaths = n
		}
	}
}

// WithMaxSteps caps the time steps per path a single request may ask for.
func WithMaxSteps(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{svc: svc, maxPaths: DefaultMaxPaths, maxSteps: DefaultMaxSteps}
	for _, o := range opts {
		o(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	s.RegisterRoutes(r)
	s.router = r
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/price", s.Price)
		api.POST("/greeks", s.Greeks)
		api.POST("/paths", s.Paths)
		api.POST("/sweep", s.Sweep)
		api.POST("/market", s.Market)
	}
}

// Run serves on addr until ctx is done, then drains in-flight requests for
// at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("event=server_start addr=%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Infof("event=server_shutdown timeout=%s", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("event=http method=%s path=%s status=%d elapsed=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps a service error kind to an HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindInvalidParameter:
		return http.StatusUnprocessableEntity
	case service.KindMarketData:
		return http.StatusBadGateway
	case service.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	c.JSON(StatusFor(kind), ErrorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: service.KindInvalidArgument})
}

// checkGrid enforces the server limits for runs simulations of
// paths x steps each. Non-positive counts are left to the core validator.
func (s *Server) checkGrid(paths, steps, runs int) error {
	if steps > s.maxSteps {
		return &montecarlo.ParameterError{Field: "steps", Value: steps, Reason: fmt.Sprintf("must be <= %d on this server", s.maxSteps)}
	}
	if paths <= 0 || runs <= 0 {
		return nil
	}
	if paths > s.maxPaths/runs {
		reason := fmt.Sprintf("must be <= %d on this server", s.maxPaths)
		if runs > 1 {
			reason = fmt.Sprintf("times %d strikes must be <= %d on this server", runs, s.maxPaths)
		}
		return &montecarlo.ParameterError{Field: "paths", Value: paths, Reason: reason}
	}
	return nil
}

// normaliseKind accepts the same spellings as the CLI.
func normaliseKind(kind montecarlo.OptionKind) (montecarlo.OptionKind, error) {
	return montecarlo.ParseOptionKind(string(kind))
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model": s.svc.Pricer().Model().Name()})
}

// Price handles POST /api/v1/price.
func (s *Server) Price(c *gin.Context) {
	s.price(c, false)
}

// Greeks handles POST /api/v1/greeks.
func (s *Server) Greeks(c *gin.Context) {
	s.price(c, true)
}

func (s *Server) price(c *gin.Context, greeks bool) {
	var req service.PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Greeks = greeks || req.Greeks

	kind, err := normaliseKind(req.Option.Kind)
	if err != nil {
		writeError(c, err)
		return
	}
	req.Option.Kind = kind
	if err := s.checkGrid(req.Params.Paths, req.Params.Steps, 1); err != nil {
		writeError(c, err)
		return
	}

	res, err := s.svc.Price(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PathsRequest asks for a simulated batch. Sample paths are returned in
// long format; with an option the payoff histogram is attached.
type PathsRequest struct {
	Params montecarlo.Params  `json:"params"`
	Option *montecarlo.Option `json:"option,omitempty"`
	Sample int                `json:"sample"`
	Bins   int                `json:"bins"`
}

type PathsResponse struct {
	Seed      uint64              `json:"seed"`
	Paths     int                 `json:"paths"`
	Steps     int                 `json:"steps"`
	Dt        float64             `json:"dt"`
	Sample    []*report.PathPoint `json:"sample"`
	Histogram []*report.Bin       `json:"payoff_histogram,omitempty"`
}

// Paths handles POST /api/v1/paths. ?format=csv streams the sample as CSV.
func (s *Server) Paths(c *gin.Context) {
	var req PathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.checkGrid(req.Params.Paths, req.Params.Steps, 1); err != nil {
		writeError(c, err)
		return
	}
	if req.Sample <= 0 {
		req.Sample = report.DefaultSamplePaths
	}
	if req.Bins <= 0 {
		req.Bins = report.DefaultBins
	}

	if req.Option != nil {
		kind, err := normaliseKind(req.Option.Kind)
		if err != nil {
			writeError(c, err)
			return
		}
		req.Option.Kind = kind
		if err := req.Option.Validate(); err != nil {
			writeError(c, err)
			return
		}
	}

	batch, seed, err := s.svc.Paths(c.Request.Context(), req.Params)
	if err != nil {
		writeError(c, err)
		return
	}
	var payoffs montecarlo.PayoffVector
	if req.Option != nil {
		if payoffs, err = montecarlo.Payoff(batch, *req.Option); err != nil {
			writeError(c, err)
			return
		}
	}

	dt := req.Params.Dt()
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Status(http.StatusOK)
		if err := report.WritePathsCSV(c.Writer, batch, req.Sample, dt); err != nil {
			logger.Errorf("event=paths_csv_failed err=%v", err)
		}
		return
	}

	resp := PathsResponse{
		Seed:   seed,
		Paths:  batch.Paths(),
		Steps:  batch.Steps(),
		Dt:     dt,
		Sample: report.SamplePaths(batch, req.Sample, dt),
	}
	if payoffs != nil {
		resp.Histogram = report.Histogram(payoffs, req.Bins)
	}
	c.JSON(http.StatusOK, resp)
}

// SweepRequest lists strikes explicitly or as a From/To/Step ladder.
type SweepRequest struct {
	Params  montecarlo.Params     `json:"params"`
	Kind    montecarlo.OptionKind `json:"kind"`
	Strikes []float64             `json:"strikes"`
	From    float64               `json:"from"`
	To      float64               `json:"to"`
	Step    float64               `json:"step"`
	Bump    float64               `json:"bump"`
}

// Sweep handles POST /api/v1/sweep. ?format=csv returns CSV.
func (s *Server) Sweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := normaliseKind(req.Kind)
	if err != nil {
		writeError(c, err)
		return
	}
	strikes := req.Strikes
	if len(strikes) == 0 {
		if strikes, err = service.StrikeLadder(req.From, req.To, req.Step); err != nil {
			writeError(c, err)
			return
		}
	} else if len(strikes) > service.MaxStrikes {
		writeError(c, fmt.Errorf("%w: %d strikes, at most %d per sweep", montecarlo.ErrInvalidArgument, len(strikes), service.MaxStrikes))
		return
	}
	if err := s.checkGrid(req.Params.Paths, req.Params.Steps, len(strikes)); err != nil {
		writeError(c, err)
		return
	}

	points, err := s.svc.Sweep(c.Request.Context(), service.SweepRequest{
		Params:  req.Params,
		Kind:    kind,
		Strikes: strikes,
		Bump:    req.Bump,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Status(http.StatusOK)
		if err := report.WriteSweepCSV(c.Writer, points); err != nil {
			logger.Errorf("event=sweep_csv_failed err=%v", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "points": points})
}

// MarketRequest prices an option resolved from market data.
type MarketRequest struct {
	Ticker      string                `json:"ticker"`
	Expiry      string                `json:"expiry"`
	ExpiryIndex int                   `json:"expiry_index"`
	DTE         int                   `json:"dte"`
	Strike      string                `json:"strike"`
	Kind        montecarlo.OptionKind `json:"kind"`
	Rate        *float64              `json:"rate"`
	VolSource   string                `json:"vol_source"`
	Volatility  *float64              `json:"volatility"`
	HistoryDays int                   `json:"history_days"`
	Steps       int                   `json:"steps"`
	Paths       int                   `json:"paths"`
	Greeks      bool                  `json:"greeks"`
	Bump        float64               `json:"bump"`
	AsOf        string                `json:"as_of"` // YYYY-MM-DD, defaults to today
}

// Market handles POST /api/v1/market.
func (s *Server) Market(c *gin.Context) {
	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Ticker == "" {
		badRequest(c, errors.New("ticker is required"))
		return
	}
	kind, err := normaliseKind(req.Kind)
	if err != nil {
		writeError(c, err)
		return
	}
	src, err := market.ParseVolSource(req.VolSource)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Steps <= 0 {
		req.Steps = 252
	}
	if req.Paths <= 0 {
		req.Paths = 10000
	}
	if err := s.checkGrid(req.Paths, req.Steps, 1); err != nil {
		writeError(c, err)
		return
	}
	rate := market.DefaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}
	var asOf time.Time
	if req.AsOf != "" {
		if asOf, err = time.Parse(data.DateLayout, req.AsOf); err != nil {
			badRequest(c, fmt.Errorf("as_of: %w", err))
			return
		}
	}

	res, _, err := s.svc.PriceMarket(c.Request.Context(), service.MarketRequest{
		Request: market.Request{
			Ticker:      req.Ticker,
			Expiry:      req.Expiry,
			ExpiryIndex: req.ExpiryIndex,
			DTE:         req.DTE,
			Strike:      req.Strike,
			Kind:        kind,
			Rate:        rate,
			VolSource:   src,
			Volatility:  req.Volatility,
			HistoryDays: req.HistoryDays,
			Steps:       req.Steps,
			Paths:       req.Paths,
			AsOf:        asOf,
		},
		Greeks: req.Greeks,
		Bump:   req.Bump,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
