// Package httpapi is the inbound HTTP surface of the proxy.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"futuresProxy/internal/adapters/logger"
	"futuresProxy/internal/domain"
	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ports"
)

const (
	headerRequestID  = "X-Request-ID"
	headerAdminToken = "X-Admin-Token"
)

// Service is the set of proxy operations served over HTTP.
type Service interface {
	FundingRate(ctx context.Context, symbol string) ([]domain.FundingRate, error)
	FundingFees(ctx context.Context, creds ports.Credentials) ([]domain.IncomeRecord, error)
	Income(ctx context.Context, creds ports.Credentials, incomeType string, startTime int64) ([]domain.IncomeRecord, error)
	ActivePositions(ctx context.Context, creds ports.Credentials) ([]domain.AccountPosition, error)
	PositionSummary(ctx context.Context, creds ports.Credentials, startTime int64) ([]domain.PositionSummary, error)
}

// SymbolSet is the operator view of the valid symbol set.
type SymbolSet interface {
	Len() int
	Refresh(ctx context.Context) (int, error)
}

// Pinger checks exchange connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the router.
type Config struct {
	Logger         ports.Logger
	Service        Service
	Symbols        SymbolSet
	Pinger         Pinger           // optional
	Metrics        *metrics.Metrics // optional
	AllowedOrigins []string         // empty or "*" allows any origin
	AdminToken     string           // admin routes are disabled when empty
}

type handler struct {
	logger     ports.Logger
	service    Service
	symbols    SymbolSet
	pinger     Pinger
	metrics    *metrics.Metrics
	adminToken string
}

// accountRequest is the JSON body of the credentialed routes.
type accountRequest struct {
	APIKey     string `json:"apiKey"`
	APISecret  string `json:"apiSecret"`
	StartTime  *int64 `json:"startTime"`
	IncomeType string `json:"incomeType"`
}

func (r *accountRequest) credentials() ports.Credentials {
	return ports.Credentials{APIKey: r.APIKey, APISecret: r.APISecret}
}

func (r *accountRequest) startTime() int64 {
	if r.StartTime == nil {
		return 0
	}
	return *r.StartTime
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(cfg Config) (*gin.Engine, error) {
	if cfg.Logger == nil || cfg.Service == nil || cfg.Symbols == nil {
		return nil, fmt.Errorf("missing required dependencies for HTTP router")
	}

	h := &handler{
		logger:     cfg.Logger,
		service:    cfg.Service,
		symbols:    cfg.Symbols,
		pinger:     cfg.Pinger,
		metrics:    cfg.Metrics,
		adminToken: cfg.AdminToken,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), h.accessLog(), cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/funding-rate", h.fundingRate)
	r.POST("/account-funding", h.accountFunding)
	r.POST("/account-positions", h.accountPositions)
	r.POST("/account-income", h.accountIncome)
	r.POST("/account-position-summary", h.positionSummary)
	r.GET("/health", h.health)

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.AdminToken != "" {
		r.POST("/admin/symbols/refresh", h.refreshSymbols)
	}

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, headerRequestID, headerAdminToken)
	c.ExposeHeaders = []string{headerRequestID}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}

// requestID propagates or assigns X-Request-ID and stores it in the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (h *handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		h.metrics.RecordHTTP(route, strconv.Itoa(status))
		h.logger.Info(c.Request.Context(), "HTTP request served", map[string]interface{}{
			"method":  c.Request.Method,
			"route":   route,
			"status":  status,
			"elapsed": time.Since(started).String(),
		})
	}
}

func (h *handler) fundingRate(c *gin.Context) {
	rates, err := h.service.FundingRate(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		h.respondError(c, "FundingRate", err)
		return
	}
	c.JSON(http.StatusOK, rates)
}

func (h *handler) accountFunding(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	rows, err := h.service.FundingFees(detached(c), req.credentials())
	if err != nil {
		h.respondError(c, "FundingFees", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handler) accountPositions(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	positions, err := h.service.ActivePositions(detached(c), req.credentials())
	if err != nil {
		h.respondError(c, "ActivePositions", err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (h *handler) accountIncome(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	rows, err := h.service.Income(detached(c), req.credentials(), req.IncomeType, req.startTime())
	if err != nil {
		h.respondError(c, "Income", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handler) positionSummary(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	summaries, err := h.service.PositionSummary(detached(c), req.credentials(), req.startTime())
	if err != nil {
		h.respondError(c, "PositionSummary", err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"status": "ok", "validSymbols": h.symbols.Len()}
	status := http.StatusOK

	if h.symbols.Len() == 0 {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn(ctx, "Exchange ping failed", map[string]interface{}{"error": err.Error()})
			body["status"] = "degraded"
			body["exchange"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["exchange"] = "reachable"
		}
	}
	c.JSON(status, body)
}

func (h *handler) refreshSymbols(c *gin.Context) {
	token := c.GetHeader(headerAdminToken)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	n, err := h.symbols.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), err, "Symbol refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "validSymbols": h.symbols.Len()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"validSymbols": n})
}

// bind decodes the account request body; an empty body is an empty request.
func (h *handler) bind(c *gin.Context) (*accountRequest, bool) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if req.StartTime != nil && *req.StartTime < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startTime must not be negative"})
		return nil, false
	}
	return &req, true
}

// detached keeps the request values but ignores client disconnects, so an
// account operation runs to completion once started.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *handler) respondError(c *gin.Context, op string, err error) {
	status, msg := classify(err)
	fields := map[string]interface{}{"operation": op, "status": status}
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), err, "Request failed", fields)
	} else {
		h.logger.Warn(c.Request.Context(), "Request rejected: "+err.Error(), fields)
	}
	c.JSON(status, gin.H{"error": msg})
}

// classify maps an error to a response status and a client-facing message.
// Upstream payload messages are surfaced as-is.
func classify(err error) (int, string) {
	var apiErr *common.APIError
	hasAPIErr := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, ports.ErrMissingCredentials):
		return http.StatusBadRequest, "apiKey and apiSecret are required"
	case errors.Is(err, ports.ErrUpstreamUnavailable):
		if hasAPIErr {
			return http.StatusBadGateway, apiErr.Message
		}
		return http.StatusBadGateway, err.Error()
	case hasAPIErr:
		return http.StatusBadRequest, apiErr.Message
	case errors.Is(err, ports.ErrTimeout):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, ports.ErrUpstreamShape), errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
