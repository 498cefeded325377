// Package http provides the HTTP adapter for the application layer.
// It translates REST requests into application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-reconciler/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services groups the application services exposed over HTTP
type Services struct {
	Tenants        service.TenantService
	Invoices       service.InvoiceService
	Transactions   service.BankTransactionService
	Reconciliation service.ReconciliationService
	Explanations   service.ExplanationService
	Reports        service.ReportService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	api := s.router.Group("/api/v1")
	api.GET("/health", h.HealthCheck)

	api.POST("/tenants", h.CreateTenant)
	api.GET("/tenants", h.ListTenants)

	tenant := api.Group("/tenants/:tenant_id")
	tenant.Use(s.tenantMiddleware())
	{
		tenant.GET("", h.GetTenant)

		tenant.POST("/vendors", h.CreateVendor)
		tenant.GET("/vendors", h.ListVendors)

		tenant.POST("/invoices", h.CreateInvoice)
		tenant.GET("/invoices", h.ListInvoices)
		tenant.GET("/invoices/:invoice_id", h.GetInvoice)
		tenant.DELETE("/invoices/:invoice_id", h.DeleteInvoice)

		tenant.POST("/bank-transactions/import", h.ImportTransactions)
		tenant.GET("/bank-transactions", h.ListTransactions)

		tenant.POST("/reconcile", h.Reconcile)
		tenant.GET("/reconcile/explain", h.Explain)
		tenant.GET("/reconcile/score", h.ScorePair)

		tenant.GET("/matches", h.ListMatches)
		tenant.GET("/matches/export", h.ExportMatches)
		tenant.GET("/matches/:match_id", h.GetMatch)
		tenant.POST("/matches/:match_id/confirm", h.ConfirmMatch)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
