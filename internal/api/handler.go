package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"investment-core/internal/account"
	"investment-core/internal/catalog"
	"investment-core/internal/domain"
	"investment-core/internal/evidence"
	"investment-core/internal/lifecycle"
	"investment-core/internal/monitor"
)

// Options tunes the middleware stack.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	RequestTimeout time.Duration
	Version        string
}

// Server wires HTTP endpoints around the services.
type Server struct {
	Router    *gin.Engine
	Accounts  *account.Service
	Lifecycle *lifecycle.Service
	Catalog   *catalog.Service
	Evidence  evidence.Store
	Tokens    *TokenManager
	Hub       *Hub
	Metrics   *monitor.SystemMetrics
	Log       *zap.Logger
	opts      Options
}

// Deps are the services a Server exposes. Hub, Metrics and Log are optional.
type Deps struct {
	Accounts  *account.Service
	Lifecycle *lifecycle.Service
	Catalog   *catalog.Service
	Evidence  evidence.Store
	Tokens    *TokenManager
	Hub       *Hub
	Metrics   *monitor.SystemMetrics
	Log       *zap.Logger
	// UploadDir is served under /uploads when set.
	UploadDir string
}

func NewServer(d Deps, opts Options) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(d.Log, d.Metrics))
	r.Use(RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst, d.Log))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(CORSMiddleware(opts.CORSOrigins))

	s := &Server{
		Router:    r,
		Accounts:  d.Accounts,
		Lifecycle: d.Lifecycle,
		Catalog:   d.Catalog,
		Evidence:  d.Evidence,
		Tokens:    d.Tokens,
		Hub:       d.Hub,
		Metrics:   d.Metrics,
		Log:       d.Log,
		opts:      opts,
	}
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")

	// Auth endpoints (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/verify", s.verify)
		auth.POST("/resend-verification", s.resendVerification)
		auth.POST("/login", s.login)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(s.Tokens))
	{
		protected.GET("/users/me", s.me)
		protected.PATCH("/users/me", s.updateProfile)
		protected.PUT("/users/me/picture", s.changeProfilePicture)
		protected.GET("/users/me/notifications", s.notifications)

		protected.POST("/transactions/deposit", s.createTransaction(domain.TxDeposit))
		protected.POST("/transactions/withdrawal", s.createTransaction(domain.TxWithdrawal))
		protected.POST("/transactions/investment", s.createTransaction(domain.TxInvestment))
		protected.POST("/transactions/bot-purchase", s.createTransaction(domain.TxBotPurchase))
		protected.GET("/transactions/me", s.myTransactions)
		protected.GET("/transactions/:id", s.getTransaction)

		protected.GET("/bots", s.listBots)
		protected.GET("/bots/:id", s.getBot)
	}

	admin := api.Group("/admin")
	admin.Use(AuthMiddleware(s.Tokens), RequireAction(domain.ActionManageUsers))
	{
		admin.GET("/users", s.adminListUsers)
		admin.GET("/users/:id", s.adminGetUser)
		admin.PATCH("/users/:id", s.adminUpdateUser)
		admin.PATCH("/users/:id/fund", s.adminFundUser)
		admin.DELETE("/users/:id", s.adminDeleteUser)

		admin.GET("/transactions", s.adminListTransactions)
		admin.GET("/transactions/:id", s.getTransaction)
		admin.PATCH("/transactions/:id/status", s.adminUpdateStatus)
		admin.DELETE("/transactions/:id", s.adminDeleteTransaction)

		admin.GET("/bots", s.listBots)
		admin.POST("/bots", s.adminCreateBot)
		admin.GET("/bots/:id", s.getBot)
		admin.PATCH("/bots/:id", s.adminUpdateBot)
		admin.DELETE("/bots/:id", s.adminDeleteBot)
		admin.PATCH("/bots/:id/toggle-status", s.adminToggleBot)

		admin.GET("/metrics", s.getMetrics)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondCode(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// pageQuery reads limit/offset; bad values fall back to defaults.
func pageQuery(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
