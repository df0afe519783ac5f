package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/auth"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/hub"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ledger"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ratelimit"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/repository"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/stream"
)

type Handler struct {
	store           repository.Store
	engine          *ledger.Engine
	hub             *hub.Hub
	tokens          *auth.Manager
	limiter         ratelimit.Limiter
	logger          *zap.Logger
	startingBalance float64
}

func NewHandler(
	store repository.Store,
	engine *ledger.Engine,
	h *hub.Hub,
	tokens *auth.Manager,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
	startingBalance float64,
) *Handler {
	return &Handler{
		store:           store,
		engine:          engine,
		hub:             h,
		tokens:          tokens,
		limiter:         limiter,
		logger:          logger,
		startingBalance: startingBalance,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/ws/market", h.Market)

	authed := r.Group("/", h.tokens.Middleware())
	authed.GET("/user/status", h.Status)
	authed.POST("/trade/:action", h.rateLimit(), h.Trade)
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tradeRequest struct {
	Amount int64   `json:"amount"`
	Price  float64 `json:"price"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Password hash error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	account, err := h.store.CreateAccount(c.Request.Context(), req.Username, hash, h.startingBalance)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Create account error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"username": account.Username})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.store.AccountByUsername(c.Request.Context(), req.Username)
	if err != nil || !auth.VerifyPassword(req.Password, account.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.IssueToken(account.Username)
	if err != nil {
		h.logger.Error("Token issue error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) Status(c *gin.Context) {
	username := c.GetString(auth.ContextUserKey)

	currentPrice, err := strconv.ParseFloat(c.Query("current_price"), 64)
	if err != nil || currentPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_price must be a positive number"})
		return
	}

	holdings, err := h.engine.Holdings(c.Request.Context(), username, currentPrice)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Holdings query error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, holdings)
}

func (h *Handler) Trade(c *gin.Context) {
	username := c.GetString(auth.ContextUserKey)
	action := c.Param("action")

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := ledger.Order{
		Side:     ledger.Side(action),
		Quantity: req.Amount,
		Price:    req.Price,
	}

	if err := h.engine.Execute(c.Request.Context(), username, order); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidOrder),
			errors.Is(err, ledger.ErrInsufficientFunds),
			errors.Is(err, ledger.ErrInsufficientHoldings):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrAccountNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Settlement error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}

// Market upgrades the connection and registers it as a feed observer.
func (h *Handler) Market(c *gin.Context) {
	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := stream.NewClient(conn, h.hub, h.logger)
	client.Start()
}

// rateLimit gates order placement per authenticated user.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString(auth.ContextUserKey)

		allowed, err := h.limiter.Allow(c.Request.Context(), username)
		if err != nil {
			// Fail open: a limiter outage must not block trading.
			h.logger.Warn("Rate limiter error", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many orders"})
			return
		}
		c.Next()
	}
}
