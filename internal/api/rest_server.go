package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/blockguard/internal/api/replay"
	"github.com/annel0/blockguard/internal/auth"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер: мост для хоста и административные операции
type RestServer struct {
	router       *gin.Engine
	httpServer   *http.Server
	port         int
	pipeline     *guard.Pipeline
	tokens       *auth.TokenManager
	credentials  auth.Credentials
	reloader     *Reloader
	bus          eventbus.EventBus
	vetoes       *replay.Store
	webhooks     *OutboundWebhookManager
	bridgeSecret string
	metrics      *ServerMetrics
	upgrader     websocket.Upgrader
	logger       *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port         int
	Pipeline     *guard.Pipeline
	Tokens       *auth.TokenManager
	Credentials  auth.Credentials
	Reloader     *Reloader               // nil отключает перезагрузку
	Bus          eventbus.EventBus       // для публикации Toggle, может быть nil
	Vetoes       *replay.Store           // журнал запретов, может быть nil
	Webhooks     *OutboundWebhookManager // может быть nil
	BridgeSecret string                  // HMAC-подпись запросов моста
	ServiceName  string
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("rest server: pipeline is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("rest server: token manager is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8088
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "blockguard"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.NewRequestLogger("/api/guard/").Handler())

	promMw := middleware.NewPrometheusMiddleware("blockguard", cfg.Registerer, StreamPath)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:       router,
		port:         cfg.Port,
		pipeline:     cfg.Pipeline,
		tokens:       cfg.Tokens,
		credentials:  cfg.Credentials,
		reloader:     cfg.Reloader,
		bus:          cfg.Bus,
		vetoes:       cfg.Vetoes,
		webhooks:     cfg.Webhooks,
		bridgeSecret: cfg.BridgeSecret,
		metrics:      NewServerMetrics(),
		upgrader:     newUpgrader(),
		logger:       logging.GetAPILogger(),
	}
	rs.setupRoutes()
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")

	// Эндпоинт для аутентификации (без JWT защиты)
	api.POST("/auth/login", rs.handleLogin)

	// Мост хоста: события мира на проверку
	bridge := api.Group("/guard")
	{
		bridge.GET("/categories", rs.handleCategories)
		bridge.POST("/:category", rs.handleGuard)
		bridge.POST("/:category/evaluate", rs.handleEvaluate)
	}

	// Административные эндпоинты (только для админов)
	admin := api.Group("/admin")
	admin.Use(middleware.JWT(rs.tokens), middleware.AdminOnly())
	{
		admin.GET("/state", rs.handleGetState)
		admin.POST("/halt", rs.handleHalt)
		admin.POST("/fire/:world", rs.handleFireSpread)
		admin.POST("/reload", rs.handleReload)
		admin.GET("/policies", rs.handleGetPolicies)
		admin.GET("/policies/:world", rs.handleGetPolicy)
		admin.GET("/stats", rs.handleStats)
		admin.GET("/vetoes", rs.handleGetVetoes)
		admin.GET("/vetoes/stats", rs.handleVetoStats)
		admin.GET("/stream", rs.handleStream) // StreamPath

		// Управление исходящими webhook'ами
		admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
		admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
		admin.GET("/webhooks/:id", rs.handleGetOutboundWebhook)
		admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
		admin.POST("/webhooks/:id/test", rs.handleTestOutboundWebhook)
	}
}

// Handler возвращает HTTP-обработчик сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST API сервер в отдельной горутине
func (rs *RestServer) Start() error {
	if rs.httpServer != nil {
		return errors.New("rest server already started")
	}
	rs.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", rs.port),
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logger.Info("✅ REST API сервер запущен на http://localhost:%d", rs.port)
	return nil
}

// Shutdown останавливает REST API сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown rest server: %w", err)
	}
	rs.logger.Info("REST API сервер остановлен")
	return nil
}

// handleHealth обрабатывает health check
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    rs.metrics.GetUptime(),
		"halted":    rs.pipeline.State().ActivityHalt(),
	})
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// handleLogin обрабатывает запрос на вход администратора
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	if !rs.credentials.Verify(req.Username, req.Password) {
		rs.logger.Warn("Неудачный вход %q с %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}

	token, err := rs.tokens.Generate(req.Username, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Ошибка генерации токена",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Успешная авторизация",
	})
}
