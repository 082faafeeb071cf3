package hearth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

const (
	xRequestIDHeader = "X-Request-ID"

	apiPathHealth      = "/health"
	apiPrefix          = "/api"
	apiPathGuilds      = "/guilds"
	apiPathGuildDetail = "/guilds/:guild_id"
	apiPathConfessions = "/guilds/:guild_id/confessions"
	apiPathDecisions   = "/guilds/:guild_id/decisions"
	apiPathSessions    = "/sessions"
)

type httpError struct {
	Error string `json:"error"`
}

// API is the read-only admin HTTP server: guild state, queued
// confessions, decision history, and live sessions. All endpoints except
// the health check require the configured bearer token.
type API struct {
	config     *APIConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	db         *gorm.DB
	workflows  *Workflows
	logger     *slog.Logger
}

func newAPI(config *APIConfig, db *gorm.DB, workflows *Workflows) *API {
	apiLogger := slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "api")

	r := gin.New()
	api := &API{
		config:    config,
		engine:    r,
		db:        db,
		workflows: workflows,
		logger:    apiLogger,
	}

	api.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost"}
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")

	r.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		apiLoggingMiddleware(apiLogger),
		cors.New(corsConfig),
	)

	r.GET(apiPathHealth, api.healthCheck)

	protected := r.Group(apiPrefix)
	protected.Use(tokenAuthMiddleware(config, apiLogger))

	protected.GET(apiPathGuilds, api.getGuilds)
	protected.GET(apiPathGuildDetail, api.getGuild)
	protected.GET(apiPathConfessions, api.getGuildConfessions)
	protected.GET(apiPathDecisions, api.getGuildDecisions)
	protected.GET(apiPathSessions, api.getSessions)

	return api
}

// Serve blocks until the listener fails or Shutdown is called.
func (a *API) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	a.listener = listener
	a.logger.InfoContext(ctx, "api listening", "address", listener.Addr().String())

	if err = a.httpServer.Serve(listener); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) getGuilds(c *gin.Context) {
	var guilds []GuildState
	if err := a.db.WithContext(c.Request.Context()).
		Order("id").
		Find(&guilds).Error; err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, guilds)
}

func (a *API) getGuild(c *gin.Context) {
	var guild GuildState
	err := a.db.WithContext(c.Request.Context()).
		Where("id = ?", c.Param("guild_id")).
		Take(&guild).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, httpError{Error: "guild not found"})
	case err != nil:
		a.serverError(c, err)
	default:
		c.JSON(http.StatusOK, guild)
	}
}

func (a *API) getGuildConfessions(c *gin.Context) {
	var guild GuildState
	err := a.db.WithContext(c.Request.Context()).
		Where("id = ?", c.Param("guild_id")).
		Take(&guild).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, httpError{Error: "guild not found"})
	case err != nil:
		a.serverError(c, err)
	default:
		pending := make([]PendingConfession, 0, len(guild.Confession.ApprovalQueue))
		for _, p := range guild.Confession.ApprovalQueue {
			pending = append(pending, p)
		}
		c.JSON(http.StatusOK, gin.H{
			"pending":         pending,
			"banned_user_ids": guild.Confession.BannedUserIDs,
		})
	}
}

func (a *API) getGuildDecisions(c *gin.Context) {
	var decisions []ConfessionDecision
	if err := a.db.WithContext(c.Request.Context()).
		Where("guild_id = ?", c.Param("guild_id")).
		Order("id desc").
		Limit(100).
		Find(&decisions).Error; err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func (a *API) getSessions(c *gin.Context) {
	c.JSON(http.StatusOK, a.workflows.Sessions().Snapshot())
}

func (a *API) serverError(c *gin.Context, err error) {
	a.logger.Error("request failed", tint.Err(err))
	c.AbortWithStatusJSON(
		http.StatusInternalServerError,
		httpError{Error: "internal error"},
	)
}

// tokenAuthMiddleware validates the Authorization bearer token against
// the configured Argon2id hash.
func tokenAuthMiddleware(config *APIConfig, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.TokenHash == "" {
			logger.Warn("api token hash not configured")
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				httpError{Error: "unauthorized"},
			)
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				httpError{Error: "unauthorized"},
			)
			return
		}

		valid, err := verifyToken(config.TokenHash, token)
		if err != nil {
			logger.Error("error verifying token", tint.Err(err))
		}
		if !valid {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				httpError{Error: "unauthorized"},
			)
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := generateRandomHexString(32)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(xRequestIDHeader, id)
		c.Header(xRequestIDHeader, id)
		c.Next()
	}
}

func apiLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		requestID, _ := c.Get(xRequestIDHeader)
		requestLogger := logger.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		var errs []error
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			errs = append(errs, *e)
		}
		if len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf("%s %s finished with errors", c.Request.Method, c.Request.URL),
				"duration", latency,
				"errors", errs,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		} else {
			requestLogger.Info(
				fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
				"duration", latency,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		}
	}
}
