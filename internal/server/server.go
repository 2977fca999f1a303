// Package server exposes the webhook endpoint together with health and metrics over gin.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 10 * time.Second

	// SecretTokenHeader carries the secret_token registered with setWebhook.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
)

type dispatcher interface {
	Dispatch(ctx context.Context, u api.Update) error
}

type Options struct {
	Listen string
	Port   int
	// WebhookPath is empty in polling mode, the webhook route is not registered then.
	WebhookPath string
	// WebhookSecret, when set, must match the SecretTokenHeader of every webhook call.
	WebhookSecret string
	Metrics       bool
}

type Server struct {
	opts       Options
	dispatcher dispatcher
	engine     *gin.Engine
	httpServer *http.Server

	mu      sync.Mutex
	wg      sync.WaitGroup
	started bool
}

// WebhookPath derives a hard to guess path from the bot token.
func WebhookPath(token string) string {
	return "/webhook/" + tokenDigest(token)[:32]
}

// WebhookSecret derives the secret_token for setWebhook from the bot token. It uses the
// half of the digest the path does not expose and fits Telegram's [A-Za-z0-9_-] alphabet.
func WebhookSecret(token string) string {
	return tokenDigest(token)[32:]
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func New(opts Options, d dispatcher) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{opts: opts, dispatcher: d}

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.GET("/healthz", s.health)
	if opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if opts.WebhookPath != "" {
		r.POST(opts.WebhookPath, s.webhook)
	}
	s.engine = r
	return s
}

func (s *Server) getLogEntry() *log.Entry {
	return log.WithField("object", "Server")
}

func (s *Server) Name() string {
	return "server"
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Listen, strconv.Itoa(s.opts.Port))
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.getLogEntry().WithFields(log.Fields{"method": "Start", "error": err.Error()}).Error("http server failed")
		}
	}()
	s.started = true
	s.getLogEntry().WithFields(log.Fields{
		"addr":    ln.Addr().String(),
		"webhook": s.opts.WebhookPath != "",
	}).Info("http server started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) webhook(c *gin.Context) {
	if s.opts.WebhookSecret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
			s.getLogEntry().WithFields(log.Fields{
				"method": "webhook",
				"remote": c.ClientIP(),
			}).Warn("webhook call with a wrong secret token")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	var update api.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		s.getLogEntry().WithFields(log.Fields{"method": "webhook", "error": err.Error()}).Warn("malformed update")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if err := s.dispatcher.Dispatch(c.Request.Context(), update); err != nil {
		s.getLogEntry().WithFields(log.Fields{
			"method":    "webhook",
			"update_id": update.UpdateID,
			"error":     err.Error(),
		}).Error("failed to dispatch update")
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"object":  "Server",
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(started).String(),
		}).Trace("request served")
	}
}
