// Package adminserver implements Vessel Frame's admin HTTP/WebSocket
// surface: a small Gin router exposing health, plugin, configuration, and
// vessel-query endpoints, plus a live-feed WebSocket that streams bus
// events to connected admin UIs and relays inbound screen-switch
// commands back onto the bus. Its middleware chain and graceful-shutdown
// shape follow the teacher's main.go router setup, narrowed to the
// handful of concerns this surface actually needs.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gin-gonic/gin"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/cache"
	verrors "github.com/vesselframe/vesselframe/internal/errors"
	"github.com/vesselframe/vesselframe/internal/logger"
	vmiddleware "github.com/vesselframe/vesselframe/internal/middleware"
	"github.com/vesselframe/vesselframe/internal/manager"
	"github.com/vesselframe/vesselframe/internal/plugins"
	"github.com/vesselframe/vesselframe/internal/repository"
	"github.com/vesselframe/vesselframe/internal/screen"
	vws "github.com/vesselframe/vesselframe/internal/websocket"
)

// vesselStatsCacheTTL bounds how stale the cached aggregate stats
// response may be; the repository's own stats query runs a full table
// scan, so it is the one endpoint worth caching explicitly.
const vesselStatsCacheTTL = 10 * time.Second

// feedTopics are the bus topics relayed verbatim to connected admin
// WebSocket clients as JSON frames.
var feedTopics = []string{
	manager.TopicVesselFirstSeen,
	manager.TopicVesselAppeared,
	manager.TopicVesselUpdated,
	manager.TopicVesselIdentified,
	manager.TopicZoneEntered,
	manager.TopicZoneExited,
	manager.TopicZoneMoved,
	screen.TopicChanged,
}

// Config configures the admin server's listener and feature toggles.
type Config struct {
	Addr         string
	CacheEnabled bool
}

// Server is the running admin HTTP/WebSocket surface.
type Server struct {
	cfg Config
	log zerolog.Logger

	bus     *bus.Bus
	mgr     *manager.Manager
	repo    *repository.Repository
	reg     *plugins.Registry
	cache   *cache.Cache
	hub     *vws.Hub
	coord   *screen.Coordinator
	limiter *vmiddleware.RateLimiter
	router  *gin.Engine
	httpSrv *http.Server

	feedSubs []*bus.Subscription
	stopCh   chan struct{}
}

// New constructs the admin server's router and wires every bus, registry,
// repository, and coordinator dependency it needs to answer requests.
func New(cfg Config, b *bus.Bus, mgr *manager.Manager, repo *repository.Repository, reg *plugins.Registry, coord *screen.Coordinator, redisCache *cache.Cache) *Server {
	s := &Server{
		cfg:     cfg,
		log:     logger.Component("adminserver"),
		bus:     b,
		mgr:     mgr,
		repo:    repo,
		reg:     reg,
		cache:   redisCache,
		coord:   coord,
		limiter: vmiddleware.NewRateLimiter(50, 100),
		stopCh:  make(chan struct{}),
	}
	s.hub = vws.NewHub(s.handleInboundCommand)
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(vmiddleware.RequestID())
	router.Use(verrors.Recovery())
	router.Use(vmiddleware.StructuredLoggerWithConfigFunc(vmiddleware.DefaultStructuredLoggerConfig()))
	router.Use(vmiddleware.Timeout(vmiddleware.DefaultTimeoutConfig()))
	router.Use(vmiddleware.AllowedHTTPMethods())
	router.Use(vmiddleware.SecurityHeaders())
	router.Use(vmiddleware.RequestSizeLimiter(1 << 20))
	router.Use(vmiddleware.GzipWithExclusions(vmiddleware.BestSpeed, []string{"/api/v1/ws"}))
	router.Use(cache.CacheControl(5 * time.Second))
	// The admin surface runs on an unauthenticated loopback-style
	// listener; a generous per-IP limit is still worth having so a
	// runaway polling client can't starve the live feed goroutine.
	router.Use(s.limiter.Middleware())
	router.Use(verrors.ErrorHandler())

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/plugins", s.handlePlugins)
		v1.GET("/config", s.handleConfigPlaceholder)
		v1.GET("/vessels", s.handleListVessels)
		v1.GET("/vessels/stats", s.handleVesselStats)
		v1.GET("/vessels/:mmsi", s.handleGetVessel)
		v1.GET("/ws", s.handleWebSocket)
	}

	return router
}

// Start begins serving HTTP and relaying bus events to the live feed.
// It does not block; the HTTP server runs in its own goroutine.
func (s *Server) Start() {
	go s.hub.Run()
	s.startFeedRelay()

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("admin server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("admin server stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts down the HTTP server and releases the feed
// subscriptions.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopCh)
	for _, sub := range s.feedSubs {
		sub.Close()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) startFeedRelay() {
	for _, topic := range feedTopics {
		sub := s.bus.Subscribe(topic)
		s.feedSubs = append(s.feedSubs, sub)

		go func(topic string, sub *bus.Subscription) {
			for {
				select {
				case <-s.stopCh:
					return
				case msg, ok := <-sub.Messages():
					if !ok {
						return
					}
					s.broadcastFeedEvent(topic, msg)
				}
			}
		}(topic, sub)
	}
}

type feedEnvelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

func (s *Server) broadcastFeedEvent(topic string, payload any) {
	data, err := json.Marshal(feedEnvelope{Topic: topic, Payload: payload})
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("failed to marshal feed event")
		return
	}
	s.hub.Broadcast(data)
}

// handleInboundCommand decodes an inbound WebSocket frame as a screen
// command and publishes it onto the bus for the screen coordinator.
func (s *Server) handleInboundCommand(clientID string, message []byte) {
	var cmd screen.Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.log.Warn().Err(err).Str("client", clientID).Msg("dropping malformed screen command")
		return
	}
	s.bus.Publish(screen.TopicCommand, cmd)
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	clientID := fmt.Sprintf("%s-%d", c.ClientIP(), time.Now().UnixNano())
	s.hub.ServeClient(conn, clientID)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handlePlugins(c *gin.Context) {
	out := gin.H{}
	for _, group := range s.reg.AllGroups() {
		out[string(group)] = s.reg.Names(group)
	}
	c.JSON(http.StatusOK, out)
}

// handleConfigPlaceholder reports the names of the screens the
// coordinator was constructed with. Zones and other configuration values
// are not included, and live config editing is not part of this surface.
func (s *Server) handleConfigPlaceholder(c *gin.Context) {
	names := make([]string, 0)
	if s.coord != nil {
		for _, sc := range s.coord.Screens() {
			names = append(names, sc.Name())
		}
	}
	c.JSON(http.StatusOK, gin.H{"screens": names})
}

func (s *Server) handleListVessels(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.GetAllVessels())
}

func (s *Server) handleGetVessel(c *gin.Context) {
	mmsi := c.Param("mmsi")
	rec := s.mgr.GetVessel(mmsi)
	if rec == nil {
		verrors.AbortWithError(c, verrors.NotFound("vessel"))
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleVesselStats(c *gin.Context) {
	ctx := c.Request.Context()

	if s.cache != nil && s.cache.IsEnabled() {
		var cached repository.Stats
		if err := s.cache.Get(ctx, cache.VesselStatsKey(), &cached); err == nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	stats, err := s.repo.GetVesselStats(ctx)
	if err != nil {
		verrors.AbortWithError(c, verrors.DatabaseError(err))
		return
	}

	if s.cache != nil && s.cache.IsEnabled() {
		if err := s.cache.Set(ctx, cache.VesselStatsKey(), stats, vesselStatsCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache vessel stats")
		}
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, stats)
}
