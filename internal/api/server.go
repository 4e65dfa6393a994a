// Package api exposes the bot's state over a read-only HTTP surface plus a
// WebSocket stream of live events for dashboards.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dex-trading-bot/internal/database"
	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/wallet"
	"dex-trading-bot/internal/watchlist"
)

// BotStatus is implemented by the bot so the API can report cycle progress.
type BotStatus interface {
	Cycle() int
}

// Server hosts the status API.
type Server struct {
	engine    *gin.Engine
	hub       *WSHub
	chain     string
	demoMode  bool
	bot       BotStatus
	watchlist *watchlist.Watchlist
	positions *monitor.PositionMonitor
	ledger    *wallet.Ledger
	trades    *database.TradeRepository // nil when history is disabled
	startedAt time.Time
	logger    zerolog.Logger
	http      *http.Server
}

// NewServer builds the API server and subscribes its WebSocket hub to the
// event bus. trades may be nil.
func NewServer(chain string, demoMode bool, bot BotStatus, wl *watchlist.Watchlist, positions *monitor.PositionMonitor, ledger *wallet.Ledger, trades *database.TradeRepository, bus *events.EventBus, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		engine:    engine,
		hub:       NewWSHub(logger),
		chain:     chain,
		demoMode:  demoMode,
		bot:       bot,
		watchlist: wl,
		positions: positions,
		ledger:    ledger,
		trades:    trades,
		startedAt: time.Now(),
		logger:    logger.With().Str("component", "API").Logger(),
	}
	s.routes()

	go s.hub.Run()
	bus.SubscribeAll(s.hub.BroadcastEvent)
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/watchlist", s.handleWatchlist)
		api.GET("/positions", s.handlePositions)
		api.GET("/balances", s.handleBalances)
		api.GET("/trades", s.handleTrades)
	}

	s.engine.GET("/ws", s.hub.HandleWebSocket)
}

// Start serves the API on addr until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chain":      s.chain,
		"demo_mode":  s.demoMode,
		"cycle":      s.bot.Cycle(),
		"watchlist":  s.watchlist.Len(),
		"positions":  s.positions.Len(),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chain":   s.chain,
		"entries": s.watchlist.Entries(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chain":     s.chain,
		"positions": s.positions.Positions(),
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	trades, err := s.trades.RecentTrades(c.Request.Context(), s.chain, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Trade history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chain":  s.chain,
		"trades": trades,
	})
}

func (s *Server) handleBalances(c *gin.Context) {
	balances := make(map[string]string)
	for token, amount := range s.ledger.Snapshot() {
		balances[token] = amount.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"chain":     s.chain,
		"demo_mode": s.demoMode,
		"balances":  balances,
	})
}
