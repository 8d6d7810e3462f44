package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quantnexus/marketstream/internal/connection"
	"github.com/quantnexus/marketstream/internal/model"
)

const (
	defaultTopN = 10
	maxTopN     = 100
)

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/symbols", s.handleSymbols)
	v1.GET("/tickers", s.handleTickers)
	v1.GET("/tickers/:symbol", s.handleTicker)
	v1.GET("/orderbooks/:symbol", s.handleOrderBook)
	v1.GET("/klines/:symbol", s.handleKlines)
	v1.GET("/trades/:symbol", s.handleTrades)
	v1.GET("/stats", s.handleStats)
	v1.GET("/subscriptions", s.handleListSubscriptions)
	v1.POST("/subscriptions", s.handleSubscribe)
	v1.DELETE("/subscriptions", s.handleUnsubscribe)
	v1.POST("/reconnect", s.handleReconnect)
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"connection": s.cfg.Stream.Stats()}
	if s.cfg.RouterStats != nil {
		resp["router"] = s.cfg.RouterStats()
	}
	for name, fn := range s.cfg.Extra {
		resp[name] = fn()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Market.Symbols())
}

func (s *Server) handleTickers(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Market.Tickers())
}

func (s *Server) handleTicker(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	t, ok := s.cfg.Market.Ticker(symbol)
	if !ok {
		errorJSON(c, http.StatusNotFound, "no ticker for "+symbol)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleOrderBook(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	ob, ok := s.cfg.Market.OrderBook(symbol)
	if !ok {
		errorJSON(c, http.StatusNotFound, "no order book for "+symbol)
		return
	}

	if raw := c.Query("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 {
			errorJSON(c, http.StatusBadRequest, "depth must be a positive integer")
			return
		}
		if len(ob.Bids) > depth {
			ob.Bids = ob.Bids[:depth]
		}
		if len(ob.Asks) > depth {
			ob.Asks = ob.Asks[:depth]
		}
	}
	c.JSON(http.StatusOK, ob)
}

func (s *Server) handleKlines(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "intervals": s.cfg.Market.KlineIntervals(symbol)})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Market.Klines(symbol, interval))
}

func (s *Server) handleTrades(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	c.JSON(http.StatusOK, s.cfg.Market.Trades(symbol))
}

func (s *Server) handleStats(c *gin.Context) {
	n := defaultTopN
	if raw := c.Query("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			errorJSON(c, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		n = min(v, maxTopN)
	}

	c.JSON(http.StatusOK, gin.H{
		"market":  s.cfg.Market.MarketStats(),
		"gainers": s.cfg.Market.TopGainers(n),
		"losers":  s.cfg.Market.TopLosers(n),
		"volume":  s.cfg.Market.TopVolume(n),
	})
}

func (s *Server) handleListSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscriptions": s.cfg.Stream.Registry().Keys()})
}

type subscriptionRequest struct {
	Channel string `json:"channel" binding:"required"`
	Symbol  string `json:"symbol"`
}

func (s *Server) handleSubscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if !model.IsChannel(req.Channel) {
		errorJSON(c, http.StatusBadRequest, "unknown channel "+strconv.Quote(req.Channel))
		return
	}

	symbol := model.NormalizeSymbol(req.Symbol)
	// Cache-only subscription: the router still updates the cache for it.
	if err := s.cfg.Stream.Subscribe(req.Channel, symbol, nil); err != nil && !errors.Is(err, connection.ErrNotConnected) {
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel": req.Channel, "symbol": symbol})
}

func (s *Server) handleUnsubscribe(c *gin.Context) {
	channel := c.Query("channel")
	if channel == "" {
		if err := s.cfg.Stream.UnsubscribeAll(); err != nil && !errors.Is(err, connection.ErrNotConnected) {
			errorJSON(c, http.StatusBadGateway, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	if !model.IsChannel(channel) {
		errorJSON(c, http.StatusBadRequest, "unknown channel "+strconv.Quote(channel))
		return
	}

	symbol := model.NormalizeSymbol(c.Query("symbol"))
	if err := s.cfg.Stream.Unsubscribe(channel, symbol); err != nil && !errors.Is(err, connection.ErrNotConnected) {
		errorJSON(c, http.StatusBadGateway, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// handleReconnect drops the stream and schedules a fresh connection. The
// manager clears its subscriptions on the way down; the Stream decides which
// ones come back on the next open.
func (s *Server) handleReconnect(c *gin.Context) {
	if err := s.cfg.Stream.Reconnect(); err != nil {
		errorJSON(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reconnecting"})
}
