package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sharesRequest struct {
	Delta *int64 `json:"delta" binding:"required"`
}

type readRequest struct {
	ID string `json:"id"`
}

func (s *HTTPServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.hub.ClientCount(),
		"ticks":       s.engine.TickCount(),
		"followed":    len(s.engine.Followed()),
	})
}

func (s *HTTPServer) getInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Catalog().Instruments())
}

func (s *HTTPServer) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Dashboard(c.Query("q")))
}

func (s *HTTPServer) follow(c *gin.Context) {
	position, err := s.engine.Follow(c.Request.Context(), c.Param("symbol"))
	body, err := mutationBody(err)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	body["position"] = position
	c.JSON(http.StatusCreated, body)
}

func (s *HTTPServer) unfollow(c *gin.Context) {
	body, err := mutationBody(s.engine.Unfollow(c.Request.Context(), c.Param("symbol")))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *HTTPServer) addShares(c *gin.Context) {
	var req sharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, err := s.engine.AddShares(c.Param("symbol"), *req.Delta)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, position)
}

// markRead marks one notification read, or all of them when no id is given.
func (s *HTTPServer) markRead(c *gin.Context) {
	var req readRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.ID == "" {
		c.JSON(http.StatusOK, gin.H{"marked": s.engine.MarkAllRead(), "unread": s.engine.UnreadCount()})
		return
	}
	if err := s.engine.MarkRead(req.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": 1, "unread": s.engine.UnreadCount()})
}

func (s *HTTPServer) signOut(c *gin.Context) {
	if err := s.engine.SignOut(c.Request.Context(), s.identity); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	s.hub.Stop()
	c.Status(http.StatusNoContent)
}
