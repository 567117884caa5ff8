package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sanujarubasinghe/cyclechain/internal/middleware"
)

const maxChatMessage = 4000

type chatRequest struct {
	Message string `json:"message"`
}

// chatHandler relays the assistant's answer as a chunked plain-text stream.
func (a *API) chatHandler(c *gin.Context) {
	if _, ok := a.currentCustomer(c); !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "EMPTY_MESSAGE", "message": "Message is required"})
		return
	}
	if len(msg) > maxChatMessage {
		c.JSON(http.StatusBadRequest, gin.H{"code": "MESSAGE_TOO_LONG", "message": "Message is too long"})
		return
	}
	if a.assistant == nil {
		unavailable(c, "assistant")
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "no-cache")

	err := a.assistant.Stream(c.Request.Context(), msg, c.Writer)
	if err == nil {
		return
	}
	middleware.GetLogger(c).ErrorContext(c, "assistant stream failed", "error", err)
	if !c.Writer.Written() {
		c.JSON(http.StatusBadGateway, gin.H{"code": "ASSISTANT_UNAVAILABLE", "message": "Assistant is unavailable"})
	}
}
