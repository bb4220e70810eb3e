package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"busmate/internal/apperrors"
	"busmate/internal/middleware"
	"busmate/internal/services"
)

type SupportController struct {
	support *services.SupportService
}

func NewSupportController(support *services.SupportService) *SupportController {
	return &SupportController{support: support}
}

type supportInput struct {
	Message string `json:"message" form:"message"`
}

// PostMessage records a message for the support desk.
func (sc *SupportController) PostMessage(c *gin.Context) {
	var input supportInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if _, err := sc.support.Record(c.Request.Context(), middleware.UserID(c), input.Message); err != nil {
		sc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Chat answers a message through the responder chain. It never fails for a
// non-empty message.
func (sc *SupportController) Chat(c *gin.Context) {
	var input supportInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": apperrors.ErrEmptyMessage.Message})
		return
	}
	reply, err := sc.support.Respond(c.Request.Context(), input.Message)
	if err != nil {
		sc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reply": reply})
}

func (sc *SupportController) History(c *gin.Context) {
	msgs, err := sc.support.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (sc *SupportController) fail(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": apperrors.ErrEmptyMessage.Message})
		return
	}
	respondError(c, err)
}
