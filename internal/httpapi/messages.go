package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusroll/internal/model"
)

func (a *api) sendMessage(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId" binding:"required"`
		Content     string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := a.Messages.Send(c.Request.Context(), caller(c).AccountID(), req.RecipientID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (a *api) conversation(c *gin.Context) {
	me, other := caller(c).AccountID(), c.Param("counterpartId")
	prof, stu := me, other
	if caller(c).Role == model.RoleStudent {
		prof, stu = other, me
	}
	msgs, err := a.Messages.Conversation(c.Request.Context(), prof, stu)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *api) searchMessages(c *gin.Context) {
	msgs, err := a.Messages.Search(c.Request.Context(), caller(c).AccountID(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *api) threads(c *gin.Context) {
	threads, err := a.Messages.Threads(c.Request.Context(), caller(c).AccountID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (a *api) language(c *gin.Context) {
	lang, err := a.Prefs.Language(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": lang})
}

func (a *api) setLanguage(c *gin.Context) {
	var req struct {
		Language string `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lang, err := a.Prefs.SetLanguage(c.Request.Context(), req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": lang})
}
