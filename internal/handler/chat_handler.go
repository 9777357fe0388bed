package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
	"github.com/xxxsen/knowhub/internal/pkg/response"
	"github.com/xxxsen/knowhub/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), getTenantID(c), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chat.ListSessions(c.Request.Context(), getTenantID(c),
		parseUint(c.Query("limit"), 50), parseUint(c.Query("offset"), 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessions)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.chat.GetSession(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chat.DeleteSession(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.chat.ListMessages(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msgs)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.chat.Chat(c.Request.Context(), getTenantID(c), c.Param("id"), req.Message)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type streamEvent struct {
	Type    string              `json:"type"`
	Content string              `json:"content,omitempty"`
	Result  *service.ChatResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ChatStream answers over server-sent events: one "chunk" event per
// model chunk, then a single "done" event carrying the persisted
// result. Failures before the first chunk map to a plain error
// response; after that the stream is already committed and the failure
// becomes an "error" event.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, errcode.ErrInternal, "streaming unsupported")
		return
	}

	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.WriteHeader(http.StatusOK)
	}
	emit := func(event streamEvent) {
		begin()
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write([]byte("data: "))
		_, _ = c.Writer.Write(data)
		_, _ = c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}

	result, err := h.chat.ChatStream(c.Request.Context(), getTenantID(c), c.Param("id"), req.Message,
		func(chunk string) error {
			emit(streamEvent{Type: "chunk", Content: chunk})
			return nil
		})
	if err != nil {
		if !started {
			handleError(c, err)
			return
		}
		logutil.GetLogger(c.Request.Context()).Error("chat stream failed",
			zap.String("session_id", c.Param("id")), zap.Error(err))
		emit(streamEvent{Type: "error", Error: "generation failed"})
		return
	}
	emit(streamEvent{Type: "done", Result: result})
}
