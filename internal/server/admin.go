package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	"github.com/smallbiznis/repairdesk/internal/audit/masking"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"github.com/smallbiznis/repairdesk/internal/providers/telegram"
	"github.com/smallbiznis/repairdesk/pkg/db/pagination"
	"go.uber.org/zap"
)

const headerAdminToken = "X-Admin-Token"

// adminToken reads the shared secret from the query string, then the header.
func adminToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.GetHeader(headerAdminToken)
}

// AdminTokenRequired gates a route behind ADMIN_TOKEN. Without a configured
// token the route is open, matching the export.
func (s *Server) AdminTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(adminToken(c)), []byte(s.cfg.AdminToken)) != 1 {
			logger.FromContext(c.Request.Context()).Warn("admin token rejected", zap.String("route", c.FullPath()))
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) ExportCSV(c *gin.Context) {
	ctx := c.Request.Context()

	exp, err := s.exportSvc.Export(ctx, adminToken(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", exp.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	c.Header("X-Export-Id", exp.ID.String())
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	if _, err := exp.WriteTo(c.Writer); err != nil {
		// Headers are already sent; the truncated body is all the client gets.
		_ = c.Error(err)
		logger.FromContext(ctx).Error("export stream interrupted",
			zap.String("export_id", exp.ID.String()),
			zap.Error(err),
		)
	}
}

type listAuditLogsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}

type notifierChat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type notifierInfoResponse struct {
	Configured   bool           `json:"configured"`
	ChatID       string         `json:"chat_id"`
	BotToken     string         `json:"bot_token"`
	Bot          *telegram.Bot  `json:"bot,omitempty"`
	BotError     string         `json:"bot_error,omitempty"`
	Chats        []notifierChat `json:"chats"`
	UpdatesError string         `json:"updates_error,omitempty"`
}

// NotifierInfo reports the notifier configuration and the chats the bot has
// seen, so an operator can find the chat id to configure.
func (s *Server) NotifierInfo(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	resp := notifierInfoResponse{
		Configured: s.cfg.Telegram.Configured(),
		ChatID:     s.cfg.Telegram.ChatID,
		BotToken:   masking.MaskSecret(s.cfg.Telegram.BotToken),
		Chats:      []notifierChat{},
	}

	bot, err := s.telegram.GetMe(ctx)
	if err != nil {
		log.Warn("telegram getMe failed", zap.Error(err))
		resp.BotError = telegramErrorMessage(err)
	} else {
		resp.Bot = &bot
	}

	updates, err := s.telegram.GetUpdates(ctx)
	if err != nil {
		log.Warn("telegram getUpdates failed", zap.Error(err))
		resp.UpdatesError = telegramErrorMessage(err)
	} else {
		resp.Chats = uniqueChats(updates)
	}

	c.JSON(http.StatusOK, resp)
}

func uniqueChats(updates []telegram.Update) []notifierChat {
	seen := make(map[int64]struct{}, len(updates))
	chats := make([]notifierChat, 0, len(updates))
	for _, update := range updates {
		chat, ok := update.Chat()
		if !ok {
			continue
		}
		if _, dup := seen[chat.ID]; dup {
			continue
		}
		seen[chat.ID] = struct{}{}
		chats = append(chats, notifierChat{
			ID:   strconv.FormatInt(chat.ID, 10),
			Name: chatName(chat),
		})
	}
	return chats
}

func chatName(chat telegram.Chat) string {
	for _, name := range []string{chat.FirstName, chat.Title, chat.Username} {
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func telegramErrorMessage(err error) string {
	var apiErr *telegram.APIError
	switch {
	case errors.Is(err, telegram.ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &apiErr) && apiErr.Description != "":
		return apiErr.Description
	default:
		return "unavailable"
	}
}
