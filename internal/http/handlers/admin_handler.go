// Admin API handlers.
//
// This file exposes the panel the operator uses to manage the funnel:
//   - POST   /api/login                 (password -> session cookie)
//   - POST   /api/logout
//   - GET    /api/posts                 (recent posts merged with entries)
//   - GET    /api/posts/:id/settings
//   - PUT    /api/posts/:id/settings
//   - DELETE /api/posts/:id/settings
//   - GET    /api/words                 (standalone entries)
//   - POST   /api/words
//   - DELETE /api/words/:id
//   - GET    /api/telegram              (bot identity for deep-link preview)
//
// Everything except /api/login sits behind the session middleware. Handlers
// are transport-thin: validate input, call services, translate errors.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-funnel-backend/internal/domain"
	"github.com/tbourn/go-funnel-backend/internal/http/middleware"
	"github.com/tbourn/go-funnel-backend/internal/instagram"
	"github.com/tbourn/go-funnel-backend/internal/services"
	"github.com/tbourn/go-funnel-backend/internal/utils"
)

// PostLister is the slice of the Instagram client the admin panel consumes.
type PostLister interface {
	GetRecentPosts(ctx context.Context, limit int) ([]instagram.Post, error)
}

// BotIdentity exposes the bot's deep-link identity to the panel.
type BotIdentity interface {
	Username() string
	StartURL(payload string) string
}

// AdminHandlers serves the admin API.
type AdminHandlers struct {
	Password string
	Sessions *middleware.SessionStore
	Entries  *services.EntryService
	Posts    PostLister  // nil when Instagram auth failed at startup
	Bot      BotIdentity // nil when the bot is not running
}

// NewAdminHandlers constructs AdminHandlers.
func NewAdminHandlers(password string, sessions *middleware.SessionStore, entries *services.EntryService, posts PostLister, bot BotIdentity) *AdminHandlers {
	return &AdminHandlers{
		Password: password,
		Sessions: sessions,
		Entries:  entries,
		Posts:    posts,
		Bot:      bot,
	}
}

// LoginRequest is the JSON payload for POST /api/login.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login checks the panel password and issues a session cookie.
func (h *AdminHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "password is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Password)) != 1 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid password")
		return
	}

	token, err := h.Sessions.Issue()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create session")
		return
	}
	c.SetCookie(middleware.SessionCookie, token, 24*60*60, "/", "", false, true)
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// Logout revokes the current session.
func (h *AdminHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil {
		h.Sessions.Revoke(token)
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	noContent(c)
}

// PostView is one row in the posts list: the Instagram post plus its
// code-word configuration, when any.
type PostView struct {
	ID        string                `json:"id"`
	Caption   string                `json:"caption"`
	MediaType string                `json:"media_type"`
	Permalink string                `json:"permalink"`
	Timestamp string                `json:"timestamp"`
	Entry     *domain.CodeWordEntry `json:"entry,omitempty"`
}

// ListPosts merges recent Instagram posts with their entries so the panel can
// show configuration state at a glance. The limit query caps the fetch
// (default 25, max 50).
func (h *AdminHandlers) ListPosts(c *gin.Context) {
	if h.Posts == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, "instagram is not connected")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 25)
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	ctx := c.Request.Context()
	posts, err := h.Posts.GetRecentPosts(ctx, limit)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeListFailed, "could not fetch posts")
		return
	}

	entries, err := h.Entries.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list entries")
		return
	}
	byPost := make(map[string]*domain.CodeWordEntry, len(entries))
	for i := range entries {
		if entries[i].PostID != nil {
			byPost[*entries[i].PostID] = &entries[i]
		}
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, PostView{
			ID:        p.ID,
			Caption:   p.Caption,
			MediaType: p.MediaType,
			Permalink: p.Permalink,
			Timestamp: p.Timestamp,
			Entry:     byPost[p.ID],
		})
	}
	ok(c, http.StatusOK, gin.H{"posts": views})
}

// EntryRequest is the JSON payload for saving an entry.
type EntryRequest struct {
	CodeWord        string            `json:"code_word" binding:"required"`
	CommentReply    string            `json:"comment_reply"`
	DirectReply     string            `json:"direct_reply"`
	TelegramMessage string            `json:"telegram_message"`
	MediaType       string            `json:"media_type"`
	MediaURL        string            `json:"media_url"`
	Buttons         domain.ButtonList `json:"buttons"`
	RedirectURL     string            `json:"redirect_url"`
	Enabled         *bool             `json:"enabled"`
}

func (r EntryRequest) input() services.EntryInput {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return services.EntryInput{
		CodeWord:        r.CodeWord,
		CommentReply:    r.CommentReply,
		DirectReply:     r.DirectReply,
		TelegramMessage: r.TelegramMessage,
		MediaType:       r.MediaType,
		MediaURL:        r.MediaURL,
		Buttons:         r.Buttons,
		RedirectURL:     r.RedirectURL,
		Enabled:         enabled,
	}
}

// GetPostSettings returns the entry bound to a post.
func (h *AdminHandlers) GetPostSettings(c *gin.Context) {
	entry, err := h.Entries.GetPostEntry(c.Request.Context(), c.Param("id"))
	if err == services.ErrEntryNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post has no settings")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load settings")
		return
	}
	ok(c, http.StatusOK, entry)
}

// PutPostSettings creates or replaces the entry bound to a post.
func (h *AdminHandlers) PutPostSettings(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code_word is required")
		return
	}

	entry, err := h.Entries.SavePostEntry(c.Request.Context(), c.Param("id"), req.input())
	switch err {
	case nil:
		ok(c, http.StatusOK, entry)
	case services.ErrEmptyCodeWord:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code word must not be empty")
	case services.ErrInvalidMedia:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown media type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "could not save settings")
	}
}

// DeletePostSettings removes the entry bound to a post.
func (h *AdminHandlers) DeletePostSettings(c *gin.Context) {
	err := h.Entries.DeletePostEntry(c.Request.Context(), c.Param("id"))
	if err == services.ErrEntryNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post has no settings")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete settings")
		return
	}
	noContent(c)
}

// ListWords returns the standalone entries.
func (h *AdminHandlers) ListWords(c *gin.Context) {
	entries, err := h.Entries.ListStandalone(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list words")
		return
	}
	ok(c, http.StatusOK, gin.H{"words": entries})
}

// CreateWord creates or replaces a standalone entry.
func (h *AdminHandlers) CreateWord(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code_word is required")
		return
	}

	entry, err := h.Entries.SaveStandaloneEntry(c.Request.Context(), req.input())
	switch err {
	case nil:
		ok(c, http.StatusCreated, entry)
	case services.ErrEmptyCodeWord:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code word must not be empty")
	case services.ErrInvalidMedia:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown media type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "could not save word")
	}
}

// DeleteWord removes a standalone entry by id.
func (h *AdminHandlers) DeleteWord(c *gin.Context) {
	err := h.Entries.DeleteEntry(c.Request.Context(), c.Param("id"))
	if err == services.ErrEntryNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no such word")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete word")
		return
	}
	noContent(c)
}

// TelegramInfo reports the bot identity so the panel can preview deep links.
func (h *AdminHandlers) TelegramInfo(c *gin.Context) {
	if h.Bot == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotFound, "telegram bot is not connected")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"username":  h.Bot.Username(),
		"start_url": h.Bot.StartURL(""),
	})
}
