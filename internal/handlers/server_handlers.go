package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bdsgp/internal/manager"
	"bdsgp/internal/middleware"
	"bdsgp/internal/motd"
	"bdsgp/internal/upstream"

	"github.com/gin-gonic/gin"
)

const upstreamTimeout = 15 * time.Second

type ServerHandlers struct {
	manager *manager.Manager
}

func NewServerHandlers(mgr *manager.Manager) *ServerHandlers {
	return &ServerHandlers{manager: mgr}
}

// serverView is the JSON shape of a directory entry with its MOTD pre-rendered.
func serverView(s upstream.Server) gin.H {
	return gin.H{
		"uuid":             s.UUID,
		"name":             s.Name,
		"name_html":        string(motd.RenderHTML(s.Name)),
		"name_text":        motd.Strip(s.Name),
		"introduce":        s.Introduce,
		"host":             s.Host,
		"port":             int(s.Port),
		"address":          s.Address(),
		"online":           s.Online,
		"player_count":     int(s.PlayerCount),
		"max_players":      int(s.MaxPlayers),
		"motd":             s.Motd,
		"motd_html":        string(motd.RenderHTML(s.Motd)),
		"motd_text":        motd.Strip(s.Motd),
		"image":            s.Image,
		"last_status_time": s.LastStatusTime,
		"created_at":       s.CreatedAt,
	}
}

func uuidParam(c *gin.Context) (string, bool) {
	id, ok := middleware.ValidateUUID(c.Param("uuid"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server UUID"})
		return "", false
	}
	return id, true
}

func writeUpstreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Upstream timed out"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream unavailable", "details": err.Error()})
	}
}

// APIServers lists the cached directory, optionally filtered by ?q=.
func (h *ServerHandlers) APIServers(c *gin.Context) {
	term := middleware.SanitizeString(c.Query("q"))
	servers := h.manager.Search(term)
	items := make([]gin.H, 0, len(servers))
	for _, s := range servers {
		items = append(items, serverView(s))
	}
	resp := gin.H{
		"servers": items,
		"count":   len(items),
		"stats":   h.manager.Stats(),
	}
	if err := h.manager.LastError(); err != nil {
		resp["stale"] = true
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ServerHandlers) APIServer(c *gin.Context) {
	id, ok := uuidParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()
	s, err := h.manager.Server(ctx, id)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, serverView(*s))
}

// APIServerMOTD runs a live MOTD query against the server's address.
func (h *ServerHandlers) APIServerMOTD(c *gin.Context) {
	id, ok := uuidParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()
	s, info, err := h.manager.MOTD(ctx, id)
	if errors.Is(err, manager.ErrNoAddress) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Server has no address"})
		return
	}
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uuid":           s.UUID,
		"address":        s.Address(),
		"status":         info.Status,
		"online":         info.IsOnline(),
		"players":        gin.H{"online": int(info.Online), "max": int(info.Max)},
		"version":        info.Version,
		"agreement":      int(info.Agreement),
		"gamemode":       info.Gamemode,
		"delay":          int(info.Delay),
		"motd":           info.Motd,
		"motd_html":      string(motd.RenderHTML(info.Motd)),
		"motd_text":      motd.Strip(info.Motd),
		"motd_fragments": motd.Format(info.Motd),
	})
}

func (h *ServerHandlers) APIStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Stats())
}

// APIHistory merges the player history of ?uuid=a&uuid=b (or ?uuids=a,b).
func (h *ServerHandlers) APIHistory(c *gin.Context) {
	raw := c.QueryArray("uuid")
	if list := c.Query("uuids"); list != "" {
		raw = append(raw, strings.Split(list, ",")...)
	}
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		id, ok := middleware.ValidateUUID(r)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server UUID", "uuid": r})
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one uuid is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()
	res, err := h.manager.History(ctx, ids)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type motdPreviewRequest struct {
	Text string `json:"text" validate:"max=1024"`
}

// APIMOTDPreview renders arbitrary MOTD markup, used by the server editor.
func (h *ServerHandlers) APIMOTDPreview(c *gin.Context) {
	var req motdPreviewRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	fragments := motd.Format(req.Text)
	c.JSON(http.StatusOK, gin.H{
		"html":      motd.HTML(fragments),
		"plain":     motd.Strip(req.Text),
		"fragments": fragments,
	})
}
