package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Together/internal/app/orch"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch     *orch.Orchestrator
	resolver core.Resolver
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=32"`
	Title       string `json:"title" binding:"max=255"`
	Description string `json:"description" binding:"max=1024"`
	Temporary   bool   `json:"temporary"`
}

type previewQuery struct {
	URL string `form:"url" binding:"required,max=2048"`
}

func statusFor(err error) int {
	switch domain.ErrorKind(err) {
	case domain.KindRoomNotFound:
		return http.StatusNotFound
	case domain.KindRoomExists:
		return http.StatusConflict
	case domain.KindUnsupportedProvider, domain.KindInvalidIdentifier, domain.KindBadPayload:
		return http.StatusBadRequest
	case domain.KindVideoResolution:
		return http.StatusBadGateway
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	if errors.Is(err, core.ErrRoomClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"kind": domain.ErrorKind(err), "error": err.Error()})
}

// GET /api/rooms
func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.orch.Rooms.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// POST /api/rooms
func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": domain.KindBadPayload, "error": err.Error()})
		return
	}
	room, err := h.orch.Rooms.Create(c.Request.Context(), domain.Room{
		Name:        domain.RoomName(req.Name),
		Title:       req.Title,
		Description: req.Description,
		Temporary:   req.Temporary,
		Owner:       c.GetString("client_token"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room.Room())
}

// GET /api/rooms/:name
func (h *handlers) getRoom(c *gin.Context) {
	room, err := h.orch.Rooms.Get(c.Request.Context(), domain.RoomName(c.Param("name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	snap, err := room.Snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DELETE /api/rooms/:name disconnects everyone and stops the live room.
func (h *handlers) deleteRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	if _, ok := h.orch.Rooms.Lookup(name); !ok {
		abortWithError(c, &domain.RoomNotFoundError{Name: name})
		return
	}
	h.orch.EvictRoom(name)
	c.Status(http.StatusNoContent)
}

// GET /api/rooms/:name/members
func (h *handlers) roomMembers(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	room, ok := h.orch.Rooms.Lookup(name)
	if !ok {
		c.JSON(http.StatusOK, []core.MemberDTO{})
		return
	}
	c.JSON(http.StatusOK, room.MembersSnapshot())
}

// GET /api/data/preview?url=...
func (h *handlers) preview(c *gin.Context) {
	var q previewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": domain.KindBadPayload, "error": err.Error()})
		return
	}
	items, err := h.resolver.Resolve(c.Request.Context(), q.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
