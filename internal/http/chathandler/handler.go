package chathandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchatgo/internal/services/chat"
)

const apiVersion = "1.0.0"

type Handler struct {
	svc chat.IChatService
}

func New(svc chat.IChatService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/api", h.root)
	r.GET("/health", h.health)
	r.GET("/groups/:id/users", h.groupUsers)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, RootResponse{
		Message: "GroupChat API",
		Status:  "running",
		Version: apiVersion,
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// groupUsers returns the display names currently in a room. Unknown rooms
// answer with an empty list rather than 404; a room with no members does
// not exist by definition.
func (h *Handler) groupUsers(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, GroupUsersResponse{
		GroupID: id,
		Users:   h.svc.Members(id),
	})
}
