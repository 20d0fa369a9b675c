package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.log))

	r.GET("/health", h.Health)

	authn := RequireAuth(h.auth)

	a := r.Group("/auth")
	{
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/refresh", h.Refresh)
		a.POST("/logout", authn, h.Logout)
		// Creating a role is open like registration; reading roles needs a caller.
		a.POST("/roles", h.CreateRole)
		a.GET("/roles", authn, h.ListRoles)
	}

	u := r.Group("/users", authn)
	{
		u.GET("/:username", h.GetUser)
		u.POST("/:username/roles", h.AddUserToRole)
		u.DELETE("/:username/roles", h.RemoveUserFromRole)
		u.POST("/:username/status", h.SaveStatus)
		u.GET("/:username/status", h.LatestStatus)
	}

	return r
}
