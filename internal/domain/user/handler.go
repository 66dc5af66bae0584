package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hemorec/hemorec/internal/platform/httpapi"
	"github.com/hemorec/hemorec/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints. /me only needs an
// authenticated caller so a fresh account can see its own pending state;
// the rest requires authorization, and listing is admin-only.
func (h *Handler) RegisterRoutes(api *echo.Group, authorized, admin echo.MiddlewareFunc) {
	g := api.Group("/users")
	g.GET("/me", h.Me)
	g.GET("", h.List, authorized, admin)
	g.GET("/:id", h.Get, authorized)
	g.PUT("/:id", h.Update, authorized)
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Current(c.Request().Context())
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpapi.Error(err)
	}
	resp := pagination.NewResponse(items, total, pg, c.Path(), nil)
	return httpapi.Respond(c, http.StatusOK, resp)
}

func (h *Handler) Get(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, u)
}

func (h *Handler) Update(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	u, err := h.svc.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, u)
}
