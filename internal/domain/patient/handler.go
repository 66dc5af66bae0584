package patient

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
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

// RegisterRoutes mounts the patient endpoints. All routes require an
// authorized account; delete additionally requires admin.
func (h *Handler) RegisterRoutes(api *echo.Group, authorized, admin echo.MiddlewareFunc) {
	g := api.Group("/patients", authorized)
	g.POST("", h.Upsert)
	g.PUT("", h.Upsert)
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.GET("/stats", h.Stats)
	g.GET("/types", h.Types)
	g.GET("/:key", h.Get)
	g.DELETE("/:key", h.Delete, admin)
}

type upsertRequest struct {
	Key       string `json:"key"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	BloodType string `json:"blood_type"`
	Type      string `json:"type"`
}

func (h *Handler) Upsert(c echo.Context) error {
	var req upsertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	in := UpsertInput{
		Code:      strings.TrimSpace(req.Code),
		Name:      strings.TrimSpace(req.Name),
		BloodType: req.BloodType,
		Type:      req.Type,
	}
	if req.Key != "" {
		key, err := uuid.Parse(req.Key)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid key")
		}
		in.Key = key
	}

	p, created, err := h.svc.Upsert(c.Request().Context(), in)
	if err != nil {
		return httpapi.Error(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return httpapi.Respond(c, status, p)
}

func (h *Handler) Get(c echo.Context) error {
	key, err := uuid.Parse(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid key")
	}
	p, err := h.svc.Get(c.Request().Context(), key)
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, p)
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

func (h *Handler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	fields := splitFields(c.QueryParam("fields"))

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), query, fields, pg.Limit, pg.Offset)
	if err != nil {
		return httpapi.Error(err)
	}
	extra := url.Values{"q": {query}}
	if f := c.QueryParam("fields"); f != "" {
		extra.Set("fields", f)
	}
	resp := pagination.NewResponse(items, total, pg, c.Path(), extra)
	return httpapi.Respond(c, http.StatusOK, resp)
}

func (h *Handler) Stats(c echo.Context) error {
	total, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, map[string]map[string]int64{
		"stats": {"all": total},
	})
}

func (h *Handler) Types(c echo.Context) error {
	return httpapi.Respond(c, http.StatusOK, map[string][]string{
		"types":       PatientTypes,
		"blood_types": BloodTypes,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	key, err := uuid.Parse(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid key")
	}
	if err := h.svc.Delete(c.Request().Context(), key); err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, map[string]string{"deleted": key.String()})
}

func splitFields(raw string) []string {
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
