package transfusion

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hemorec/hemorec/internal/domain/patient"
	"github.com/hemorec/hemorec/internal/platform/httpapi"
	"github.com/hemorec/hemorec/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the transfusion endpoints plus the blood
// vocabulary endpoints. All routes require an authorized account; delete
// additionally requires admin.
func (h *Handler) RegisterRoutes(api *echo.Group, authorized, admin echo.MiddlewareFunc) {
	g := api.Group("/transfusions", authorized)
	g.POST("", h.Upsert)
	g.PUT("", h.Upsert)
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.GET("/stats", h.Stats)
	g.GET("/locals", h.Locals)
	g.GET("/tags", h.TagList)
	g.GET("/:key", h.Get)
	g.DELETE("/:key", h.Delete, admin)

	blood := api.Group("/blood", authorized)
	blood.GET("/types", h.BloodTypes)
	blood.GET("/contents", h.BloodContents)
}

type upsertRequest struct {
	Key         string     `json:"key"`
	Code        string     `json:"code"`
	PatientKey  string     `json:"patient_key"`
	PatientCode string     `json:"patient_code"`
	Date        Date       `json:"date"`
	Local       string     `json:"local"`
	Bags        []BloodBag `json:"bags"`
	Tags        []string   `json:"tags"`
	Text        string     `json:"text"`
}

func (h *Handler) Upsert(c echo.Context) error {
	var req upsertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	in := UpsertInput{
		Code:        strings.TrimSpace(req.Code),
		PatientCode: strings.TrimSpace(req.PatientCode),
		Date:        req.Date,
		Local:       req.Local,
		Bags:        req.Bags,
		Tags:        req.Tags,
		Text:        req.Text,
	}
	if req.Key != "" {
		key, err := uuid.Parse(req.Key)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid key")
		}
		in.Key = key
	}
	if req.PatientKey != "" {
		key, err := uuid.Parse(req.PatientKey)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_key")
		}
		in.PatientKey = key
	}

	t, created, err := h.svc.Upsert(c.Request().Context(), in)
	if err != nil {
		return httpapi.Error(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return httpapi.Respond(c, status, t)
}

func (h *Handler) Get(c echo.Context) error {
	key, err := uuid.Parse(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid key")
	}
	t, err := h.svc.Get(c.Request().Context(), key)
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, t)
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
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpapi.Error(err)
	}
	return httpapi.Respond(c, http.StatusOK, map[string]map[string]int64{"stats": stats})
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

func (h *Handler) Locals(c echo.Context) error {
	return httpapi.Respond(c, http.StatusOK, Locals)
}

func (h *Handler) TagList(c echo.Context) error {
	return httpapi.Respond(c, http.StatusOK, Tags)
}

func (h *Handler) BloodTypes(c echo.Context) error {
	return httpapi.Respond(c, http.StatusOK, patient.BloodTypes)
}

func (h *Handler) BloodContents(c echo.Context) error {
	return httpapi.Respond(c, http.StatusOK, BloodContents)
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
