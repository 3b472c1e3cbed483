package admin

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/domain/activity"
	"github.com/mediconnect/api/internal/platform/auth"
	"github.com/mediconnect/api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the reporting surface. Every route is admin-only.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	admin := g.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/stats", h.SystemStats)
	admin.GET("/metrics/daily", h.DailyMetrics)
	admin.GET("/activity", h.ActivityFeed)
	admin.GET("/activity/:kind/:id", h.SubjectActivity)
	admin.GET("/health", h.Health)
}

func (h *Handler) SystemStats(c echo.Context) error {
	stats, err := h.svc.SystemStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) DailyMetrics(c echo.Context) error {
	days := 7
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = n
	}
	counts, err := h.svc.DailyMetrics(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"days": days, "appointments_per_day": counts})
}

func (h *Handler) ActivityFeed(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ActivityFeed(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SubjectActivity(c echo.Context) error {
	kind := c.Param("kind")
	if kind != activity.SubjectUser && kind != activity.SubjectAppointment {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be user or appointment")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SubjectActivity(c.Request().Context(), kind, id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Health(c echo.Context) error {
	components := h.svc.Health(c.Request().Context())
	status := http.StatusOK
	for _, comp := range components {
		if comp.Status == "down" {
			status = http.StatusServiceUnavailable
		}
	}
	return c.JSON(status, map[string]interface{}{"components": components})
}
