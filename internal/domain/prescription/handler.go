package prescription

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/platform/auth"
	"github.com/mediconnect/api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/prescriptions", h.Create, auth.RequireRole(auth.RoleDoctor))
	g.GET("/prescriptions/:id", h.Get)
	g.PATCH("/prescriptions/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor))
	g.POST("/prescriptions/:id/refill", h.Refill)
	g.GET("/patients/:id/prescriptions", h.PatientPrescriptions)
	g.GET("/patients/:id/prescriptions/active", h.ActivePrescriptions)
	g.GET("/doctors/:id/prescriptions", h.DoctorPrescriptions)
}

func actorFrom(c echo.Context) (Actor, error) {
	ctx := c.Request().Context()
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	return Actor{ID: id, Role: auth.RoleFromContext(ctx)}, nil
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Refill(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Refill(c.Request().Context(), actor, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PatientPrescriptions(c echo.Context) error {
	return h.listFor(c, true)
}

func (h *Handler) DoctorPrescriptions(c echo.Context) error {
	return h.listFor(c, false)
}

func (h *Handler) listFor(c echo.Context, byPatient bool) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status := Status(c.QueryParam("status"))
	pg := pagination.FromContext(c)

	var items []*Prescription
	var total int
	if byPatient {
		items, total, err = h.svc.PatientPrescriptions(c.Request().Context(), actor, id, status, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.DoctorPrescriptions(c.Request().Context(), actor, id, status, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ActivePrescriptions(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ActivePrescriptions(c.Request().Context(), actor, id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
