package ehr

import (
	"net/http"
	"time"

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
	g.POST("/records", h.Create, auth.RequireRole(auth.RoleDoctor))
	g.GET("/records/search", h.Search)
	g.GET("/records/:id", h.Get)
	g.PUT("/records/:id", h.Update, auth.RequireRole(auth.RoleDoctor))
	g.GET("/patients/:id/history", h.PatientHistory)
	g.GET("/patients/:id/statistics", h.PatientStatistics)
	g.GET("/doctors/:id/records", h.DoctorRecords)
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
	rec, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
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
	rec, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Update(c.Request().Context(), actor, id, in)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientHistory(c.Request().Context(), actor, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DoctorRecords(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.DoctorRecords(c.Request().Context(), actor, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	f := SearchFilter{Diagnosis: c.QueryParam("diagnosis")}
	if v := c.QueryParam("patient_id"); v != "" {
		f.PatientID, err = uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	if v := c.QueryParam("from"); v != "" {
		f.From, err = time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		f.To, err = time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) PatientStatistics(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	stats, err := h.svc.PatientStatistics(c.Request().Context(), actor, patientID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
