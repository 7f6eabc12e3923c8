package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/renalflow/renalflow/internal/domain/machine"
	"github.com/renalflow/renalflow/internal/domain/prescription"
	"github.com/renalflow/renalflow/internal/domain/slot"
	"github.com/renalflow/renalflow/internal/platform/auth"
	"github.com/renalflow/renalflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole("admin", "doctor", "nurse"))
	clinical.POST("/sessions", h.Create)
	clinical.POST("/sessions/recurring", h.CreateRecurring)
	clinical.GET("/sessions", h.List)
	clinical.GET("/sessions/today", h.Today)
	clinical.GET("/sessions/stats", h.GetStats)
	clinical.GET("/sessions/:id", h.Get)
	clinical.GET("/sessions/:id/details", h.GetDetails)
	clinical.PATCH("/sessions/:id", h.UpdateAssignment)
	clinical.GET("/sessions/recurrence-groups/:groupId", h.ListByGroup)
	clinical.GET("/patients/:patientId/sessions", h.ListByPatient)

	clinical.POST("/sessions/:id/check-in", h.CheckIn)
	clinical.POST("/sessions/:id/start", h.Start)
	clinical.POST("/sessions/:id/complete", h.Complete)
	clinical.POST("/sessions/:id/cancel", h.Cancel)

	clinical.POST("/sessions/:id/records", h.AddRecord)
	clinical.GET("/sessions/:id/records", h.ListRecords)
	clinical.POST("/sessions/:id/incidents", h.AddIncident)
	clinical.POST("/sessions/:id/medications", h.AddMedication)
	clinical.POST("/sessions/:id/consumables", h.AddConsumable)
	clinical.POST("/sessions/:id/signatures", h.AddSignature)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) CreateRecurring(c echo.Context) error {
	var in RecurringInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sessions, err := h.svc.CreateRecurring(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, sessions)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) GetDetails(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDetails(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateAssignment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in AssignmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.UpdateAssignment(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// List serves ?from=YYYY-MM-DD&to=YYYY-MM-DD date-window queries.
func (h *Handler) List(c echo.Context) error {
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from is required, format YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to is required, format YYYY-MM-DD")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDateRange(c.Request().Context(), from, to.AddDate(0, 0, 1), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Today(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Today(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByGroup(c echo.Context) error {
	groupID, err := uuid.Parse(c.Param("groupId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid group id")
	}
	items, err := h.svc.ListByRecurrenceGroup(c.Request().Context(), groupID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Session{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetStats(c echo.Context) error {
	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from, format YYYY-MM-DD")
		}
		from = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to, format YYYY-MM-DD")
		}
		end := t.AddDate(0, 0, 1)
		to = &end
	}
	st, err := h.svc.GetStats(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Start(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		MachineID *uuid.UUID `json:"machine_id,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Start(c.Request().Context(), id, body.MachineID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		CancelledBy uuid.UUID `json:"cancelled_by"`
		Reason      string    `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Cancel(c.Request().Context(), id, body.CancelledBy, body.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) AddRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.AddRecord(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListRecords(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddIncident(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in IncidentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inc, err := h.svc.AddIncident(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, inc)
}

func (h *Handler) AddMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.AddMedication(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) AddConsumable(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in ConsumableInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons, err := h.svc.AddConsumable(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) AddSignature(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in SignatureInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sg, err := h.svc.AddSignature(c.Request().Context(), id, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, sg)
}

func toHTTPError(err error) error {
	var (
		transition *InvalidTransitionError
		invalid    *InvalidInputError
	)
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrRecordNotFound),
		errors.Is(err, machine.ErrNotFound),
		errors.Is(err, prescription.ErrNotFound),
		errors.Is(err, slot.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &transition),
		errors.Is(err, ErrSessionNotActive),
		errors.Is(err, machine.ErrUnavailable),
		errors.Is(err, machine.ErrIsolationMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
