package syncserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

const internalErrorMessage = "Internal server error"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the sync protocol on api, which is expected to be
// the /api group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sync", h.Sync)
	api.GET("/patient-records", h.ListPatientRecords)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/health", h.Health)
}

func (h *Handler) Sync(c echo.Context) error {
	var evt syncproto.Event
	if err := c.Bind(&evt); err != nil {
		if he := tooLarge(err); he != nil {
			return he
		}
		return c.JSON(http.StatusBadRequest, syncproto.ErrorResponse{Error: "invalid request body"})
	}

	err := h.svc.Apply(c.Request().Context(), evt)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, syncproto.SyncResponse{
			Success: true,
			Message: "Synced " + string(evt.Type),
		})
	case errors.Is(err, ErrUnknownType):
		return c.JSON(http.StatusBadRequest, syncproto.ErrorResponse{Error: "Unknown sync type"})
	case errors.Is(err, ErrInvalidPayload):
		return c.JSON(http.StatusBadRequest, syncproto.ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("error in sync endpoint")
		return c.JSON(http.StatusInternalServerError, syncproto.ErrorResponse{Error: internalErrorMessage})
	}
}

// tooLarge finds a 413 raised by the body limit while the body was being
// read. Bind may wrap it in its own 400.
func tooLarge(err error) *echo.HTTPError {
	for err != nil {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			return nil
		}
		if he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		err = he.Internal
	}
	return nil
}

func (h *Handler) ListPatientRecords(c echo.Context) error {
	records, err := h.svc.PatientRecords(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("error fetching patient records")
		return c.JSON(http.StatusInternalServerError, syncproto.ErrorResponse{Error: internalErrorMessage})
	}
	return c.JSON(http.StatusOK, syncproto.RecordsResponse{Records: records})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	appointments, err := h.svc.Appointments(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("error fetching appointments")
		return c.JSON(http.StatusInternalServerError, syncproto.ErrorResponse{Error: internalErrorMessage})
	}
	return c.JSON(http.StatusOK, syncproto.AppointmentsResponse{Appointments: appointments})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, syncproto.HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
	})
}

// ErrorHandler renders framework errors (404, 405, 413, 429, recovered
// panics) with the protocol's {error} body.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := internalErrorMessage
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok && code < http.StatusInternalServerError {
				msg = m
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, syncproto.ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
