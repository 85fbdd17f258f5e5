package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/repository"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// PerformanceHandler covers scheduling and browsing.  Create and
// Reschedule run the engine's schedule-conflict check before touching
// the database; the public listing needs neither auth nor the engine.
type PerformanceHandler struct {
	Engine *ticketing.Engine
	Perf   *repository.PerformanceRepo
	Store  *repository.Store
}

func NewPerformanceHandler(engine *ticketing.Engine, perf *repository.PerformanceRepo, store *repository.Store) *PerformanceHandler {
	if engine == nil || perf == nil || store == nil {
		panic("nil dependency passed to NewPerformanceHandler")
	}
	return &PerformanceHandler{Engine: engine, Perf: perf, Store: store}
}

type createPerformanceReq struct {
	ShowID     uint64 `json:"show_id"`
	StartsAt   string `json:"starts_at"` // venue-local wall clock
	PriceCents uint32 `json:"price_cents"`
}

type reschedulePerformanceReq struct {
	StartsAt   string `json:"starts_at"` // venue-local wall clock
	PriceCents uint32 `json:"price_cents"`
}

// parseStartsAt accepts a venue-local wall-clock time.  No offset is
// allowed: start times are naive by design and compared against the
// venue's own clock.
func parseStartsAt(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("starts_at must be venue-local YYYY-MM-DDTHH:MM:SS")
}

// Create handles POST /v1/performances.  STAFF can only schedule at
// their own venue; ADMIN anywhere.  available_seats is seeded with the
// venue's full capacity.
func (h *PerformanceHandler) Create(c echo.Context) error {
	var req createPerformanceReq
	if err := c.Bind(&req); err != nil || req.ShowID == 0 || req.StartsAt == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "show_id and starts_at required"})
	}
	startsAt, err := parseStartsAt(req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	show, err := h.Perf.GetShow(ctx, req.ShowID)
	if err != nil {
		if errors.Is(err, repository.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if scope := institutionScope(c); scope != nil && *scope != show.InstitutionID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	conflict, err := h.Engine.ScheduleConflict(ctx, show.InstitutionID, startsAt, show.DurationMin, 0)
	if err != nil {
		return writeEngineError(c, err)
	}
	if conflict {
		return c.JSON(http.StatusConflict, echo.Map{"error": "schedule conflict with another performance at this venue"})
	}

	inst, err := h.Store.Institution(ctx, show.InstitutionID)
	if err != nil {
		return writeEngineError(c, err)
	}

	p := &model.Performance{
		ShowID:         show.ID,
		StartsAt:       startsAt,
		PriceCents:     req.PriceCents,
		AvailableSeats: inst.Capacity,
	}
	if err := h.Perf.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "performance already scheduled at that time"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":              p.ID,
		"show_id":         p.ShowID,
		"starts_at":       p.StartsAt.Format("2006-01-02T15:04:05"),
		"price_cents":     p.PriceCents,
		"available_seats": p.AvailableSeats,
	})
}

// Reschedule handles PUT /v1/performances/:id.  Moving a performance
// later re-opens the scan window for never-scanned invalidated tickets;
// the listing and validation paths pick that up lazily, and the
// inventory counter is recomputed from still-sold tickets.
func (h *PerformanceHandler) Reschedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid performance id"})
	}
	var req reschedulePerformanceReq
	if err := c.Bind(&req); err != nil || req.StartsAt == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at required"})
	}
	startsAt, err := parseStartsAt(req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	perf, err := h.Perf.GetPerformance(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPerformanceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "performance not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	show, err := h.Perf.GetShow(ctx, perf.ShowID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if scope := institutionScope(c); scope != nil && *scope != show.InstitutionID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	conflict, err := h.Engine.ScheduleConflict(ctx, show.InstitutionID, startsAt, show.DurationMin, id)
	if err != nil {
		return writeEngineError(c, err)
	}
	if conflict {
		return c.JSON(http.StatusConflict, echo.Map{"error": "schedule conflict with another performance at this venue"})
	}

	price := req.PriceCents
	if price == 0 {
		price = perf.PriceCents
	}
	if err := h.Perf.Reschedule(ctx, id, startsAt, price); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSlot):
			return c.JSON(http.StatusConflict, echo.Map{"error": "performance already scheduled at that time"})
		case errors.Is(err, repository.ErrPerformanceNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "performance not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reschedule failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":          id,
		"starts_at":   startsAt.Format("2006-01-02T15:04:05"),
		"price_cents": price,
	})
}

// List handles GET /v1/performances, the public browse view.
func (h *PerformanceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listings, err := h.Perf.ListUpcoming(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"performances": listings})
}
