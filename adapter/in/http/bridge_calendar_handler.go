package http

import (
	"time"

	"exchange_bridge/core/domain"
	"exchange_bridge/core/port/in"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

type CalendarHandler struct {
	calendarService in.CalendarService
	daysToFetch     int
	defaultZone     *time.Location
}

func NewCalendarHandler(calendarService in.CalendarService, daysToFetch int, defaultZone *time.Location) *CalendarHandler {
	return &CalendarHandler{
		calendarService: calendarService,
		daysToFetch:     daysToFetch,
		defaultZone:     defaultZone,
	}
}

func (h *CalendarHandler) Register(app fiber.Router) {
	cal := app.Group("/calendar")
	cal.Get("/events", h.ListEvents)
	cal.Get("/events/next", h.NextEvent)
	cal.Post("/events", h.CreateEvent)
	cal.Put("/events/:uid", h.UpdateEvent)
	cal.Delete("/events/:uid", h.DeleteEvent)
	cal.Post("/refresh", h.Refresh)
	cal.Get("/status", h.Status)
}

// =============================================================================
// Wire types
// =============================================================================

// eventTimeBody accepts either a zoned datetime or a bare date, the same
// split the domain model keeps.
type eventTimeBody struct {
	DateTime string `json:"date_time,omitempty"`
	Date     string `json:"date,omitempty"`
}

func (b *eventTimeBody) toDomain(loc *time.Location) (domain.EventTime, error) {
	if b.Date != "" {
		d, err := time.ParseInLocation(dateLayout, b.Date, time.UTC)
		if err != nil {
			return domain.EventTime{}, err
		}
		return domain.Date(d), nil
	}
	t, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		// Accept zone-less values and anchor them in the default zone.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", b.DateTime, loc)
		if err != nil {
			return domain.EventTime{}, err
		}
	}
	return domain.Timed(t), nil
}

type createEventBody struct {
	Summary     string         `json:"summary"`
	Description *string        `json:"description,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Start       *eventTimeBody `json:"start"`
	End         *eventTimeBody `json:"end"`
}

type updateEventBody struct {
	Summary     *string        `json:"summary,omitempty"`
	Description *string        `json:"description,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Start       *eventTimeBody `json:"start,omitempty"`
	End         *eventTimeBody `json:"end,omitempty"`
}

// eventResponse renders an event with date-or-datetime start/end strings.
type eventResponse struct {
	UID         string  `json:"uid"`
	Summary     string  `json:"summary"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	AllDay      bool    `json:"all_day"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	Organizer   *string `json:"organizer,omitempty"`
}

func toEventResponse(ev *domain.Event) eventResponse {
	resp := eventResponse{
		UID:         ev.UID,
		Summary:     ev.Summary,
		AllDay:      ev.IsAllDay,
		Location:    ev.Location,
		Description: ev.Description,
		Organizer:   ev.Organizer,
	}
	if ev.IsAllDay {
		resp.Start = ev.Start.Value.Format(dateLayout)
		resp.End = ev.End.Value.Format(dateLayout)
	} else {
		resp.Start = ev.Start.Value.Format(time.RFC3339)
		resp.End = ev.End.Value.Format(time.RFC3339)
	}
	return resp
}

// =============================================================================
// Handlers
// =============================================================================

// ListEvents returns snapshot events overlapping the requested window,
// defaulting to now through now+daysToFetch.
func (h *CalendarHandler) ListEvents(c *fiber.Ctx) error {
	now := time.Now()
	start := now
	end := now.AddDate(0, 0, h.daysToFetch)

	if startStr := c.Query("start"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return ErrorResponse(c, 400, "invalid start: expected RFC3339")
		}
		start = t
	}
	if endStr := c.Query("end"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return ErrorResponse(c, 400, "invalid end: expected RFC3339")
		}
		end = t
	}
	if !end.After(start) {
		return ErrorResponse(c, 400, "end must be after start")
	}

	events, err := h.calendarService.Events(c.Context(), start, end)
	if err != nil {
		return DomainErrorResponse(c, err, "list events")
	}

	responses := make([]eventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, toEventResponse(&events[i]))
	}
	return SuccessResponse(c, fiber.Map{
		"events": responses,
		"total":  len(responses),
	})
}

// NextEvent returns the first event that has not ended, or null.
func (h *CalendarHandler) NextEvent(c *fiber.Ctx) error {
	event, err := h.calendarService.NextEvent(c.Context())
	if err != nil {
		return DomainErrorResponse(c, err, "next event")
	}
	if event == nil {
		return SuccessResponse(c, fiber.Map{"event": nil})
	}
	resp := toEventResponse(event)
	return SuccessResponse(c, fiber.Map{"event": resp})
}

func (h *CalendarHandler) CreateEvent(c *fiber.Ctx) error {
	var body createEventBody
	if err := c.BodyParser(&body); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if body.Start == nil || body.End == nil {
		return ErrorResponse(c, 400, "start and end are required")
	}

	start, err := body.Start.toDomain(h.defaultZone)
	if err != nil {
		return ErrorResponse(c, 400, "invalid start time")
	}
	end, err := body.End.toDomain(h.defaultZone)
	if err != nil {
		return ErrorResponse(c, 400, "invalid end time")
	}
	if start.AllDay != end.AllDay {
		return ErrorResponse(c, 400, "start and end must both be dates or both be datetimes")
	}
	if !end.Comparable(h.defaultZone).After(start.Comparable(h.defaultZone)) {
		return ErrorResponse(c, 400, "end must be after start")
	}

	req := &domain.EventCreate{
		Summary:     body.Summary,
		Start:       start,
		End:         end,
		Location:    body.Location,
		Description: body.Description,
	}

	uid, err := h.calendarService.CreateEvent(c.Context(), req)
	if err != nil {
		return DomainErrorResponse(c, err, "create event")
	}
	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success:   true,
		Data:      fiber.Map{"uid": uid},
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *CalendarHandler) UpdateEvent(c *fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return ErrorResponse(c, 400, "event uid is required")
	}

	var body updateEventBody
	if err := c.BodyParser(&body); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	patch := &domain.EventPatch{
		Summary:     body.Summary,
		Description: body.Description,
		Location:    body.Location,
	}
	if body.Start != nil {
		start, err := body.Start.toDomain(h.defaultZone)
		if err != nil {
			return ErrorResponse(c, 400, "invalid start time")
		}
		patch.Start = &start
	}
	if body.End != nil {
		end, err := body.End.toDomain(h.defaultZone)
		if err != nil {
			return ErrorResponse(c, 400, "invalid end time")
		}
		patch.End = &end
	}
	if patch.Empty() {
		return ErrorResponse(c, 400, "no fields to update")
	}

	if err := h.calendarService.UpdateEvent(c.Context(), uid, patch); err != nil {
		return DomainErrorResponse(c, err, "update event")
	}
	return SuccessResponse(c, fiber.Map{"uid": uid})
}

func (h *CalendarHandler) DeleteEvent(c *fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return ErrorResponse(c, 400, "event uid is required")
	}

	if err := h.calendarService.DeleteEvent(c.Context(), uid); err != nil {
		return DomainErrorResponse(c, err, "delete event")
	}
	return SuccessResponse(c, fiber.Map{"uid": uid})
}

// Refresh nudges the coordinator to poll outside its fixed interval.
func (h *CalendarHandler) Refresh(c *fiber.Ctx) error {
	h.calendarService.RequestRefresh()
	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success:   true,
		Data:      fiber.Map{"refresh": "requested"},
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *CalendarHandler) Status(c *fiber.Ctx) error {
	return SuccessResponse(c, h.calendarService.Status())
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}
