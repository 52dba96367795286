package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatsync/internal/middleware"
    "github.com/iliyamo/seatsync/internal/model"
    "github.com/iliyamo/seatsync/internal/service"
)

// BookingHandler serves showing reads and the reserve / confirm / release
// operations.  Mutating routes sit behind JWTAuth; the holder identity is
// read with middleware.HolderID and passed to the service untouched.
type BookingHandler struct {
    Service *service.BookingService
}

// NewBookingHandler constructs a BookingHandler and panics on a nil service.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
    if svc == nil {
        panic("nil service passed to NewBookingHandler")
    }
    return &BookingHandler{Service: svc}
}

// showingResponse is the body of every successful seat mutation.  Lease is
// only set by reserve.
type showingResponse struct {
    Showing model.Showing `json:"showing"`
    Lease   *model.Lease  `json:"lease,omitempty"`
}

// legacyRequest is the body form of reserve and confirm used by older
// clients: the showing and seat travel in the body instead of the path.
type legacyRequest struct {
    MovieID    string `json:"movieId"`
    SeatNumber string `json:"seatNumber"`
}

// ListShowings handles GET /v1/showings.
func (h *BookingHandler) ListShowings(c echo.Context) error {
    list := h.Service.ListShowings(c.Request().Context())
    return c.JSON(http.StatusOK, echo.Map{"showings": list})
}

// GetShowing handles GET /v1/showings/:id and returns the full snapshot.
func (h *BookingHandler) GetShowing(c echo.Context) error {
    snap, err := h.Service.GetShowing(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, snap)
}

// Reserve handles POST /v1/showings/:id/seats/:seat/reserve.  It answers
// 201 with the showing and the granted lease; reserving a seat the caller
// already holds returns the same lease.
func (h *BookingHandler) Reserve(c echo.Context) error {
    return h.reserve(c, c.Param("id"), c.Param("seat"))
}

// Confirm handles POST /v1/showings/:id/seats/:seat/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
    return h.confirm(c, c.Param("id"), c.Param("seat"))
}

// Release handles DELETE /v1/showings/:id/seats/:seat/hold.
func (h *BookingHandler) Release(c echo.Context) error {
    snap, err := h.Service.ReleaseSeat(c.Request().Context(), c.Param("id"), c.Param("seat"), middleware.HolderID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, showingResponse{Showing: snap})
}

// LegacyReserve handles POST /v1/bookings/reserve {movieId, seatNumber}.
func (h *BookingHandler) LegacyReserve(c echo.Context) error {
    req, problem := bindLegacy(c)
    if problem != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": problem})
    }
    return h.reserve(c, req.MovieID, req.SeatNumber)
}

// LegacyConfirm handles POST /v1/bookings/confirm {movieId, seatNumber}.
func (h *BookingHandler) LegacyConfirm(c echo.Context) error {
    req, problem := bindLegacy(c)
    if problem != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": problem})
    }
    return h.confirm(c, req.MovieID, req.SeatNumber)
}

func (h *BookingHandler) reserve(c echo.Context, showingID, seat string) error {
    snap, lease, err := h.Service.ReserveSeat(c.Request().Context(), showingID, seat, middleware.HolderID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, showingResponse{Showing: snap, Lease: &lease})
}

func (h *BookingHandler) confirm(c echo.Context, showingID, seat string) error {
    snap, err := h.Service.ConfirmBooking(c.Request().Context(), showingID, seat, middleware.HolderID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, showingResponse{Showing: snap})
}

// bindLegacy decodes a legacy body.  A non-empty second result describes
// what is wrong with it.
func bindLegacy(c echo.Context) (legacyRequest, string) {
    var req legacyRequest
    if err := c.Bind(&req); err != nil {
        return req, "invalid request body"
    }
    req.MovieID = strings.TrimSpace(req.MovieID)
    req.SeatNumber = strings.TrimSpace(req.SeatNumber)
    if req.MovieID == "" || req.SeatNumber == "" {
        return req, "movieId and seatNumber are required"
    }
    return req, ""
}
