package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatsync/internal/broadcast"
    "github.com/iliyamo/seatsync/internal/ledger"
    "github.com/iliyamo/seatsync/internal/reservation"
)

// errorKind maps a core error to its HTTP status and the machine readable
// kind clients switch on.
func errorKind(err error) (int, string) {
    switch {
    case errors.Is(err, reservation.ErrUnauthenticated):
        return http.StatusUnauthorized, "unauthenticated"
    case errors.Is(err, reservation.ErrSeatUnavailable):
        return http.StatusConflict, "seat_unavailable"
    case errors.Is(err, reservation.ErrNotHolder):
        return http.StatusForbidden, "not_holder"
    case errors.Is(err, reservation.ErrLeaseExpired):
        return http.StatusGone, "lease_expired"
    case errors.Is(err, ledger.ErrShowingNotFound):
        return http.StatusNotFound, "showing_not_found"
    case errors.Is(err, ledger.ErrSeatNotFound):
        return http.StatusNotFound, "seat_not_found"
    case errors.Is(err, ledger.ErrShowingExists):
        return http.StatusConflict, "showing_exists"
    case errors.Is(err, ledger.ErrInvalidShowing):
        return http.StatusBadRequest, "invalid_showing"
    case errors.Is(err, broadcast.ErrClosed):
        return http.StatusServiceUnavailable, "shutting_down"
    case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
        return http.StatusServiceUnavailable, "cancelled"
    }
    return http.StatusInternalServerError, "internal"
}

// fail writes err as {"error": kind, "message": ...}.  Internal errors do not
// leak their text.
func fail(c echo.Context, err error) error {
    status, kind := errorKind(err)
    msg := err.Error()
    if status == http.StatusInternalServerError {
        msg = "internal error"
    }
    return c.JSON(status, echo.Map{"error": kind, "message": msg})
}
