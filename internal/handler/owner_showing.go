package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatsync/internal/service"
)

// ProvisionShowing handles POST /v1/showings.  It is mounted behind JWTAuth
// and RequireRole("OWNER").  The body is a service.ProvisionRequest; either
// "seats" lists the labels or "rows" and "seats_per_row" describe a
// rectangular hall.  It returns 201 with the new showing, 409 when the ID is
// taken and 400 on an invalid layout.
func (h *BookingHandler) ProvisionShowing(c echo.Context) error {
    var req service.ProvisionRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": "invalid request body"})
    }
    snap, err := h.Service.Provision(c.Request().Context(), req)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, snap)
}
