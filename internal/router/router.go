// Package router registers the HTTP routes of the API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/handler"
	"github.com/iliyamo/seatsync/internal/middleware"
	"github.com/iliyamo/seatsync/internal/model"
)

// Deps carries everything the routes need.  RateLimit may be nil, in which
// case mutating routes are not throttled.
type Deps struct {
	Booking   *handler.BookingHandler
	Live      *handler.LiveHandler
	Health    echo.HandlerFunc
	JWTSecret string
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the public read routes, the live stream, the
// authenticated seat operations and the owner-only provisioning route.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	// Reads and the live stream need no identity.
	pub := e.Group("/v1")
	pub.GET("/showings", d.Booking.ListShowings)
	pub.GET("/showings/:id", d.Booking.GetShowing)
	pub.GET("/showings/:id/live", d.Live.Live)

	// Seat mutations require a holder identity from the JWT.  The rate
	// limiter runs after JWTAuth so buckets can be keyed by user.
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret)}
	if d.RateLimit != nil {
		mw = append(mw, d.RateLimit)
	}
	auth := e.Group("/v1", mw...)
	auth.POST("/showings/:id/seats/:seat/reserve", d.Booking.Reserve)
	auth.POST("/showings/:id/seats/:seat/confirm", d.Booking.Confirm)
	auth.DELETE("/showings/:id/seats/:seat/hold", d.Booking.Release)
	auth.POST("/bookings/reserve", d.Booking.LegacyReserve)
	auth.POST("/bookings/confirm", d.Booking.LegacyConfirm)

	owner := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(model.RoleOwner))
	owner.POST("/showings", d.Booking.ProvisionShowing)
}
