package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// ShowingCounter reports how many showings are loaded.
type ShowingCounter interface {
    ShowingIDs() []string
}

// Health is the check used by load balancers and monitoring.  It answers 200
// with the number of showings in the ledger once the process is serving.
func Health(l ShowingCounter) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"status": "ok", "showings": len(l.ShowingIDs())})
    }
}
