package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/broadcast"
	"github.com/iliyamo/seatsync/internal/handler"
	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/pricing"
	"github.com/iliyamo/seatsync/internal/reservation"
	"github.com/iliyamo/seatsync/internal/service"
	"github.com/iliyamo/seatsync/internal/utils"
)

const secret = "router-secret"

type mutationBody struct {
	Showing model.Showing `json:"showing"`
	Lease   *model.Lease  `json:"lease"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	l := ledger.New()
	m := reservation.NewManager(l, nil, reservation.Options{LeaseTTL: 2 * time.Minute})
	a := pricing.NewAdjuster(l, pricing.DefaultParams(), nil)
	bc := broadcast.New(l, 0, nil)
	l.Watch(bc)
	t.Cleanup(bc.Close)
	svc := service.NewBookingService(l, m, a, nil, nil)

	e := echo.New()
	RegisterRoutes(e, Deps{
		Booking:   handler.NewBookingHandler(svc),
		Live:      handler.NewLiveHandler(bc, nil),
		Health:    handler.Health(l),
		JWTSecret: secret,
	})
	return e
}

func token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, user, role, 5)
	if err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func do(e *echo.Echo, method, path, tok, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func provision(t *testing.T, e *echo.Echo) {
	t.Helper()
	body := `{"id":"s1","title":"Dune","showtime":"2026-10-20T19:00:00Z","base_price_cents":1000,"seats":["A1","A2"]}`
	rec := do(e, http.MethodPost, "/v1/showings", token(t, "owner", "OWNER"), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("provision: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestProvisionRequiresOwner(t *testing.T) {
	e := newServer(t)
	body := `{"id":"s1","title":"Dune","base_price_cents":1000,"rows":1,"seats_per_row":2}`

	if rec := do(e, http.MethodPost, "/v1/showings", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/showings", token(t, "alice", "CUSTOMER"), body); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: %d", rec.Code)
	}
	provision(t, e)
	rec := do(e, http.MethodPost, "/v1/showings", token(t, "owner", "OWNER"), body)
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Error != "showing_exists" {
		t.Fatalf("duplicate: %d %s", rec.Code, rec.Body.String())
	}
	bad := `{"id":"s2","title":"Dune","base_price_cents":0,"seats":["A1"]}`
	if rec := do(e, http.MethodPost, "/v1/showings", token(t, "owner", "OWNER"), bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid: %d", rec.Code)
	}
}

func TestReadRoutes(t *testing.T) {
	e := newServer(t)
	provision(t, e)

	rec := do(e, http.MethodGet, "/v1/showings", "", "")
	list := decode[struct {
		Showings []model.ShowingSummary `json:"showings"`
	}](t, rec)
	if rec.Code != http.StatusOK || len(list.Showings) != 1 || list.Showings[0].AvailableSeats != 2 {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/v1/showings/s1", "", "")
	snap := decode[model.Showing](t, rec)
	if rec.Code != http.StatusOK || len(snap.Seats) != 2 || snap.Seats[0].Status != model.SeatAvailable {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "holder") {
		t.Fatalf("snapshot leaks holder: %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/v1/showings/nope", "", "")
	if rec.Code != http.StatusNotFound || decode[errorBody](t, rec).Error != "showing_not_found" {
		t.Fatalf("missing: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSeatLifecycleOverHTTP(t *testing.T) {
	e := newServer(t)
	provision(t, e)
	alice, bob := token(t, "alice", "CUSTOMER"), token(t, "bob", "CUSTOMER")

	if rec := do(e, http.MethodPost, "/v1/showings/s1/seats/A1/reserve", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous reserve: %d", rec.Code)
	}

	rec := do(e, http.MethodPost, "/v1/showings/s1/seats/A1/reserve", alice, "")
	res := decode[mutationBody](t, rec)
	if rec.Code != http.StatusCreated || res.Lease == nil || res.Lease.SeatNumber != "A1" || res.Showing.Seats[0].Status != model.SeatHeld {
		t.Fatalf("reserve: %d %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		name   string
		method string
		path   string
		tok    string
		status int
		kind   string
	}{
		{"other holder reserves", http.MethodPost, "/v1/showings/s1/seats/A1/reserve", bob, http.StatusConflict, "seat_unavailable"},
		{"other holder confirms", http.MethodPost, "/v1/showings/s1/seats/A1/confirm", bob, http.StatusForbidden, "not_holder"},
		{"other holder releases", http.MethodDelete, "/v1/showings/s1/seats/A1/hold", bob, http.StatusForbidden, "not_holder"},
		{"unknown seat", http.MethodPost, "/v1/showings/s1/seats/Z9/reserve", bob, http.StatusNotFound, "seat_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.method, tc.path, tc.tok, "")
			if rec.Code != tc.status || decode[errorBody](t, rec).Error != tc.kind {
				t.Fatalf("got %d %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec = do(e, http.MethodPost, "/v1/showings/s1/seats/A1/confirm", alice, "")
	res = decode[mutationBody](t, rec)
	if rec.Code != http.StatusOK || res.Showing.Seats[0].Status != model.SeatBooked || res.Showing.CurrentPriceCents != 1250 {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	if res.Lease != nil {
		t.Fatalf("confirm should not return a lease")
	}

	rec = do(e, http.MethodPost, "/v1/bookings/confirm", alice, `{"movieId":"s1","seatNumber":"A1"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("second confirm: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLegacyRoutes(t *testing.T) {
	e := newServer(t)
	provision(t, e)
	bob := token(t, "bob", "CUSTOMER")

	rec := do(e, http.MethodPost, "/v1/bookings/reserve", bob, `{"movieId":"s1","seatNumber":"A2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("legacy reserve: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodPost, "/v1/bookings/reserve", bob, `{"movieId":"s1"}`)
	if rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Error != "invalid_request" {
		t.Fatalf("missing seat: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodDelete, "/v1/showings/s1/seats/A2/hold", bob, "")
	res := decode[mutationBody](t, rec)
	if rec.Code != http.StatusOK || res.Showing.Seats[1].Status != model.SeatAvailable {
		t.Fatalf("release: %d %s", rec.Code, rec.Body.String())
	}
}
