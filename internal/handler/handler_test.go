package handler

import (
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatsync/internal/broadcast"
    "github.com/iliyamo/seatsync/internal/ledger"
    "github.com/iliyamo/seatsync/internal/model"
    "github.com/iliyamo/seatsync/internal/reservation"
)

func TestErrorKind(t *testing.T) {
    cases := []struct {
        err    error
        status int
        kind   string
    }{
        {reservation.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable"},
        {reservation.ErrNotHolder, http.StatusForbidden, "not_holder"},
        {reservation.ErrLeaseExpired, http.StatusGone, "lease_expired"},
        {reservation.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
        {fmt.Errorf("%w: s1", ledger.ErrShowingNotFound), http.StatusNotFound, "showing_not_found"},
        {fmt.Errorf("%w: s1/A9", ledger.ErrSeatNotFound), http.StatusNotFound, "seat_not_found"},
        {ledger.ErrShowingExists, http.StatusConflict, "showing_exists"},
        {ledger.ErrInvalidShowing, http.StatusBadRequest, "invalid_showing"},
        {broadcast.ErrClosed, http.StatusServiceUnavailable, "shutting_down"},
        {errors.New("boom"), http.StatusInternalServerError, "internal"},
    }
    for _, tc := range cases {
        status, kind := errorKind(tc.err)
        if status != tc.status || kind != tc.kind {
            t.Errorf("%v: got %d %s, want %d %s", tc.err, status, kind, tc.status, tc.kind)
        }
    }
}

func TestFailHidesInternalErrors(t *testing.T) {
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
    if err := fail(c, errors.New("db password is hunter2")); err != nil {
        t.Fatal(err)
    }
    if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "hunter2") {
        t.Fatalf("got %d %s", rec.Code, rec.Body.String())
    }
}

func liveServer(t *testing.T) (*httptest.Server, *ledger.Ledger, *broadcast.Broadcaster) {
    t.Helper()
    l := ledger.New()
    s := model.Showing{ID: "s1", Title: "Dune", BasePriceCents: 1000, Seats: []model.Seat{{Number: "A1"}}}
    if err := l.Provision(s); err != nil {
        t.Fatal(err)
    }
    bc := broadcast.New(l, 0, nil)
    l.Watch(bc)

    e := echo.New()
    e.GET("/v1/showings/:id/live", NewLiveHandler(bc, nil).Live)
    srv := httptest.NewServer(e)
    t.Cleanup(srv.Close)
    t.Cleanup(bc.Close)
    return srv, l, bc
}

func TestLiveStreamsSnapshotThenDeltas(t *testing.T) {
    srv, l, _ := liveServer(t)
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/showings/s1/live"

    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    if err != nil {
        t.Fatal(err)
    }
    defer conn.Close()
    _ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

    var snap snapshotMessage
    if err := conn.ReadJSON(&snap); err != nil {
        t.Fatal(err)
    }
    if snap.Type != "snapshot" || snap.Showing.ID != "s1" || snap.Showing.Seats[0].Status != model.SeatAvailable {
        t.Fatalf("snapshot = %+v", snap)
    }

    now := time.Now()
    hold := ledger.Transition{Status: model.SeatHeld, Holder: "x", LeaseID: "l1", HeldAt: now, ExpiresAt: now.Add(time.Minute)}
    if _, err := l.CompareAndSet("s1", "A1", model.SeatAvailable, hold); err != nil {
        t.Fatal(err)
    }

    var d model.Delta
    if err := conn.ReadJSON(&d); err != nil {
        t.Fatal(err)
    }
    if d != model.SeatStatusChanged("s1", "A1", model.SeatHeld, 1) {
        t.Fatalf("delta = %+v", d)
    }
}

func TestLiveUnknownShowing(t *testing.T) {
    srv, _, _ := liveServer(t)
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/showings/nope/live"

    _, resp, err := websocket.DefaultDialer.Dial(url, nil)
    if err == nil {
        t.Fatal("expected dial to fail")
    }
    if resp == nil || resp.StatusCode != http.StatusNotFound {
        t.Fatalf("response = %+v", resp)
    }
}

func TestLiveClosesOnShutdown(t *testing.T) {
    srv, _, bc := liveServer(t)
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/showings/s1/live"

    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    if err != nil {
        t.Fatal(err)
    }
    defer conn.Close()
    _ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

    var snap snapshotMessage
    if err := conn.ReadJSON(&snap); err != nil {
        t.Fatal(err)
    }
    bc.Close()

    _, _, err = conn.ReadMessage()
    if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
        t.Fatalf("read after shutdown: %v", err)
    }
}

func TestLiveRefusedAfterShutdown(t *testing.T) {
    srv, _, bc := liveServer(t)
    bc.Close()
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/showings/s1/live"

    _, resp, err := websocket.DefaultDialer.Dial(url, nil)
    if err == nil {
        t.Fatal("expected dial to fail")
    }
    if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
        t.Fatalf("response = %+v", resp)
    }
}
