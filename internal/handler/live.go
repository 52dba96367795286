package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatsync/internal/broadcast"
    "github.com/iliyamo/seatsync/internal/model"
    "github.com/iliyamo/seatsync/pkg/logger"
)

const (
    writeWait  = 10 * time.Second
    pongWait   = 60 * time.Second
    pingPeriod = (pongWait * 9) / 10
    readLimit  = 512
)

// snapshotMessage is the first frame of every live connection.
type snapshotMessage struct {
    Type    string        `json:"type"`
    Showing model.Showing `json:"showing"`
}

// LiveHandler streams a showing over a websocket: one snapshot frame, then
// every delta in order.  When the subscription ends (the client fell behind
// or the server is shutting down) the socket is closed and the client has to
// reconnect for a fresh snapshot.
type LiveHandler struct {
    Broadcaster *broadcast.Broadcaster
    Log         *logger.Logger

    upgrader websocket.Upgrader
}

// NewLiveHandler constructs a LiveHandler.  Any origin is accepted; the
// stream carries no caller-specific data.
func NewLiveHandler(b *broadcast.Broadcaster, log *logger.Logger) *LiveHandler {
    if b == nil {
        panic("nil broadcaster passed to NewLiveHandler")
    }
    if log == nil {
        log = logger.Discard()
    }
    return &LiveHandler{
        Broadcaster: b,
        Log:         log,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            CheckOrigin:     func(*http.Request) bool { return true },
        },
    }
}

// Live handles GET /v1/showings/:id/live.  An unknown showing is answered
// with a plain 404 before the upgrade.
func (h *LiveHandler) Live(c echo.Context) error {
    sub, snap, err := h.Broadcaster.Subscribe(c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    defer sub.Close()

    conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // the upgrader has already written the HTTP error
        return nil
    }
    defer conn.Close()

    log := h.Log.WithShowing(sub.ShowingID).With("subscription", sub.ID)
    log.Debug("live subscriber attached")

    ctx, cancel := context.WithCancel(c.Request().Context())
    defer cancel()
    go readPump(conn, cancel)

    if err := writeJSON(conn, snapshotMessage{Type: "snapshot", Showing: snap}); err != nil {
        return nil
    }

    for {
        nctx, ncancel := context.WithTimeout(ctx, pingPeriod)
        d, err := sub.Next(nctx)
        ncancel()
        switch {
        case err == nil:
            if err := writeJSON(conn, d); err != nil {
                log.Debug("live write failed", "error", err)
                return nil
            }
        case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
            if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
                return nil
            }
        case errors.Is(err, broadcast.ErrSubscriberLagged):
            log.Warn("live subscriber fell behind, closing")
            closeWith(conn, websocket.CloseTryAgainLater, "subscriber fell behind")
            return nil
        case errors.Is(err, broadcast.ErrClosed):
            closeWith(conn, websocket.CloseGoingAway, "server shutting down")
            return nil
        default:
            // client went away
            log.Debug("live subscriber detached")
            return nil
        }
    }
}

// readPump drains client frames so pongs and close frames are processed.
// It cancels the stream once the connection fails or goes quiet.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
    defer cancel()
    conn.SetReadLimit(readLimit)
    _ = conn.SetReadDeadline(time.Now().Add(pongWait))
    conn.SetPongHandler(func(string) error {
        return conn.SetReadDeadline(time.Now().Add(pongWait))
    })
    for {
        if _, _, err := conn.ReadMessage(); err != nil {
            return
        }
    }
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
    _ = conn.SetWriteDeadline(time.Now().Add(writeWait))
    return conn.WriteJSON(v)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
    msg := websocket.FormatCloseMessage(code, reason)
    _ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
