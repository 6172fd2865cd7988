package monitor

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"quadenc/host/mcu"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// writeWait bounds a single websocket write
const writeWait = time.Second

// ErrResponse renders an error as JSON with a status code
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"error,omitempty"`
}

// Render implements render.Renderer
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrUnavailable is returned while no telemetry has been received
func ErrUnavailable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Telemetry unavailable.",
		ErrorText:      err.Error(),
	}
}

// NewRouter builds the monitor's HTTP API:
//
//	GET /api/state     latest encoder state
//	GET /api/trace     trace entries received so far
//	GET /api/stats     telemetry frame counters
//	GET /api/identity  board identify report
//	GET /ws/state      websocket stream of encoder states
func NewRouter(src Source) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			s, err := src.State()
			if err != nil {
				render.Render(w, r, ErrUnavailable(err))
				return
			}
			render.JSON(w, r, NewStateView(s))
		})

		r.Get("/trace", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, NewTraceView(src.Trace()))
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, src.Stats())
		})

		r.Get("/identity", func(w http.ResponseWriter, r *http.Request) {
			id := src.Identity()
			if id == nil {
				render.Render(w, r, ErrUnavailable(errors.New("board has not identified")))
				return
			}
			render.JSON(w, r, NewIdentityView(*id))
		})
	})

	r.Get("/ws/state", func(w http.ResponseWriter, r *http.Request) {
		StreamStates(w, r, src)
	})

	return r
}

// StreamStates upgrades the request to a websocket and writes every new
// state as a JSON text message until the client goes away.
func StreamStates(w http.ResponseWriter, r *http.Request, src Source) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	states, cancel := src.Subscribe()
	defer cancel()

	// The client sends nothing; a read error means it closed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if s, err := src.State(); err == nil {
		if !writeState(conn, s) {
			return
		}
	}
	for {
		select {
		case s, ok := <-states:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "telemetry closed"))
				return
			}
			if !writeState(conn, s) {
				return
			}
		case <-gone:
			return
		}
	}
}

func writeState(conn *websocket.Conn, s mcu.State) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(NewStateView(s)); err != nil {
		glog.V(1).Infof("[%s] websocket write: %v", conn.RemoteAddr(), err)
		return false
	}
	return true
}
