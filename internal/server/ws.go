package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/circles/internal/layout"
	"github.com/raphaelgruber/circles/internal/models"
)

// wsPath is the websocket endpoint of live graph views.
const wsPath = "/graph/layout/ws"

const wsWriteTimeout = 5 * time.Second

// Messages sent by a graph view.
const (
	msgMove = "move"
	msgZoom = "zoom"
	msgPan  = "pan"
	msgSave = "save"
)

// Events sent to a graph view.
const (
	evtPlacement = "placement"
	evtSaved     = "saved"
	evtError     = "error"
)

// ViewMessage is an interaction reported by a graph view.
type ViewMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	Zoom float64 `json:"zoom,omitempty"`
}

// ViewEvent is pushed to a graph view.
type ViewEvent struct {
	Type      string            `json:"type"`
	View      string            `json:"view,omitempty"`
	Placement *layout.Placement `json:"placement,omitempty"`
	Nodes     int               `json:"nodes,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// graphSource provides the graph and the layout blob to live views.
type graphSource interface {
	layout.Store
	GetGraph(ctx context.Context) (*models.GraphResponse, error)
}

// layoutHub runs one layout reconciler per websocket connection. All views
// share the debounce scheduler, keyed by a per-connection id.
type layoutHub struct {
	source   graphSource
	sched    *layout.Scheduler
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func newLayoutHub(source graphSource, sched *layout.Scheduler, logger *slog.Logger) *layoutHub {
	if sched == nil {
		sched = layout.NewScheduler(layout.DefaultDebounce)
	}
	return &layoutHub{
		source: source,
		sched:  sched,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// viewConn serializes writes to one websocket connection.
type viewConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *viewConn) send(evt ViewEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(evt)
}

func (h *layoutHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	key := uuid.New().String()[:8]
	logger := h.logger.With("view", key)
	vc := &viewConn{conn: conn}

	graph, err := h.source.GetGraph(r.Context())
	if err != nil {
		logger.Error("load graph failed", "error", err)
		_ = vc.send(ViewEvent{Type: evtError, Error: err.Error()})
		return
	}

	rec := layout.NewReconciler(key, h.source, h.sched, logger)
	rec.OnSave(func(l models.GraphLayout, err error) {
		evt := ViewEvent{Type: evtSaved, Nodes: len(l.Nodes)}
		if err != nil {
			evt = ViewEvent{Type: evtError, Error: err.Error()}
		}
		if err := vc.send(evt); err != nil {
			logger.Debug("send save event failed", "error", err)
		}
	})
	defer rec.Close()

	placement := rec.Load(r.Context(), *graph)
	if err := vc.send(ViewEvent{Type: evtPlacement, View: key, Placement: &placement}); err != nil {
		logger.Debug("send placement failed", "error", err)
		return
	}
	logger.Info("graph view connected", "nodes", len(graph.Nodes), "fit", placement.Fit)

	for {
		var msg ViewMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("graph view read failed", "error", err)
			}
			break
		}
		h.apply(r.Context(), rec, vc, msg)
	}
	logger.Info("graph view disconnected", "pending_save", rec.Pending())
}

// apply routes one view message to the reconciler.
func (h *layoutHub) apply(ctx context.Context, rec *layout.Reconciler, vc *viewConn, msg ViewMessage) {
	switch msg.Type {
	case msgMove:
		if msg.ID == "" {
			_ = vc.send(ViewEvent{Type: evtError, Error: "move requires a node id"})
			return
		}
		rec.MoveNode(msg.ID, models.Point{X: msg.X, Y: msg.Y})
	case msgZoom:
		rec.SetZoom(msg.Zoom)
	case msgPan:
		rec.SetPan(models.Point{X: msg.X, Y: msg.Y})
	case msgSave:
		// The outcome reaches the view through the save hook.
		_ = rec.SaveNow(ctx)
	default:
		_ = vc.send(ViewEvent{Type: evtError, Error: "unknown message type " + msg.Type})
	}
}
