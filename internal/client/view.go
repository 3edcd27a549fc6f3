package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/circles/internal/models"
)

// ViewPlacement is the starting view state sent when a view connects.
type ViewPlacement struct {
	Layout models.GraphLayout `json:"layout"`
	Fit    bool               `json:"fit"`
}

// ViewEvent is a message pushed by the server to a live graph view.
type ViewEvent struct {
	Type      string         `json:"type"` // placement, saved or error
	View      string         `json:"view,omitempty"`
	Placement *ViewPlacement `json:"placement,omitempty"`
	Nodes     int            `json:"nodes,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type viewMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	Zoom float64 `json:"zoom,omitempty"`
}

// View is a live graph view. Position, zoom and pan changes are saved by
// the server after a quiet window; Save forces an immediate write.
type View struct {
	ID        string
	Placement ViewPlacement

	conn   *websocket.Conn
	events chan ViewEvent
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// OpenView connects a live graph view and waits for its initial placement.
func (c *Client) OpenView(ctx context.Context) (*View, error) {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/graph/layout/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	var first ViewEvent
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read placement: %w", err)
	}
	if first.Type != "placement" || first.Placement == nil {
		conn.Close()
		if first.Error != "" {
			return nil, fmt.Errorf("open view: %s", first.Error)
		}
		return nil, fmt.Errorf("expected placement, got %s", first.Type)
	}

	v := &View{
		ID:        first.View,
		Placement: *first.Placement,
		conn:      conn,
		events:    make(chan ViewEvent, 16),
		done:      make(chan struct{}),
	}
	go v.readLoop()
	return v, nil
}

func (v *View) readLoop() {
	defer close(v.events)
	for {
		var evt ViewEvent
		if err := v.conn.ReadJSON(&evt); err != nil {
			return
		}
		select {
		case v.events <- evt:
		case <-v.done:
			return
		}
	}
}

// Events delivers save acknowledgements and errors. It is closed when the
// connection ends.
func (v *View) Events() <-chan ViewEvent {
	return v.events
}

func (v *View) send(msg viewMessage) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	if err := v.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// MoveNode reports a dragged node position.
func (v *View) MoveNode(id string, p models.Point) error {
	return v.send(viewMessage{Type: "move", ID: id, X: p.X, Y: p.Y})
}

// SetZoom reports a zoom change.
func (v *View) SetZoom(z float64) error {
	return v.send(viewMessage{Type: "zoom", Zoom: z})
}

// SetPan reports a pan change.
func (v *View) SetPan(p models.Point) error {
	return v.send(viewMessage{Type: "pan", X: p.X, Y: p.Y})
}

// Save asks the server to write the layout now and waits for the outcome.
func (v *View) Save(ctx context.Context) (int, error) {
	if err := v.send(viewMessage{Type: "save"}); err != nil {
		return 0, err
	}
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case evt, ok := <-v.events:
			if !ok {
				return 0, fmt.Errorf("view closed before save completed")
			}
			switch evt.Type {
			case "saved":
				return evt.Nodes, nil
			case "error":
				return 0, fmt.Errorf("save layout: %s", evt.Error)
			}
		}
	}
}

// Close disconnects the view. The server flushes any pending save.
func (v *View) Close() error {
	var err error
	v.closeOnce.Do(func() {
		close(v.done)
		v.writeMu.Lock()
		_ = v.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		v.writeMu.Unlock()
		err = v.conn.Close()
	})
	return err
}
