package publisher

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rickgao/tcplink/internal/model"
)

// IngestMessage is one event sent over the ingest WebSocket.
type IngestMessage struct {
	Class   string `json:"class"`
	Payload string `json:"payload"`
}

// IngestStats holds ingest counters.
type IngestStats struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// IngestHandler upgrades to a WebSocket and delivers every valid text
// message. Malformed messages are logged and skipped; the socket stays open.
type IngestHandler struct {
	target   Deliverer
	upgrader websocket.Upgrader
	maxSize  int64
	logger   *slog.Logger

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewIngestHandler creates an IngestHandler. maxMessageSize <= 0 means no limit.
func NewIngestHandler(target Deliverer, maxMessageSize int64, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		target: target,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		maxSize: maxMessageSize,
		logger:  logger,
	}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ingest upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	if h.maxSize > 0 {
		conn.SetReadLimit(h.maxSize)
	}

	logger := h.logger.With("remote", r.RemoteAddr)
	logger.Info("ingest client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("ingest read failed", "err", err)
			}
			logger.Info("ingest client disconnected")
			return
		}
		if msgType != websocket.TextMessage {
			h.rejected.Add(1)
			continue
		}
		h.handle(logger, data)
	}
}

func (h *IngestHandler) handle(logger *slog.Logger, data []byte) {
	var msg IngestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.rejected.Add(1)
		logger.Warn("ingest message rejected", "err", err)
		return
	}
	if msg.Class == "" {
		h.rejected.Add(1)
		logger.Warn("ingest message rejected", "err", model.ErrInvalidClass)
		return
	}

	n := h.target.DeliverEvent(model.SubscriptionClass(msg.Class), []byte(msg.Payload))
	h.accepted.Add(1)
	logger.Debug("event ingested", "class", msg.Class, "sessions", n)
}

// Stats returns current counters.
func (h *IngestHandler) Stats() IngestStats {
	return IngestStats{
		Accepted: h.accepted.Load(),
		Rejected: h.rejected.Load(),
	}
}
