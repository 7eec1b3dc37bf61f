package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/cloudevents-bin/internal/handler/param"
	"github.com/webitel/cloudevents-bin/internal/service"
)

const (
	writeWait           = 10 * time.Second
	maxInboundSize      = 4 << 10
	defaultPingInterval = 30 * time.Second
)

// FeedHandler streams a namespace's live records over a WebSocket, one text
// frame per record. Nothing retained before the connection is replayed.
type FeedHandler struct {
	logger       *slog.Logger
	deliverer    service.Deliverer
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewFeedHandler(logger *slog.Logger, deliverer service.Deliverer, pingInterval time.Duration) *FeedHandler {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &FeedHandler{
		logger:    logger,
		deliverer: deliverer,
		upgrader: websocket.Upgrader{
			// The feed is public like the rest of /api.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
	}
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ns := param.Namespace(r)

	// 1. SUBSCRIBE BEFORE THE HANDSHAKE COMPLETES
	// Anything ingested after the client sees the upgrade reaches it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := h.deliverer.Subscribe(ctx, ns)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer h.deliverer.Unsubscribe(sink)

	// 2. UPGRADE TO WEBSOCKET
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WS_UPGRADE_FAILED", "namespace", ns, "err", err)
		return
	}
	defer conn.Close()

	h.logger.Info("WS_OPENED", "namespace", ns, "sink_id", sink.ID())
	defer h.logger.Info("WS_CLOSED", "namespace", ns, "sink_id", sink.ID())

	// 3. READ PUMP: the only way to notice a peer that went away.
	go h.readPump(conn, cancel)

	// 4. MAIN WS PUMP LOOP
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-sink.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return

		case rec := <-sink.Recv():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, rec.Raw()); err != nil {
				h.logger.Warn("WS_SEND_FAILED", "namespace", ns, "sink_id", sink.ID(), "err", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.Debug("WS_PING_FAILED", "namespace", ns, "err", err)
				return
			}
		}
	}
}

func (h *FeedHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})

	// Inbound frames carry no meaning; only errors matter.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
