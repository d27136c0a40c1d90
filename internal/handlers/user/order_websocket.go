package user

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// l'accès est déjà contrôlé par le jeton et la propriété de la commande
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OrderEvents : GET /orders/:id/events, flux websocket des statuts de la commande
func (h *OrderHandler) OrderEvents(c *gin.Context) {
	buyer, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return
	}

	// 404 / 403 avant l'upgrade
	order, err := h.orders.GetForBuyer(c.Request.Context(), buyer, id)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	log := logger.FromContext(ctx, h.log).With(zap.Int64("order_id", id))

	events, err := h.events.SubscribeOrderStatus(ctx, id)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("❌ Erreur upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// lecture : seulement pour détecter la fermeture et les pongs
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}

	if err := write(gin.H{"type": "status", "orderId": order.ID, "status": order.Status}); err != nil {
		return
	}
	log.Debug("🔌 Suivi de commande ouvert")

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := write(gin.H{"type": "status", "orderId": ev.OrderID, "status": ev.Status, "at": ev.At}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
