package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/betbot/goclob/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventStream 把单个市场的事件流（成交、挂单、撤单、结算）
// 推到 websocket 连接上。订阅的是进程内 hub；慢客户端会丢事件，
// 断线后由客户端重连补拉 /trades 历史。
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	if _, err := s.svc.GetMarket(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.hub.Subscribe(id)
	defer cancel()

	// 读循环只用来感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
