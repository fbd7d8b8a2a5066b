// Package api 提供撮合服务的 HTTP/WebSocket 客户端
package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/betbot/goclob/internal/events"
)

// EventStream 单个市场的实时事件流连接
type EventStream struct {
	conn   *websocket.Conn
	events chan events.Event
	errs   chan error
}

// StreamEvents 连接某市场的事件 websocket 流（成交、挂单、撤单、
// 结算）。返回的 EventStream 在 ctx 取消或连接断开后关闭 Events
// channel；断线不自动重连，由调用方重建并用 ListTrades 补成交历史。
func (c *Client) StreamEvents(ctx context.Context, marketID uint32) (*EventStream, error) {
	base := c.client.BaseURL
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + fmt.Sprintf("/api/markets/%d/stream", marketID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.String())
	}

	s := &EventStream{
		conn:   conn,
		events: make(chan events.Event, 64),
		errs:   make(chan error, 1),
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go s.readLoop()
	return s, nil
}

func (s *EventStream) readLoop() {
	defer close(s.events)
	for {
		var ev events.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		s.events <- ev
	}
}

// Events 接收事件的 channel
func (s *EventStream) Events() <-chan events.Event {
	return s.events
}

// Errs 连接错误（最多一个，之后 Events 关闭）
func (s *EventStream) Errs() <-chan error {
	return s.errs
}

// Close 关闭连接
func (s *EventStream) Close() error {
	return s.conn.Close()
}
