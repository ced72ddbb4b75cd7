package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/wsrouter"
)

const messageTimeout = 5 * time.Second

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

// presenceWSMw treats any inbound message as a sign of life, so clients that
// keep talking are not dropped between pongs.
func (c controller) presenceWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			if conn != nil {
				conn.SetReadDeadline(time.Now().Add(readTimeout))
			}

			return next(ctx, conn, payload)
		}
	}
}

// messageTimeoutWSMw bounds a single message so a slow store cannot stall the
// read loop past the read deadline.
func (c controller) messageTimeoutWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx, cancel := context.WithTimeout(ctx, messageTimeout)
			defer cancel()

			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", messageType))

			// heartbeats arrive every few seconds per client
			level := slog.LevelInfo
			if messageType == "ALIVE" {
				level = slog.LevelDebug
			}

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.Log(ctx, level, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"failed", err != nil,
			)

			return err
		}
	}
}
