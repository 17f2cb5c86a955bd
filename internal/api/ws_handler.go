package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"academyCards/internal/tasks"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 2 * wsPingInterval
	wsWriteWait    = 5 * time.Second
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// validSessionID 允许空值（不需要通知）。
func validSessionID(s string) bool {
	return s == "" || sessionIDPattern.MatchString(s)
}

// WsHandler 把某个会话的导出/打印任务通知从 Redis 转发到浏览器。
type WsHandler struct {
	redisClient    redis.UniversalClient
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

func NewWsHandler(redisClient redis.UniversalClient, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin 未配置白名单时只允许同源。
func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) > 0 {
		return slices.Contains(h.allowedOrigins, origin)
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// GET /v1/ws?session=
// 先订阅再升级：Redis 不可用时直接返回 503，升级后的连接一定能收到通知。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	sessionID := c.Query("session")
	if !sessionIDPattern.MatchString(sessionID) {
		BadRequest(c, "invalid session")
		return
	}
	if h.redisClient == nil {
		Error(c, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("session_id", sessionID),
	)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	channel := tasks.NotifyChannel(sessionID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("subscribe notify channel failed", slog.Any("error", err))
		Error(c, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	hello, _ := json.Marshal(gin.H{"status": "subscribed", "session": sessionID})
	if err := writeFrame(conn, websocket.TextMessage, hello); err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readLoop(conn) })
	g.Go(func() error { return forwardLoop(gctx, conn, pubsub.Channel()) })

	// 任一循环结束都要让另一个退出：关闭连接会打断阻塞中的 ReadMessage。
	go func() {
		<-gctx.Done()
		_ = conn.Close()
	}()

	if err := g.Wait(); err != nil && !isNormalClose(err) {
		log.Info("websocket closed", slog.Any("error", err))
		return
	}
	log.Info("websocket closed")
}

// readLoop 丢弃客户端消息，只维护读超时并感知断开。
func readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

// forwardLoop 把频道消息原样写给客户端，并定时 ping。
func forwardLoop(ctx context.Context, conn *websocket.Conn, messages <-chan *redis.Message) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "notification stream closed"),
					time.Now().Add(wsWriteWait))
				return errors.New("notify channel closed")
			}
			if err := writeFrame(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
