package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/quickmeet/signaling/internal/config"
	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// pingFrame is the literal heartbeat some clients send as a text frame
// instead of a websocket control ping. It is answered before dispatch.
var (
	pingFrame = []byte("ping")
	pongFrame = []byte("pong")
)

// Dispatcher routes an inbound envelope. Implemented outside this
// package so the transport stays free of business wiring.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Conn, env *domain.Envelope)
}

// Gateway authenticates websocket upgrades and owns the per-connection
// read loop. Credentials are checked before the upgrade so a rejected
// client gets a plain 401 instead of a dead socket.
type Gateway struct {
	cfg        config.WSConfig
	tokens     *security.TokenManager
	store      session.Store
	peers      *Peers
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewGateway(
	cfg config.WSConfig,
	tokens *security.TokenManager,
	store session.Store,
	peers *Peers,
	dispatcher Dispatcher,
	log *slog.Logger,
) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		cfg:        cfg,
		tokens:     tokens,
		store:      store,
		peers:      peers,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Handle is the gin handler for GET /ws?token=...
func (g *Gateway) Handle(ctx *gin.Context) {
	const op = "ws.Gateway.Handle"

	log := g.log.With(slog.String("op", op))

	token := ctx.Query("token")
	if token == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	if _, err := g.tokens.Parse(token); err != nil {
		log.Info("token rejected", sl.Err(err))
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sess, err := g.store.GetSessionByToken(ctx.Request.Context(), token)
	if err != nil {
		log.Info("session not found for token")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	sock, err := g.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Error("upgrade failed", sl.Err(err))
		return
	}

	c := NewConn(sock, g.cfg.SendBuffer)
	go c.WritePump(g.cfg.PingPeriod, g.cfg.WriteWait)

	g.peers.Register(sess.UserID, c, sess)

	reqCtx := ctx.Request.Context()
	if sess.CurrentMeetingID != "" {
		g.peers.SendMemberUpdate(reqCtx, sess.CurrentMeetingID, sess.UserID, sess.Nickname)
	}

	g.readLoop(reqCtx, c, sock)

	// The request context may already be dead once the socket drops;
	// the departure notice must still go out.
	g.teardown(context.Background(), c)
}

func (g *Gateway) readLoop(ctx context.Context, c *Conn, sock *websocket.Conn) {
	sock.SetReadLimit(g.cfg.ReadLimit)
	sock.SetReadDeadline(time.Now().Add(g.cfg.IdleTimeout))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(g.cfg.IdleTimeout))
	})

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Info("connection read error", slog.String("conn", c.ID()), sl.Err(err))
			}
			return
		}
		sock.SetReadDeadline(time.Now().Add(g.cfg.IdleTimeout))

		if string(data) == string(pingFrame) {
			c.Send(pongFrame)
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.log.Warn("malformed frame dropped", slog.String("conn", c.ID()), sl.Err(err))
			continue
		}

		g.dispatcher.Dispatch(ctx, c, &env)
	}
}

// teardown runs once per connection regardless of how it died. It only
// announces the departure; business exit state belongs to the meeting
// service and is applied on explicit exit, kick, or finish.
func (g *Gateway) teardown(ctx context.Context, c *Conn) {
	userID, meetingID, nickname := g.peers.Unregister(c)
	c.Close()
	if userID == "" || meetingID == "" {
		return
	}

	env, err := domain.NewGroupEnvelope(domain.MsgExitRoom, meetingID, nil)
	if err != nil {
		g.log.Error("build exit notice", sl.Err(err))
		return
	}
	env.SendUserID = userID
	env.SendNickname = nickname

	if err := g.peers.Publish(ctx, env); err != nil {
		g.log.Error("publish exit notice", slog.String("meeting_id", meetingID), sl.Err(err))
	}
}
