package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/config"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/services"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/utils"
)

// Realtime wiring, set in main (and by tests).
var (
	Hub        *broadcast.Hub
	Presence   *broadcast.PresenceTracker
	Publisher  *services.EventPublisher
	Authorizer broadcast.Authorizer
)

// Typing throttle: track last typing emit per actor to prevent spam
var (
	lastTypingEmit         = make(map[string]time.Time)
	lastTypingMu           sync.Mutex
	typingThrottleDuration = 3 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// clientFrame is one inbound control message from a connected client.
type clientFrame struct {
	Action    string `json:"action"` // subscribe, unsubscribe, typing, presence, ping
	Channel   string `json:"channel,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
	InboxID   string `json:"inboxId,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`
	Status    string `json:"status,omitempty"`
}

// WebSocketHandler upgrades GET /ws and runs the connection until close.
// The token rides the query string (most reliable during the ws handshake).
func WebSocketHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.Query("auth_token") // Fallback
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	claims, err := utils.ValidateToken(token)
	if err != nil || database.IsTokenBlacklisted(claims.GetJTI()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	actor := resolveActor(claims.UserID)
	if actor.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or inactive"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sendTimeout := broadcast.DefaultSendTimeout
	if config.AppConfig != nil && config.AppConfig.SendTimeoutMs > 0 {
		sendTimeout = time.Duration(config.AppConfig.SendTimeoutMs) * time.Millisecond
	}

	conn := broadcast.NewConn(utils.GenerateID(), actor, ws, sendTimeout)
	go conn.Run()

	logger.Info().Str("conn_id", conn.ID()).Str("user_id", actor.ID).Msg("socket connected")

	// Connection counts as the first presence announcement.
	Presence.Touch(actor)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		Presence.Touch(actor)
		return nil
	})

	readLoop(conn, ws, actor)

	// Remove from all channels. Presence drifts to offline via the
	// heartbeat timeout, tolerating brief reconnects.
	Hub.Drop(conn)
	conn.Close()
	clearTypingThrottle(actor.ID)
	logger.Info().Str("conn_id", conn.ID()).Str("user_id", actor.ID).Msg("socket closed")
}

func readLoop(conn *broadcast.Conn, ws *websocket.Conn, actor models.Actor) {
	for {
		var frame clientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Action {
		case "subscribe":
			handleSubscribe(conn, frame)
		case "unsubscribe":
			Hub.Unsubscribe(conn, frame.Channel)
		case "typing":
			handleTyping(actor, frame)
		case "presence":
			handlePresence(actor, frame)
		case "ping":
			Presence.Touch(actor)
		default:
			logger.Debug().Str("action", frame.Action).Msg("unknown socket action")
		}
	}
}

// handleSubscribe registers the connection on a channel. A frame may carry
// auth_token; when present it is re-validated so a token revoked mid-session
// cannot open new channels.
func handleSubscribe(conn *broadcast.Conn, frame clientFrame) {
	if frame.AuthToken != "" {
		claims, err := utils.ValidateToken(frame.AuthToken)
		if err != nil || database.IsTokenBlacklisted(claims.GetJTI()) {
			conn.SendError(broadcast.ErrorFrame{Error: "forbidden", Channel: frame.Channel})
			return
		}
	}

	if err := Hub.Subscribe(conn, frame.Channel); err != nil {
		// Informed, not silently dropped.
		conn.SendError(broadcast.ErrorFrame{Error: "forbidden", Channel: frame.Channel})
	}
}

func handleTyping(actor models.Actor, frame clientFrame) {
	if frame.InboxID == "" {
		return
	}

	// Typing indicators go to inbox members only; same ACL as the channel.
	if !Authorizer.Authorize(actor, broadcast.InboxChannel(frame.InboxID)).Allow {
		return
	}

	// THROTTLE: skip if under the minimum interval for this sender
	lastTypingMu.Lock()
	last, exists := lastTypingEmit[actor.ID]
	throttled := exists && time.Since(last) < typingThrottleDuration && frame.IsTyping
	if !throttled {
		lastTypingEmit[actor.ID] = time.Now()
	}
	lastTypingMu.Unlock()
	if throttled {
		return
	}

	Publisher.UserTyping(actor.ID, frame.InboxID, frame.IsTyping)
}

// clearTypingThrottle drops the throttle entry when a connection closes so
// the map tracks connected actors only.
func clearTypingThrottle(actorID string) {
	lastTypingMu.Lock()
	delete(lastTypingEmit, actorID)
	lastTypingMu.Unlock()
}

func handlePresence(actor models.Actor, frame clientFrame) {
	switch broadcast.PresenceStatus(frame.Status) {
	case broadcast.StatusOnline, broadcast.StatusAway, broadcast.StatusOffline:
		Presence.SetStatus(actor, broadcast.PresenceStatus(frame.Status))
	default:
		Presence.Touch(actor)
	}
}

// GetOnlineUsers handles GET /chat/online — the public presence roster.
func GetOnlineUsers(c *gin.Context) {
	roster := Presence.Roster()
	users := make([]gin.H, 0, len(roster))
	for _, state := range roster {
		users = append(users, gin.H{
			"user_id":      state.Actor.ID,
			"user_type":    string(state.Actor.Role),
			"status":       string(state.Status),
			"last_seen_at": state.LastSeen,
		})
	}
	c.JSON(http.StatusOK, gin.H{"online": users})
}

// resolveActor loads the live identity for a token subject. Role comes from
// the database, not the token, so role changes apply on next connect.
func resolveActor(userID string) models.Actor {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil || !user.IsActive {
		return models.Actor{}
	}
	return user.AsActor()
}
