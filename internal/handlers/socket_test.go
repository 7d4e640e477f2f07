package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/utils"
)

func TestWebSocketHandlerRequiresToken(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	c, w := testContext("GET", "/ws", nil, models.Actor{})
	WebSocketHandler(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = testContext("GET", "/ws?token=not-a-jwt", nil, models.Actor{})
	WebSocketHandler(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleSubscribeRevalidatesToken(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_sub", CoachID: "coach_sub", UserID: "user_sub"})
	actor := models.Actor{ID: "user_sub", Role: models.RoleUser}
	conn := broadcast.NewConn("conn_sub", actor, nil, time.Second)

	// A garbage token blocks the subscribe even though the ACL would allow it.
	handleSubscribe(conn, clientFrame{Channel: "inbox.inbox_sub", AuthToken: "not-a-jwt"})
	assert.False(t, Hub.IsActorSubscribed("inbox.inbox_sub", "user_sub"))

	// A live token passes.
	token, err := utils.GenerateToken("user_sub", "USER")
	assert.NoError(t, err)
	handleSubscribe(conn, clientFrame{Channel: "inbox.inbox_sub", AuthToken: token})
	assert.True(t, Hub.IsActorSubscribed("inbox.inbox_sub", "user_sub"))

	// Without a token the handshake identity stands.
	conn2 := broadcast.NewConn("conn_sub2", actor, nil, time.Second)
	handleSubscribe(conn2, clientFrame{Channel: "conversation.inbox_sub"})
	assert.True(t, Hub.IsActorSubscribed("conversation.inbox_sub", "user_sub"))
}

func TestClearTypingThrottle(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_ct", CoachID: "coach_ct", UserID: "user_ct"})
	coach := models.Actor{ID: "coach_ct", Role: models.RoleCoach}

	handleTyping(coach, clientFrame{InboxID: "inbox_ct", IsTyping: true})
	lastTypingMu.Lock()
	_, tracked := lastTypingEmit["coach_ct"]
	lastTypingMu.Unlock()
	assert.True(t, tracked)

	// Disconnect cleanup removes the entry so the map tracks connected
	// actors only.
	clearTypingThrottle("coach_ct")
	lastTypingMu.Lock()
	_, tracked = lastTypingEmit["coach_ct"]
	lastTypingMu.Unlock()
	assert.False(t, tracked)
}

func TestHandleTypingEnforcesInboxACL(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_ty", CoachID: "coach_ty", UserID: "user_ty"})

	// A connected participant listens on the inbox.
	listener := &captureSub{id: "conn_ty", actor: models.Actor{ID: "user_ty", Role: models.RoleUser}}
	assert.NoError(t, Hub.Subscribe(listener, "inbox.inbox_ty"))

	coach := models.Actor{ID: "coach_ty", Role: models.RoleCoach}
	handleTyping(coach, clientFrame{InboxID: "inbox_ty", IsTyping: true})

	frames := listener.received()
	assert.Len(t, frames, 1)
	assert.Equal(t, broadcast.EventUserTyping, frames[0].Event)
	assert.Equal(t, "coach_ty", frames[0].Data["user_id"])

	// A non-participant's typing never reaches the inbox.
	stranger := models.Actor{ID: "stranger_ty", Role: models.RoleUser}
	handleTyping(stranger, clientFrame{InboxID: "inbox_ty", IsTyping: true})
	assert.Len(t, listener.received(), 1)

	// Repeated typing inside the throttle window is suppressed.
	handleTyping(coach, clientFrame{InboxID: "inbox_ty", IsTyping: true})
	assert.Len(t, listener.received(), 1)

	// A stop-typing signal passes through the throttle.
	handleTyping(coach, clientFrame{InboxID: "inbox_ty", IsTyping: false})
	assert.Len(t, listener.received(), 2)
}

func TestHandlePresenceStatus(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	actor := models.Actor{ID: "user_hp", Role: models.RoleUser}

	handlePresence(actor, clientFrame{Status: "away"})
	state, ok := Presence.Get("user_hp")
	assert.True(t, ok)
	assert.Equal(t, broadcast.StatusAway, state.Status)

	// Unknown status falls back to a plain heartbeat.
	handlePresence(actor, clientFrame{Status: "sleeping"})
	state, _ = Presence.Get("user_hp")
	assert.Equal(t, broadcast.StatusAway, state.Status)
	assert.WithinDuration(t, time.Now(), state.LastSeen, time.Second)
}

func TestGetOnlineUsersRoster(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	Presence.Touch(models.Actor{ID: "user_ro", Role: models.RoleUser})
	Presence.Touch(models.Actor{ID: "coach_ro", Role: models.RoleCoach})

	c, w := testContext("GET", "/api/chat/online", nil, models.Actor{ID: "user_ro", Role: models.RoleUser})
	GetOnlineUsers(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Online []map[string]interface{} `json:"online"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Len(t, resp.Online, 2)
}
