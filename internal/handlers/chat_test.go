package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/config"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/services"
)

// SetupTestDB initializes an in-memory SQLite DB and wires the realtime
// globals the way main does.
func SetupTestDB() {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	db, _ := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	database.DB = db
	database.DB.AutoMigrate(
		&models.User{},
		&models.Inbox{},
		&models.Group{},
		&models.GroupMember{},
		&models.Message{},
		&models.MessageRead{},
		&models.MessageFlag{},
	)

	Authorizer = services.NewChannelAuthorizer(database.DB)
	Hub = broadcast.NewHub(Authorizer)
	Publisher = services.NewEventPublisher(Hub)
	Presence = broadcast.NewPresenceTracker(time.Minute, nil)
	Store = services.NewMessageStore(database.DB, Publisher, Presence, nil)
}

// captureSub stands in for a live websocket connection.
type captureSub struct {
	id    string
	actor models.Actor

	mu     sync.Mutex
	frames []broadcast.Frame
}

func (s *captureSub) ID() string          { return s.id }
func (s *captureSub) Actor() models.Actor { return s.actor }

func (s *captureSub) Send(frame broadcast.Frame) error {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	return nil
}

func (s *captureSub) received() []broadcast.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]broadcast.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func testContext(method, path string, body interface{}, actor models.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	c.Request, _ = http.NewRequest(method, path, &buf)
	c.Request.Header.Set("Content-Type", "application/json")

	c.Set("userId", actor.ID)
	c.Set("actor", actor)
	return c, w
}

func TestSendAndReadDeliveryFlow(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	coach := models.User{ID: "coach1_flow", Username: "coach1_flow", Email: "coach1_flow@example.com", Role: models.RoleCoach}
	user := models.User{ID: "user2_flow", Username: "user2_flow", Email: "user2_flow@example.com", Role: models.RoleUser}
	database.DB.Create(&coach)
	database.DB.Create(&user)
	database.DB.Create(&models.Inbox{ID: "inbox42_flow", CoachID: coach.ID, UserID: user.ID})

	// The user is connected and subscribed to the inbox and its receipt channel.
	sub := &captureSub{id: "conn_flow", actor: user.AsActor()}
	assert.NoError(t, Hub.Subscribe(sub, "inbox.inbox42_flow"))
	assert.NoError(t, Hub.Subscribe(sub, "conversation.inbox42_flow"))

	// Coach sends a message over HTTP.
	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox42_flow", "body": "Hello"}, coach.AsActor())
	SendMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var sendResp struct {
		Message models.Message `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &sendResp)
	assert.NotEmpty(t, sendResp.Message.ID)
	assert.Equal(t, int64(1), sendResp.Message.Seq)

	frames := sub.received()
	assert.Len(t, frames, 1)
	assert.Equal(t, broadcast.EventMessageSent, frames[0].Event)
	assert.Equal(t, "inbox.inbox42_flow", frames[0].Channel)
	assert.Equal(t, "coach1_flow", frames[0].Data["sender_id"])
	assert.Equal(t, "Hello", frames[0].Data["message"])

	// User marks it read; the receipt lands on the conversation channel.
	c, w = testContext("POST", "/api/chat/messages/"+sendResp.Message.ID+"/read", nil, user.AsActor())
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	MarkRead(c)
	assert.Equal(t, http.StatusOK, w.Code)

	frames = sub.received()
	assert.Len(t, frames, 2)
	assert.Equal(t, broadcast.EventMessageRead, frames[1].Event)
	assert.Equal(t, "conversation.inbox42_flow", frames[1].Channel)
	assert.Equal(t, "user2_flow", frames[1].Data["user_id"])

	// Marking read again changes nothing on the wire.
	c, w = testContext("POST", "/api/chat/messages/"+sendResp.Message.ID+"/read", nil, user.AsActor())
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	MarkRead(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, sub.received(), 2)
}

func TestSendMessageRejectsOutsider(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_out", CoachID: "coach_out", UserID: "user_out"})

	stranger := models.Actor{ID: "stranger_out", Role: models.RoleUser}
	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox_out", "body": "hi"}, stranger)
	SendMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMessageValidatesBody(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_vb", CoachID: "coach_vb", UserID: "user_vb"})

	coach := models.Actor{ID: "coach_vb", Role: models.RoleCoach}
	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox_vb", "body": "  "}, coach)
	SendMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessagesEnforcesMembership(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_gm", CoachID: "coach_gm", UserID: "user_gm"})

	coach := models.Actor{ID: "coach_gm", Role: models.RoleCoach}
	c, w := testContext("GET", "/api/chat/messages?inboxId=inbox_gm", nil, coach)
	GetMessages(c)
	assert.Equal(t, http.StatusOK, w.Code)

	stranger := models.Actor{ID: "stranger_gm", Role: models.RoleUser}
	c, w = testContext("GET", "/api/chat/messages?inboxId=inbox_gm", nil, stranger)
	GetMessages(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Neither inboxId nor groupId
	c, w = testContext("GET", "/api/chat/messages", nil, coach)
	GetMessages(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFlagMessageHandler(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_fh", CoachID: "coach_fh", UserID: "user_fh"})

	coach := models.Actor{ID: "coach_fh", Role: models.RoleCoach}
	user := models.Actor{ID: "user_fh", Role: models.RoleUser}

	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox_fh", "body": "questionable"}, coach)
	SendMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)
	var sendResp struct {
		Message models.Message `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &sendResp)

	c, w = testContext("POST", "/api/chat/messages/"+sendResp.Message.ID+"/flag", gin.H{"flagType": "SPAM"}, user)
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	FlagMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var flagResp struct {
		Flag models.MessageFlag `json:"flag"`
	}
	json.Unmarshal(w.Body.Bytes(), &flagResp)
	assert.Equal(t, models.FlagOpen, flagResp.Flag.Status)
	assert.Equal(t, models.FlagSpam, flagResp.Flag.FlagType)

	// Unknown flag type
	c, w = testContext("POST", "/api/chat/messages/"+sendResp.Message.ID+"/flag", gin.H{"flagType": "RUDE"}, user)
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	FlagMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMessageHandler(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	database.DB.Create(&models.Inbox{ID: "inbox_dh", CoachID: "coach_dh", UserID: "user_dh"})

	coach := models.Actor{ID: "coach_dh", Role: models.RoleCoach}
	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox_dh", "body": "typo"}, coach)
	SendMessage(c)
	var sendResp struct {
		Message models.Message `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &sendResp)

	// The other party cannot delete
	user := models.Actor{ID: "user_dh", Role: models.RoleUser}
	c, w = testContext("DELETE", "/api/chat/messages/"+sendResp.Message.ID, nil, user)
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	DeleteMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The sender can
	c, w = testContext("DELETE", "/api/chat/messages/"+sendResp.Message.ID, nil, coach)
	c.Params = gin.Params{{Key: "id", Value: sendResp.Message.ID}}
	DeleteMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetConversations(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	coach := models.User{ID: "coach_gc", Username: "coach_gc", Email: "coach_gc@example.com", Role: models.RoleCoach}
	user := models.User{ID: "user_gc", Username: "user_gc", Email: "user_gc@example.com", Role: models.RoleUser}
	database.DB.Create(&coach)
	database.DB.Create(&user)
	database.DB.Create(&models.Inbox{ID: "inbox_gc", CoachID: coach.ID, UserID: user.ID})

	c, w := testContext("POST", "/api/chat/messages", gin.H{"inboxId": "inbox_gc", "body": "welcome aboard"}, coach.AsActor())
	SendMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = testContext("GET", "/api/chat/conversations", nil, user.AsActor())
	GetConversations(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversations []services.ConversationSummary `json:"conversations"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Len(t, resp.Conversations, 1)
	assert.Equal(t, int64(1), resp.Conversations[0].UnreadCount)
	assert.Equal(t, "welcome aboard", resp.Conversations[0].LastMessage.Body)
}
