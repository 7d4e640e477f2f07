package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	apperrors "github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/errors"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/utils"
)

// Notifier hands (recipient, title, body) to the push collaborator for
// recipients not connected to the transport. Fire and forget.
type Notifier interface {
	Notify(recipientID, title, body string)
}

// MessageStore owns Message/MessageRead/MessageFlag persistence and
// composes it with the event publisher: every successful mutation triggers
// exactly one publish. Writes are serialized per container so sequence
// numbers stay monotonic within an inbox/group.
type MessageStore struct {
	db        *gorm.DB
	publisher *EventPublisher
	presence  *broadcast.PresenceTracker
	push      Notifier

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMessageStore(db *gorm.DB, publisher *EventPublisher, presence *broadcast.PresenceTracker, push Notifier) *MessageStore {
	return &MessageStore{
		db:        db,
		publisher: publisher,
		presence:  presence,
		push:      push,
		locks:     make(map[string]*sync.Mutex),
	}
}

// containerLock returns the per-container write mutex, creating it lazily.
// Unrelated containers never contend.
func (s *MessageStore) containerLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

type CreateMessageInput struct {
	Sender     models.Actor
	InboxID    *string
	GroupID    *string
	OrgWide    bool
	Body       string
	Attachment string
}

// CreateMessage validates, persists and broadcasts one message. Validation
// failures reject before any persistence or publish. Publish failures never
// roll back the committed row (best-effort, at-most-once delivery).
func (s *MessageStore) CreateMessage(input CreateMessageInput) (*models.Message, error) {
	body, err := utils.SanitizeMessageBody(input.Body)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	if body == "" && strings.TrimSpace(input.Attachment) == "" {
		return nil, apperrors.BadRequest("Message body or attachment required")
	}

	refs := 0
	if input.InboxID != nil && *input.InboxID != "" {
		refs++
	} else {
		input.InboxID = nil
	}
	if input.GroupID != nil && *input.GroupID != "" {
		refs++
	} else {
		input.GroupID = nil
	}
	if input.OrgWide {
		refs++
	}
	if refs != 1 {
		return nil, apperrors.BadRequest("Message must target exactly one inbox, group, or the organization")
	}

	if err := s.resolveContainer(input); err != nil {
		return nil, err
	}

	msg := &models.Message{
		InboxID:       input.InboxID,
		GroupID:       input.GroupID,
		OrgWide:       input.OrgWide,
		SenderID:      input.Sender.ID,
		SenderRole:    input.Sender.Role,
		Body:          body,
		AttachmentURL: strings.TrimSpace(input.Attachment),
		CreatedAt:     time.Now(),
	}

	// Serialize per container: sequence assignment and insert must not
	// interleave with another writer in the same inbox/group.
	lock := s.containerLock(msg.ContainerKey())
	lock.Lock()
	seq, err := s.nextSeq(msg)
	if err == nil {
		msg.Seq = seq
		err = s.db.Create(msg).Error
	}
	lock.Unlock()

	if err != nil {
		return nil, apperrors.Internal("Failed to persist message")
	}

	// Persistence succeeded; exactly one message.sent follows. A delivery
	// fault downstream is logged by the transport, never surfaced here.
	s.publisher.MessageSent(msg)
	s.notifyOffline(msg)
	s.invalidateSummaries(msg)

	return msg, nil
}

// invalidateSummaries drops cached conversation lists for both inbox
// parties after a new message. Group and org sends don't touch the inbox
// summary view.
func (s *MessageStore) invalidateSummaries(msg *models.Message) {
	if msg.InboxID == nil {
		return
	}
	var inbox models.Inbox
	if err := s.db.First(&inbox, "id = ?", *msg.InboxID).Error; err != nil {
		return
	}
	database.CacheInvalidate(ConversationCacheKey(inbox.CoachID))
	database.CacheInvalidate(ConversationCacheKey(inbox.UserID))
}

// resolveContainer verifies the container exists and the sender belongs
// to it.
func (s *MessageStore) resolveContainer(input CreateMessageInput) error {
	switch {
	case input.InboxID != nil:
		var inbox models.Inbox
		if err := s.db.First(&inbox, "id = ?", *input.InboxID).Error; err != nil {
			return apperrors.BadRequest("Inbox does not exist")
		}
		if !inbox.IsParticipant(input.Sender.ID) {
			return apperrors.Forbidden("Sender is not a participant of this inbox")
		}
	case input.GroupID != nil:
		var count int64
		if err := s.db.Model(&models.GroupMember{}).
			Where("group_id = ? AND actor_id = ?", *input.GroupID, input.Sender.ID).
			Count(&count).Error; err != nil || count == 0 {
			var groupCount int64
			s.db.Model(&models.Group{}).Where("id = ?", *input.GroupID).Count(&groupCount)
			if groupCount == 0 {
				return apperrors.BadRequest("Group does not exist")
			}
			return apperrors.Forbidden("Sender is not a member of this group")
		}
	default:
		// Org-wide announcements are an admin action.
		if input.Sender.Role != models.RoleAdmin {
			return apperrors.Forbidden("Only admins can send organization-wide messages")
		}
	}
	return nil
}

func (s *MessageStore) nextSeq(msg *models.Message) (int64, error) {
	var max int64
	query := s.db.Model(&models.Message{}).Select("COALESCE(MAX(seq), 0)")
	switch {
	case msg.InboxID != nil:
		query = query.Where("inbox_id = ?", *msg.InboxID)
	case msg.GroupID != nil:
		query = query.Where("group_id = ?", *msg.GroupID)
	default:
		query = query.Where("org_wide = ?", true)
	}
	if err := query.Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

// MarkRead records a read receipt. Idempotent: the first read wins and
// repeat calls return the stored timestamp without publishing again.
func (s *MessageStore) MarkRead(messageID string, reader models.Actor) (*models.MessageRead, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		return nil, apperrors.NotFound("Message not found")
	}

	var existing models.MessageRead
	err := s.db.First(&existing, "message_id = ? AND reader_id = ?", messageID, reader.ID).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperrors.Internal("Failed to look up read state")
	}

	read := &models.MessageRead{
		MessageID:  messageID,
		ReaderID:   reader.ID,
		ReaderRole: reader.Role,
		ReadAt:     time.Now(),
	}
	if err := s.db.Create(read).Error; err != nil {
		// Concurrent first read: the unique index on (message, reader)
		// decides the winner; return the stored row without publishing.
		if err2 := s.db.First(&existing, "message_id = ? AND reader_id = ?", messageID, reader.ID).Error; err2 == nil {
			return &existing, nil
		}
		return nil, apperrors.Internal("Failed to record read state")
	}

	// Read receipts broadcast on the conversation channel mirror of the
	// inbox. A receipt can never precede its message.sent: the message row
	// was committed (and published) before this path runs.
	if msg.InboxID != nil {
		s.publisher.MessageRead(read, *msg.InboxID)
	}
	database.CacheInvalidate(ConversationCacheKey(reader.ID))

	return read, nil
}

// FlagMessage creates an OPEN moderation flag. The message itself is not
// mutated; the flag event is routed to the admin channel only.
func (s *MessageStore) FlagMessage(messageID string, flagType models.FlagType, flaggedBy models.Actor) (*models.MessageFlag, error) {
	if !models.IsValidFlagType(flagType) {
		return nil, apperrors.BadRequest("Unknown flag type")
	}

	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		return nil, apperrors.NotFound("Message not found")
	}

	flag := &models.MessageFlag{
		MessageID:     messageID,
		FlagType:      flagType,
		FlaggedByID:   flaggedBy.ID,
		FlaggedByRole: flaggedBy.Role,
		Status:        models.FlagOpen,
		CreatedAt:     time.Now(),
	}
	if err := s.db.Create(flag).Error; err != nil {
		return nil, apperrors.Internal("Failed to create flag")
	}

	s.publisher.MessageFlagged(flag)
	return flag, nil
}

// DeleteMessage soft-deletes a message. Only the original sender or an
// admin may delete. Deletes are not part of the broadcast catalog, so no
// event is published.
func (s *MessageStore) DeleteMessage(messageID string, requester models.Actor) error {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		return apperrors.NotFound("Message not found")
	}

	if msg.SenderID != requester.ID && !s.isActiveAdmin(requester.ID) {
		return apperrors.Forbidden("Only the sender or an admin can delete a message")
	}

	if err := s.db.Delete(&msg).Error; err != nil {
		return apperrors.Internal("Failed to delete message")
	}
	return nil
}

func (s *MessageStore) isActiveAdmin(actorID string) bool {
	var count int64
	s.db.Model(&models.User{}).
		Where("id = ? AND role = ? AND is_active = ?", actorID, models.RoleAdmin, true).
		Count(&count)
	return count > 0
}

// ListMessages returns a container's messages in sequence order.
func (s *MessageStore) ListMessages(inboxID, groupID *string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	query := s.db.Preload("Sender").Order("seq asc").Limit(limit)
	switch {
	case inboxID != nil && *inboxID != "":
		query = query.Where("inbox_id = ?", *inboxID)
	case groupID != nil && *groupID != "":
		query = query.Where("group_id = ?", *groupID)
	default:
		return nil, apperrors.BadRequest("inboxId or groupId required")
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, apperrors.Internal("Failed to fetch messages")
	}
	return messages, nil
}

// ConversationSummary is one row of the actor's inbox list.
type ConversationSummary struct {
	Inbox       models.Inbox    `json:"inbox"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

// ConversationCacheKey is the Redis key for an actor's cached summary list.
func ConversationCacheKey(actorID string) string {
	return "conversations:" + actorID
}

// ListConversations returns the actor's inboxes with last message and
// unread count, most recent first.
func (s *MessageStore) ListConversations(actor models.Actor) ([]ConversationSummary, error) {
	var cached []ConversationSummary
	if err := database.CacheGet(ConversationCacheKey(actor.ID), &cached); err == nil {
		return cached, nil
	}

	var inboxes []models.Inbox
	if err := s.db.Preload("Coach").Preload("User").
		Where("coach_id = ? OR user_id = ?", actor.ID, actor.ID).
		Find(&inboxes).Error; err != nil {
		return nil, apperrors.Internal("Failed to fetch conversations")
	}

	summaries := make([]ConversationSummary, 0, len(inboxes))
	for i := range inboxes {
		inbox := inboxes[i]
		summary := ConversationSummary{Inbox: inbox}

		var last models.Message
		if err := s.db.Where("inbox_id = ?", inbox.ID).Order("seq desc").First(&last).Error; err == nil {
			summary.LastMessage = &last
		}

		// Unread: messages from the other party with no read row by me.
		if err := s.db.Model(&models.Message{}).
			Where("inbox_id = ? AND sender_id <> ?", inbox.ID, actor.ID).
			Where("id NOT IN (?)", s.db.Model(&models.MessageRead{}).Select("message_id").Where("reader_id = ?", actor.ID)).
			Count(&summary.UnreadCount).Error; err != nil {
			logger.Warn().Err(err).Str("inbox_id", inbox.ID).Msg("unread count query failed")
		}

		summaries = append(summaries, summary)
	}

	// Most recently active first.
	sort.Slice(summaries, func(i, j int) bool {
		return lastActivity(summaries[i]) > lastActivity(summaries[j])
	})

	database.CacheSet(ConversationCacheKey(actor.ID), summaries, 30*time.Second)
	return summaries, nil
}

func lastActivity(s ConversationSummary) int64 {
	if s.LastMessage == nil {
		return -1
	}
	return s.LastMessage.CreatedAt.UnixNano()
}

// notifyOffline hands offline recipients to the push collaborator after a
// message.sent. Fire and forget: failures are the dispatcher's to log.
func (s *MessageStore) notifyOffline(msg *models.Message) {
	if s.push == nil || s.presence == nil {
		return
	}

	title := "New message"
	body := msg.Body
	if body == "" {
		body = "Sent you an attachment"
	}
	body = utils.TruncateString(body, 120)

	var recipients []string
	switch {
	case msg.InboxID != nil:
		var inbox models.Inbox
		if err := s.db.First(&inbox, "id = ?", *msg.InboxID).Error; err != nil {
			return
		}
		if inbox.CoachID != msg.SenderID {
			recipients = append(recipients, inbox.CoachID)
		}
		if inbox.UserID != msg.SenderID {
			recipients = append(recipients, inbox.UserID)
		}
	case msg.GroupID != nil:
		var members []models.GroupMember
		if err := s.db.Where("group_id = ? AND actor_id <> ?", *msg.GroupID, msg.SenderID).Find(&members).Error; err != nil {
			return
		}
		for _, m := range members {
			recipients = append(recipients, m.ActorID)
		}
	default:
		// Org-wide fan-out goes through scheduled campaigns, not per-message push.
		return
	}

	for _, recipientID := range recipients {
		if s.presence.IsOnline(recipientID) {
			continue
		}
		go s.push.Notify(recipientID, title, body)
	}
}
