package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

type ChatRepository struct{}

func NewChatRepository() *ChatRepository { return &ChatRepository{} }

// PrivatePairKey builds the unique key for a private chat between two admins:
// both ids sorted and joined, so the pair maps to the same key regardless of
// who initiates.
func PrivatePairKey(adminID1, adminID2 string) string {
	ids := []string{adminID1, adminID2}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Create inserts a chat together with its metadata row (numbering starts at 0,
// the first message gets number 1). pairKey is non-nil only for private chats.
func (r *ChatRepository) Create(ctx context.Context, db DB, chatType model.ChatType, pairKey *string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	c := &model.Chat{
		ID:        uuid.New().String(),
		ChatType:  chatType,
		PairKey:   pairKey,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(ctx,
		`INSERT INTO chats (id, chat_type, pair_key, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.ChatType, c.PairKey, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.Create: %w", err)
	}
	_, err = db.Exec(ctx,
		`INSERT INTO chat_metadata (chat_id, last_message_id, last_message_number, updated_at)
		 VALUES ($1, NULL, 0, $2)`,
		c.ID, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.Create metadata: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, db DB, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	err := db.QueryRow(ctx,
		`SELECT id, chat_type, pair_key, created_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.ChatType, &c.PairKey, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) FindPrivateChat(ctx context.Context, db DB, adminID1, adminID2 string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindPrivateChat", time.Now())()
	c := &model.Chat{}
	err := db.QueryRow(ctx,
		`SELECT id, chat_type, pair_key, created_at FROM chats
		 WHERE chat_type = 'private' AND pair_key = $1`,
		PrivatePairKey(adminID1, adminID2),
	).Scan(&c.ID, &c.ChatType, &c.PairKey, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindPrivateChat: %w", err)
	}
	return c, nil
}

// LockMetadata takes the chat's metadata row FOR UPDATE. This is the
// serialization point for everything that assigns message numbers or mutates
// membership: concurrent operations on the same chat queue up here, unrelated
// chats proceed in parallel. Only meaningful inside a transaction.
func (r *ChatRepository) LockMetadata(ctx context.Context, db DB, chatID string) (*model.ChatMetadata, error) {
	defer logger.DeferLogDuration("chat.LockMetadata", time.Now())()
	md := &model.ChatMetadata{}
	err := db.QueryRow(ctx,
		`SELECT chat_id, last_message_id, last_message_number, updated_at
		 FROM chat_metadata WHERE chat_id = $1 FOR UPDATE`, chatID,
	).Scan(&md.ChatID, &md.LastMessageID, &md.LastMessageNumber, &md.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.LockMetadata: %w", err)
	}
	return md, nil
}

func (r *ChatRepository) GetMetadata(ctx context.Context, db DB, chatID string) (*model.ChatMetadata, error) {
	defer logger.DeferLogDuration("chat.GetMetadata", time.Now())()
	md := &model.ChatMetadata{}
	err := db.QueryRow(ctx,
		`SELECT chat_id, last_message_id, last_message_number, updated_at
		 FROM chat_metadata WHERE chat_id = $1`, chatID,
	).Scan(&md.ChatID, &md.LastMessageID, &md.LastMessageNumber, &md.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetMetadata: %w", err)
	}
	return md, nil
}

// UpdateMetadata advances the last-message pointer. Callers hold the
// LockMetadata lock.
func (r *ChatRepository) UpdateMetadata(ctx context.Context, db DB, chatID, messageID string, number int64) error {
	defer logger.DeferLogDuration("chat.UpdateMetadata", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE chat_metadata SET last_message_id = $1, last_message_number = $2, updated_at = $3
		 WHERE chat_id = $4`,
		messageID, number, time.Now().UTC(), chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.UpdateMetadata: %w", err)
	}
	return nil
}

func (r *ChatRepository) CreateGroupInfo(ctx context.Context, db DB, chatID, name, ownerMemberID string) (*model.GroupChatInfo, error) {
	defer logger.DeferLogDuration("chat.CreateGroupInfo", time.Now())()
	_, err := db.Exec(ctx,
		`INSERT INTO group_chat_info (chat_id, name, owner_member_id) VALUES ($1, $2, $3)`,
		chatID, name, ownerMemberID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.CreateGroupInfo: %w", err)
	}
	return &model.GroupChatInfo{ChatID: chatID, Name: name, OwnerMemberID: ownerMemberID}, nil
}

func (r *ChatRepository) GetGroupInfo(ctx context.Context, db DB, chatID string) (*model.GroupChatInfo, error) {
	defer logger.DeferLogDuration("chat.GetGroupInfo", time.Now())()
	g := &model.GroupChatInfo{}
	err := db.QueryRow(ctx,
		`SELECT chat_id, name, owner_member_id FROM group_chat_info WHERE chat_id = $1`, chatID,
	).Scan(&g.ChatID, &g.Name, &g.OwnerMemberID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetGroupInfo: %w", err)
	}
	return g, nil
}

func (r *ChatRepository) CreateQuestInfo(ctx context.Context, db DB, chatID, questID string, responseID *string) (*model.QuestChatInfo, error) {
	defer logger.DeferLogDuration("chat.CreateQuestInfo", time.Now())()
	_, err := db.Exec(ctx,
		`INSERT INTO quest_chat_info (chat_id, quest_id, response_id, status) VALUES ($1, $2, $3, $4)`,
		chatID, questID, responseID, model.QuestChatStatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.CreateQuestInfo: %w", err)
	}
	return &model.QuestChatInfo{ChatID: chatID, QuestID: questID, ResponseID: responseID, Status: model.QuestChatStatusOpen}, nil
}

func (r *ChatRepository) GetQuestInfo(ctx context.Context, db DB, chatID string) (*model.QuestChatInfo, error) {
	defer logger.DeferLogDuration("chat.GetQuestInfo", time.Now())()
	q := &model.QuestChatInfo{}
	err := db.QueryRow(ctx,
		`SELECT chat_id, quest_id, response_id, status FROM quest_chat_info WHERE chat_id = $1`, chatID,
	).Scan(&q.ChatID, &q.QuestID, &q.ResponseID, &q.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetQuestInfo: %w", err)
	}
	return q, nil
}

func (r *ChatRepository) FindQuestChat(ctx context.Context, db DB, questID string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindQuestChat", time.Now())()
	c := &model.Chat{}
	err := db.QueryRow(ctx,
		`SELECT c.id, c.chat_type, c.pair_key, c.created_at
		 FROM chats c JOIN quest_chat_info q ON q.chat_id = c.id
		 WHERE q.quest_id = $1`, questID,
	).Scan(&c.ID, &c.ChatType, &c.PairKey, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindQuestChat: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) SetQuestStatus(ctx context.Context, db DB, chatID string, status model.QuestChatStatus) error {
	defer logger.DeferLogDuration("chat.SetQuestStatus", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE quest_chat_info SET status = $1 WHERE chat_id = $2`, status, chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.SetQuestStatus: %w", err)
	}
	return nil
}

// ListForAdmin returns the admin's active chats ordered by last activity, with
// per-chat unread count and starred flag for the list view.
func (r *ChatRepository) ListForAdmin(ctx context.Context, db DB, adminID string, limit, offset int) ([]model.ChatPreview, error) {
	defer logger.DeferLogDuration("chat.ListForAdmin", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT c.id, c.chat_type, c.pair_key, c.created_at,
		        COALESCE(s.unread_count, 0),
		        EXISTS(SELECT 1 FROM starred_chats sc WHERE sc.chat_id = c.id AND sc.admin_id = $1)
		 FROM chats c
		 JOIN chat_members m ON m.chat_id = c.id AND m.admin_id = $1 AND m.status = 'active'
		 JOIN chat_metadata md ON md.chat_id = c.id
		 LEFT JOIN chat_member_states s ON s.chat_member_id = m.id
		 ORDER BY md.updated_at DESC
		 LIMIT $2 OFFSET $3`, adminID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListForAdmin query: %w", err)
	}
	defer rows.Close()

	previews := make([]model.ChatPreview, 0, limit)
	for rows.Next() {
		var p model.ChatPreview
		if err := rows.Scan(&p.Chat.ID, &p.Chat.ChatType, &p.Chat.PairKey, &p.Chat.CreatedAt,
			&p.UnreadCount, &p.Starred); err != nil {
			return nil, fmt.Errorf("chatRepo.ListForAdmin scan: %w", err)
		}
		previews = append(previews, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListForAdmin rows: %w", err)
	}
	return previews, nil
}
