package repository_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
	"github.com/WorkQuest/admin-backend-sub000/internal/testdb"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	pool, cleanup, err = testdb.Start()
	if err != nil {
		log.Printf("testdb: %v", err)
		os.Exit(1)
	}
	code := m.Run()
	cleanup()
	os.Exit(code)
}

var (
	chatRepo   = repository.NewChatRepository()
	memberRepo = repository.NewMemberRepository()
	msgRepo    = repository.NewMessageRepository()
	starRepo   = repository.NewStarredRepository()
	dispRepo   = repository.NewDisputeRepository()
)

func seedAdmin(t *testing.T) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO admins (id, email, first_name, last_name) VALUES ($1, $2, 'Test', 'Admin')`,
		id, id+"@example.com",
	)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return id
}

// newGroupChat создаёт групповой чат с участниками и возвращает чат и их member id.
func newGroupChat(t *testing.T, adminIDs ...string) (*model.Chat, []repository.MemberChange) {
	t.Helper()
	ctx := context.Background()
	chat, err := chatRepo.Create(ctx, pool, model.ChatTypeGroup, nil)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	changes, err := memberRepo.AddOrRestoreMembers(ctx, pool, chat.ID, adminIDs, nil, 0)
	if err != nil {
		t.Fatalf("add members: %v", err)
	}
	return chat, changes
}

func appendText(t *testing.T, chatID, senderMemberID string, number int64, text string) *model.Message {
	t.Helper()
	ctx := context.Background()
	msg, err := msgRepo.AppendText(ctx, pool, chatID, senderMemberID, number, text)
	if err != nil {
		t.Fatalf("append text: %v", err)
	}
	if err := chatRepo.UpdateMetadata(ctx, pool, chatID, msg.ID, number); err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	return msg
}

func TestRestoreKeepsMemberIdentity(t *testing.T) {
	ctx := context.Background()
	a, b := seedAdmin(t), seedAdmin(t)
	chat, changes := newGroupChat(t, a, b)
	memberA, memberB := changes[0].Member, changes[1].Member

	msg1 := appendText(t, chat.ID, memberA.ID, 1, "hello")
	msg2 := appendText(t, chat.ID, memberA.ID, 2, "still here?")

	if err := memberRepo.RemoveMember(ctx, pool, memberB.ID, model.DeletionReasonRemoved, &msg2.ID, msg2.Number); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if _, err := memberRepo.GetState(ctx, pool, memberB.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("state after removal: want ErrNotFound, got %v", err)
	}
	d, err := memberRepo.GetDeletion(ctx, pool, memberB.ID)
	if err != nil {
		t.Fatalf("get deletion: %v", err)
	}
	if d.Reason != model.DeletionReasonRemoved || d.BeforeDeletionMessageNumber != 2 {
		t.Fatalf("deletion = %+v, want reason=removed cutoff=2", d)
	}

	msg3 := appendText(t, chat.ID, memberA.ID, 3, "welcome back")
	restored, err := memberRepo.AddOrRestoreMembers(ctx, pool, chat.ID, []string{b}, &msg3.ID, msg3.Number)
	if err != nil {
		t.Fatalf("restore member: %v", err)
	}
	if len(restored) != 1 || !restored[0].Restored {
		t.Fatalf("restore = %+v, want one restored change", restored)
	}
	if restored[0].Member.ID != memberB.ID {
		t.Fatalf("restored member id = %s, want original %s", restored[0].Member.ID, memberB.ID)
	}
	if _, err := memberRepo.GetDeletion(ctx, pool, memberB.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("deletion after restore: want ErrNotFound, got %v", err)
	}
	state, err := memberRepo.GetState(ctx, pool, memberB.ID)
	if err != nil {
		t.Fatalf("state after restore: %v", err)
	}
	if state.UnreadCount != 0 || state.LastReadMessageNumber != 3 {
		t.Fatalf("restored state = %+v, want unread=0 at message 3", state)
	}
	_ = msg1
}

func TestAddMembersRejectsActiveMember(t *testing.T) {
	a, b := seedAdmin(t), seedAdmin(t)
	chat, _ := newGroupChat(t, a, b)
	_, err := memberRepo.AddOrRestoreMembers(context.Background(), pool, chat.ID, []string{b}, nil, 0)
	if !errors.Is(err, repository.ErrAlreadyMember) {
		t.Fatalf("want ErrAlreadyMember, got %v", err)
	}
}

func TestRemoveMemberTwice(t *testing.T) {
	a, b := seedAdmin(t), seedAdmin(t)
	_, changes := newGroupChat(t, a, b)
	memberB := changes[1].Member
	ctx := context.Background()
	if err := memberRepo.RemoveMember(ctx, pool, memberB.ID, model.DeletionReasonLeft, nil, 0); err != nil {
		t.Fatalf("first removal: %v", err)
	}
	if err := memberRepo.RemoveMember(ctx, pool, memberB.ID, model.DeletionReasonLeft, nil, 0); !errors.Is(err, repository.ErrNotAMember) {
		t.Fatalf("second removal: want ErrNotAMember, got %v", err)
	}
}

func TestListLeftAdmins(t *testing.T) {
	ctx := context.Background()
	a, b, c := seedAdmin(t), seedAdmin(t), seedAdmin(t)
	chat, changes := newGroupChat(t, a, b, c)
	if err := memberRepo.RemoveMember(ctx, pool, changes[1].Member.ID, model.DeletionReasonLeft, nil, 0); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	if err := memberRepo.RemoveMember(ctx, pool, changes[2].Member.ID, model.DeletionReasonRemoved, nil, 0); err != nil {
		t.Fatalf("remove c: %v", err)
	}
	left, err := memberRepo.ListLeftAdmins(ctx, pool, chat.ID, []string{a, b, c})
	if err != nil {
		t.Fatalf("list left: %v", err)
	}
	if len(left) != 1 || left[0] != b {
		t.Fatalf("left = %v, want only %s (removed-by-owner is re-invitable)", left, b)
	}
}

func TestMessageNumberUnique(t *testing.T) {
	a := seedAdmin(t)
	chat, changes := newGroupChat(t, a)
	member := changes[0].Member
	appendText(t, chat.ID, member.ID, 1, "first")
	_, err := msgRepo.AppendText(context.Background(), pool, chat.ID, member.ID, 1, "duplicate number")
	if err == nil || !repository.IsUniqueViolation(err) {
		t.Fatalf("want unique violation on duplicate number, got %v", err)
	}
}

func TestPrivatePairKeyUnique(t *testing.T) {
	ctx := context.Background()
	a, b := seedAdmin(t), seedAdmin(t)
	key := repository.PrivatePairKey(a, b)
	if key != repository.PrivatePairKey(b, a) {
		t.Fatalf("pair key must not depend on argument order")
	}
	chat, err := chatRepo.Create(ctx, pool, model.ChatTypePrivate, &key)
	if err != nil {
		t.Fatalf("create private chat: %v", err)
	}
	if _, err := chatRepo.Create(ctx, pool, model.ChatTypePrivate, &key); !repository.IsUniqueViolation(err) {
		t.Fatalf("want unique violation on duplicate pair key, got %v", err)
	}
	found, err := chatRepo.FindPrivateChat(ctx, pool, b, a)
	if err != nil {
		t.Fatalf("find private chat: %v", err)
	}
	if found.ID != chat.ID {
		t.Fatalf("found chat %s, want %s", found.ID, chat.ID)
	}
}

func TestListVisibleFrozenAtCutoff(t *testing.T) {
	ctx := context.Background()
	a, b := seedAdmin(t), seedAdmin(t)
	chat, changes := newGroupChat(t, a, b)
	memberA, memberB := changes[0].Member, changes[1].Member

	appendText(t, chat.ID, memberA.ID, 1, "one")
	msg2 := appendText(t, chat.ID, memberA.ID, 2, "two")
	if err := memberRepo.RemoveMember(ctx, pool, memberB.ID, model.DeletionReasonRemoved, &msg2.ID, msg2.Number); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	appendText(t, chat.ID, memberA.ID, 3, "three")

	visible, err := msgRepo.ListVisible(ctx, pool, chat.ID, memberB.ID, 50, 0)
	if err != nil {
		t.Fatalf("list visible (removed): %v", err)
	}
	if len(visible) != 2 || visible[0].Number != 2 || visible[1].Number != 1 {
		t.Fatalf("removed member sees %d messages (first number %d), want 2 ending at cutoff", len(visible), visible[0].Number)
	}

	all, err := msgRepo.ListVisible(ctx, pool, chat.ID, memberA.ID, 50, 0)
	if err != nil {
		t.Fatalf("list visible (active): %v", err)
	}
	if len(all) != 3 || all[0].Number != 3 {
		t.Fatalf("active member sees %d messages, want all 3 newest first", len(all))
	}
}

func TestMarkReadUpToIdempotent(t *testing.T) {
	ctx := context.Background()
	a, b := seedAdmin(t), seedAdmin(t)
	chat, changes := newGroupChat(t, a, b)
	memberA, memberB := changes[0].Member, changes[1].Member

	appendText(t, chat.ID, memberA.ID, 1, "one")
	appendText(t, chat.ID, memberA.ID, 2, "two")
	msg3 := appendText(t, chat.ID, memberA.ID, 3, "three")

	if err := msgRepo.MarkReadUpTo(ctx, pool, chat.ID, memberB.ID, 2); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	remaining, err := msgRepo.CountUnreadAfter(ctx, pool, chat.ID, memberB.ID, 2)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining after reading up to 2 = %d, want 1", remaining)
	}

	// Повторная и «отстающая» отметка ничего не меняют.
	if err := msgRepo.MarkReadUpTo(ctx, pool, chat.ID, memberB.ID, 2); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if err := msgRepo.MarkReadUpTo(ctx, pool, chat.ID, memberB.ID, 1); err != nil {
		t.Fatalf("mark read backwards: %v", err)
	}
	got, err := msgRepo.GetByID(ctx, pool, msg3.ID)
	if err != nil {
		t.Fatalf("get message 3: %v", err)
	}
	if got.SenderStatus != model.SenderStatusUnread {
		t.Fatalf("message 3 status = %s, want unread", got.SenderStatus)
	}
}

func TestUnreadCounters(t *testing.T) {
	ctx := context.Background()
	a, b, c := seedAdmin(t), seedAdmin(t), seedAdmin(t)
	chat, changes := newGroupChat(t, a, b, c)
	memberA, memberB, memberC := changes[0].Member, changes[1].Member, changes[2].Member

	msg := appendText(t, chat.ID, memberA.ID, 1, "hello")
	if err := memberRepo.IncrementUnreadExcept(ctx, pool, chat.ID, []string{memberA.ID}); err != nil {
		t.Fatalf("increment unread: %v", err)
	}

	for _, m := range []model.ChatMember{memberB, memberC} {
		state, err := memberRepo.GetState(ctx, pool, m.ID)
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		if state.UnreadCount != 1 {
			t.Fatalf("unread for %s = %d, want 1", m.AdminID, state.UnreadCount)
		}
	}
	stateA, err := memberRepo.GetState(ctx, pool, memberA.ID)
	if err != nil {
		t.Fatalf("get sender state: %v", err)
	}
	if stateA.UnreadCount != 0 {
		t.Fatalf("sender unread = %d, want 0", stateA.UnreadCount)
	}

	n, err := memberRepo.CountOthersWithUnread(ctx, pool, chat.ID, memberA.ID)
	if err != nil {
		t.Fatalf("count others: %v", err)
	}
	if n != 2 {
		t.Fatalf("others with unread = %d, want 2", n)
	}

	if err := memberRepo.ResetUnread(ctx, pool, memberB.ID, 0, &msg.ID, msg.Number); err != nil {
		t.Fatalf("reset unread: %v", err)
	}
	stateB, err := memberRepo.GetState(ctx, pool, memberB.ID)
	if err != nil {
		t.Fatalf("get state after reset: %v", err)
	}
	if stateB.UnreadCount != 0 || stateB.LastReadMessageNumber != 1 {
		t.Fatalf("state after reset = %+v, want unread=0 at message 1", stateB)
	}
}

func TestStarredChatIdempotent(t *testing.T) {
	ctx := context.Background()
	a := seedAdmin(t)
	chat, _ := newGroupChat(t, a)

	if err := starRepo.StarChat(ctx, pool, a, chat.ID); err != nil {
		t.Fatalf("star chat: %v", err)
	}
	if err := starRepo.StarChat(ctx, pool, a, chat.ID); err != nil {
		t.Fatalf("star chat twice: %v", err)
	}
	starred, err := starRepo.IsChatStarred(ctx, pool, a, chat.ID)
	if err != nil {
		t.Fatalf("is starred: %v", err)
	}
	if !starred {
		t.Fatal("chat should be starred")
	}
	if err := starRepo.UnstarChat(ctx, pool, a, chat.ID); err != nil {
		t.Fatalf("unstar: %v", err)
	}
	starred, err = starRepo.IsChatStarred(ctx, pool, a, chat.ID)
	if err != nil {
		t.Fatalf("is starred after unstar: %v", err)
	}
	if starred {
		t.Fatal("chat should not be starred after unstar")
	}
}

func seedDispute(t *testing.T, questID string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO quest_disputes (id, quest_id, problem) VALUES ($1, $2, 'payment not received')`,
		id, questID,
	)
	if err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	return id
}

func TestDisputeLifecycle(t *testing.T) {
	ctx := context.Background()
	admin := seedAdmin(t)
	questID := uuid.New().String()
	disputeID := seedDispute(t, questID)

	if err := dispRepo.Resolve(ctx, pool, disputeID, "too early"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("resolve before assign: want ErrNotFound, got %v", err)
	}

	if err := dispRepo.Assign(ctx, pool, disputeID, admin); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Повторный перехват не проходит: статус уже in_review.
	if err := dispRepo.Assign(ctx, pool, disputeID, admin); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second assign: want ErrNotFound, got %v", err)
	}

	d, err := dispRepo.GetByID(ctx, pool, disputeID)
	if err != nil {
		t.Fatalf("get dispute: %v", err)
	}
	if d.Status != model.DisputeStatusInReview || d.AssignedAdminID == nil || *d.AssignedAdminID != admin {
		t.Fatalf("dispute after assign = %+v", d)
	}

	if err := dispRepo.Resolve(ctx, pool, disputeID, "refund issued"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	d, err = dispRepo.GetByID(ctx, pool, disputeID)
	if err != nil {
		t.Fatalf("get resolved dispute: %v", err)
	}
	if d.Status != model.DisputeStatusResolved || d.Decision != "refund issued" || d.ResolvedAt == nil {
		t.Fatalf("dispute after resolve = %+v", d)
	}

	found, err := dispRepo.FindByQuest(ctx, pool, questID)
	if err != nil {
		t.Fatalf("find by quest: %v", err)
	}
	if found.ID != disputeID {
		t.Fatalf("find by quest = %s, want %s", found.ID, disputeID)
	}
}

func TestListForAdminOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	a := seedAdmin(t)
	chat1, changes1 := newGroupChat(t, a)
	chat2, changes2 := newGroupChat(t, a)

	appendText(t, chat1.ID, changes1[0].Member.ID, 1, "old")
	appendText(t, chat2.ID, changes2[0].Member.ID, 1, "new")

	previews, err := chatRepo.ListForAdmin(ctx, pool, a, 10, 0)
	if err != nil {
		t.Fatalf("list for admin: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("previews = %d, want 2", len(previews))
	}
	if previews[0].Chat.ID != chat2.ID {
		t.Fatalf("first preview = %s, want most recently active %s", previews[0].Chat.ID, chat2.ID)
	}
}
