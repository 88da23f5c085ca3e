package chat_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
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
	memberRepo = repository.NewMemberRepository()
	msgRepo    = repository.NewMessageRepository()
	chatRepo   = repository.NewChatRepository()
)

// captureSink собирает опубликованные события для проверок.
type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *captureSink) Publish(_ context.Context, ev notify.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) byAction(action notify.Action) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Event
	for _, ev := range s.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

type captureRefresher struct {
	mu  sync.Mutex
	ids []string
}

func (r *captureRefresher) Enqueue(adminIDs ...string) {
	r.mu.Lock()
	r.ids = append(r.ids, adminIDs...)
	r.mu.Unlock()
}

func newEngine(t *testing.T) (*chat.Engine, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	return chat.NewEngine(pool, sink, &captureRefresher{}), sink
}

func seedAdmin(t *testing.T, role model.AdminRole) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO admins (id, email, first_name, last_name, role) VALUES ($1, $2, 'Test', 'Admin', $3)`,
		id, id+"@example.com", role,
	)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return id
}

func seedDispute(t *testing.T, questID string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO quest_disputes (id, quest_id, problem) VALUES ($1, $2, 'payment not released')`,
		id, questID,
	)
	if err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	return id
}

func memberState(t *testing.T, chatID, adminID string) *model.ChatMemberState {
	t.Helper()
	ctx := context.Background()
	m, err := memberRepo.GetMember(ctx, pool, chatID, adminID)
	if err != nil {
		t.Fatalf("get member %s: %v", adminID, err)
	}
	s, err := memberRepo.GetState(ctx, pool, m.ID)
	if err != nil {
		t.Fatalf("get state %s: %v", adminID, err)
	}
	return s
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want error of kind %s, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}

func TestCreateGroupChat(t *testing.T) {
	ctx := context.Background()
	e, sink := newEngine(t)
	creator := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	c := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, creator, "payments team", []string{b, c})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}
	if group.Chat.ChatType != model.ChatTypeGroup || group.Group.Name != "payments team" {
		t.Fatalf("group = %+v", group)
	}

	owner, err := memberRepo.GetMember(ctx, pool, group.Chat.ID, creator)
	if err != nil {
		t.Fatalf("get owner member: %v", err)
	}
	if group.Group.OwnerMemberID != owner.ID {
		t.Fatalf("owner member = %s, want %s", group.Group.OwnerMemberID, owner.ID)
	}

	// Одно системное сообщение о создании, номер 1.
	last, err := msgRepo.GetLastMessage(ctx, pool, group.Chat.ID)
	if err != nil {
		t.Fatalf("get last message: %v", err)
	}
	if last.Number != 1 || last.Type != model.MessageTypeInfo || last.Info.Action != model.InfoActionChatCreated {
		t.Fatalf("creation message = %+v", last)
	}

	// Создатель сразу прочитал, приглашённые получили одно непрочитанное.
	if s := memberState(t, group.Chat.ID, creator); s.UnreadCount != 0 || s.LastReadMessageNumber != 1 {
		t.Fatalf("creator state = %+v, want unread=0 at 1", s)
	}
	for _, id := range []string{b, c} {
		if s := memberState(t, group.Chat.ID, id); s.UnreadCount != 1 {
			t.Fatalf("invited %s unread = %d, want 1", id, s.UnreadCount)
		}
	}

	events := sink.byAction(notify.ActionChatCreated)
	if len(events) != 1 || len(events[0].AdminIDs) != 2 {
		t.Fatalf("chat_created events = %+v, want one for both invited", events)
	}
}

func TestSendMessageUnreadFlow(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	c := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "ops", []string{b, c})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}

	msg, err := e.SendMessage(ctx, group.Chat.ID, b, "anyone around?", nil)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.Number != 2 {
		t.Fatalf("message number = %d, want 2", msg.Number)
	}

	// Отправитель обнулён, остальные выросли на единицу.
	if s := memberState(t, group.Chat.ID, b); s.UnreadCount != 0 || s.LastReadMessageNumber != 2 {
		t.Fatalf("sender state = %+v, want unread=0 at 2", s)
	}
	if s := memberState(t, group.Chat.ID, a); s.UnreadCount != 1 {
		t.Fatalf("creator unread = %d, want 1", s.UnreadCount)
	}
	if s := memberState(t, group.Chat.ID, c); s.UnreadCount != 2 {
		t.Fatalf("invited unread = %d, want 2 (creation + text)", s.UnreadCount)
	}
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	outsider := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}

	_, err = e.SendMessage(ctx, group.Chat.ID, a, "", nil)
	wantKind(t, err, apperrors.KindInvalidPayload)

	_, err = e.SendMessage(ctx, group.Chat.ID, outsider, "hello", nil)
	wantKind(t, err, apperrors.KindForbidden)

	_, err = e.SendMessage(ctx, group.Chat.ID, a, "hi", []string{uuid.New().String()})
	wantKind(t, err, apperrors.KindInvalidPayload)
}

func TestSetMessagesAsRead(t *testing.T) {
	ctx := context.Background()
	e, sink := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}
	msg2, err := e.SendMessage(ctx, group.Chat.ID, a, "first", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msg3, err := e.SendMessage(ctx, group.Chat.ID, a, "second", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if s := memberState(t, group.Chat.ID, b); s.UnreadCount != 3 {
		t.Fatalf("b unread = %d, want 3", s.UnreadCount)
	}

	// Чтение до середины: остаток пересчитывается, а не обнуляется.
	if err := e.SetMessagesAsRead(ctx, group.Chat.ID, b, msg2.ID); err != nil {
		t.Fatalf("set read: %v", err)
	}
	if s := memberState(t, group.Chat.ID, b); s.UnreadCount != 1 || s.LastReadMessageNumber != 2 {
		t.Fatalf("b state after partial read = %+v, want unread=1 at 2", s)
	}
	got, err := msgRepo.GetByID(ctx, pool, msg2.ID)
	if err != nil {
		t.Fatalf("get msg2: %v", err)
	}
	if got.SenderStatus != model.SenderStatusRead {
		t.Fatalf("msg2 sender status = %s, want read", got.SenderStatus)
	}

	// У отправителя непрочитанных нет — событие о прочтении никому не нужно.
	if events := sink.byAction(notify.ActionMessagesRead); len(events) != 0 {
		t.Fatalf("messages_read events = %+v, want none (no one else has unread)", events)
	}

	if err := e.SetMessagesAsRead(ctx, group.Chat.ID, b, msg3.ID); err != nil {
		t.Fatalf("set read to last: %v", err)
	}
	if s := memberState(t, group.Chat.ID, b); s.UnreadCount != 0 || s.LastReadMessageNumber != 3 {
		t.Fatalf("b state after full read = %+v, want unread=0 at 3", s)
	}

	// Сообщение из другого чата отклоняется.
	other, err := e.CreateGroupChat(ctx, a, "other", []string{b})
	if err != nil {
		t.Fatalf("create other chat: %v", err)
	}
	otherLast, err := msgRepo.GetLastMessage(ctx, pool, other.Chat.ID)
	if err != nil {
		t.Fatalf("get other last: %v", err)
	}
	wantKind(t, e.SetMessagesAsRead(ctx, group.Chat.ID, b, otherLast.ID), apperrors.KindNotFound)
}

func TestAddMembersOwnerAndBans(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	owner := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	c := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, owner, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}

	// Приглашать может только владелец.
	_, err = e.AddMembers(ctx, group.Chat.ID, b, []string{c})
	wantKind(t, err, apperrors.KindForbidden)

	// Активный участник не приглашается повторно.
	_, err = e.AddMembers(ctx, group.Chat.ID, owner, []string{b})
	wantKind(t, err, apperrors.KindAlreadyMember)

	// Ушедший сам — забанен навсегда.
	if err := e.LeaveGroupChat(ctx, group.Chat.ID, b); err != nil {
		t.Fatalf("leave: %v", err)
	}
	_, err = e.AddMembers(ctx, group.Chat.ID, owner, []string{b})
	wantKind(t, err, apperrors.KindForbidden)

	// Владелец не может покинуть собственный чат.
	wantKind(t, e.LeaveGroupChat(ctx, group.Chat.ID, owner), apperrors.KindForbidden)
}

func TestRemoveAndRestoreMember(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	owner := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	d := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, owner, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group chat: %v", err)
	}
	chatID := group.Chat.ID

	memberB, err := memberRepo.GetMember(ctx, pool, chatID, b)
	if err != nil {
		t.Fatalf("get member b: %v", err)
	}

	// Удалённый по инициативе владельца видит историю до сообщения об
	// удалении включительно и ничего после.
	if err := e.RemoveMember(ctx, chatID, owner, b); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if _, err := e.SendMessage(ctx, chatID, owner, "b is gone", nil); err != nil {
		t.Fatalf("send after removal: %v", err)
	}
	frozen, err := e.ListVisibleMessages(ctx, chatID, b, 50, 0)
	if err != nil {
		t.Fatalf("list as removed: %v", err)
	}
	if len(frozen) != 2 || frozen[0].Info == nil || frozen[0].Info.Action != model.InfoActionMemberRemoved {
		t.Fatalf("removed member view = %d messages, newest %+v; want 2 ending at removal", len(frozen), frozen[0])
	}
	_, err = e.SendMessage(ctx, chatID, b, "let me back", nil)
	wantKind(t, err, apperrors.KindForbidden)

	// Повторное приглашение: восстановленные идут раньше новых, обе записи
	// получают нулевой счётчик на финальном сообщении.
	changes, err := e.AddMembers(ctx, chatID, owner, []string{d, b})
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	for _, ch := range changes {
		if ch.Member.AdminID == b {
			if !ch.Restored || ch.Member.ID != memberB.ID {
				t.Fatalf("b change = %+v, want restored on original row %s", ch, memberB.ID)
			}
		}
	}

	msgs, err := e.ListVisibleMessages(ctx, chatID, owner, 50, 0)
	if err != nil {
		t.Fatalf("list after re-add: %v", err)
	}
	// Новейшие первыми: member_added(d) после member_restored(b).
	if msgs[0].Info == nil || msgs[0].Info.Action != model.InfoActionMemberAdded {
		t.Fatalf("newest message = %+v, want member_added", msgs[0])
	}
	if msgs[1].Info == nil || msgs[1].Info.Action != model.InfoActionMemberRestored {
		t.Fatalf("second newest = %+v, want member_restored", msgs[1])
	}

	for _, id := range []string{b, d} {
		if s := memberState(t, chatID, id); s.UnreadCount != 0 {
			t.Fatalf("added %s unread = %d, want 0", id, s.UnreadCount)
		}
	}

	// После восстановления история снова видна целиком.
	all, err := e.ListVisibleMessages(ctx, chatID, b, 50, 0)
	if err != nil {
		t.Fatalf("list as restored: %v", err)
	}
	if len(all) != len(msgs) {
		t.Fatalf("restored member sees %d messages, active owner sees %d", len(all), len(msgs))
	}

	// Владельца удалить нельзя; не-участника — тоже.
	wantKind(t, e.RemoveMember(ctx, chatID, owner, owner), apperrors.KindForbidden)
	wantKind(t, e.RemoveMember(ctx, chatID, owner, seedAdmin(t, model.AdminRoleSupport)), apperrors.KindNotAMember)
}

func TestPrivateChatReuse(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	msg1, err := e.SendMessageToAdmin(ctx, a, b, "hello", nil)
	if err != nil {
		t.Fatalf("first private message: %v", err)
	}
	msg2, err := e.SendMessageToAdmin(ctx, a, b, "you there?", nil)
	if err != nil {
		t.Fatalf("second private message: %v", err)
	}
	if msg1.ChatID != msg2.ChatID {
		t.Fatalf("messages landed in different chats: %s vs %s", msg1.ChatID, msg2.ChatID)
	}
	if msg1.Number != 1 || msg2.Number != 2 {
		t.Fatalf("numbers = %d, %d; want 1, 2", msg1.Number, msg2.Number)
	}

	reply, err := e.SendMessageToAdmin(ctx, b, a, "here", nil)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ChatID != msg1.ChatID {
		t.Fatalf("reply chat = %s, want %s", reply.ChatID, msg1.ChatID)
	}

	if s := memberState(t, msg1.ChatID, a); s.UnreadCount != 1 {
		t.Fatalf("a unread = %d, want 1 (the reply)", s.UnreadCount)
	}
	if s := memberState(t, msg1.ChatID, b); s.UnreadCount != 0 {
		t.Fatalf("b unread = %d, want 0 after replying", s.UnreadCount)
	}

	_, err = e.SendMessageToAdmin(ctx, a, a, "self", nil)
	wantKind(t, err, apperrors.KindInvalidPayload)
}

func TestQuestChatLifecycle(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	employer := seedAdmin(t, model.AdminRoleSupport)
	worker := seedAdmin(t, model.AdminRoleSupport)
	questID := uuid.New().String()

	qc, err := e.CreateQuestChat(ctx, questID, nil, []string{employer, worker})
	if err != nil {
		t.Fatalf("create quest chat: %v", err)
	}
	if qc.Quest.QuestID != questID || qc.Quest.Status != model.QuestChatStatusOpen {
		t.Fatalf("quest info = %+v", qc.Quest)
	}

	_, err = e.CreateQuestChat(ctx, questID, nil, []string{employer, worker})
	wantKind(t, err, apperrors.KindAlreadyExists)

	if _, err := e.SendMessage(ctx, qc.Chat.ID, worker, "starting today", nil); err != nil {
		t.Fatalf("send in quest chat: %v", err)
	}

	if err := e.CloseQuestChat(ctx, qc.Chat.ID); err != nil {
		t.Fatalf("close quest chat: %v", err)
	}
	_, err = e.SendMessage(ctx, qc.Chat.ID, worker, "too late", nil)
	wantKind(t, err, apperrors.KindInvalidStatus)

	// Закрыть можно только квестовый чат.
	group, err := e.CreateGroupChat(ctx, employer, "ops", []string{worker})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	wantKind(t, e.CloseQuestChat(ctx, group.Chat.ID), apperrors.KindInvalidType)
}

func TestDisputeWorkflow(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	employer := seedAdmin(t, model.AdminRoleSupport)
	worker := seedAdmin(t, model.AdminRoleSupport)
	support := seedAdmin(t, model.AdminRoleSupport)
	arbiter := seedAdmin(t, model.AdminRoleDispute)
	other := seedAdmin(t, model.AdminRoleDispute)
	questID := uuid.New().String()

	qc, err := e.CreateQuestChat(ctx, questID, nil, []string{employer, worker})
	if err != nil {
		t.Fatalf("create quest chat: %v", err)
	}
	disputeID := seedDispute(t, questID)

	// Обычный саппорт спор взять не может.
	_, err = e.TakeDispute(ctx, disputeID, support)
	wantKind(t, err, apperrors.KindForbidden)

	dispute, err := e.TakeDispute(ctx, disputeID, arbiter)
	if err != nil {
		t.Fatalf("take dispute: %v", err)
	}
	if dispute.Status != model.DisputeStatusInReview || *dispute.AssignedAdminID != arbiter {
		t.Fatalf("dispute after take = %+v", dispute)
	}

	// Арбитр вошёл в чат квеста, системное сообщение на месте.
	if _, err := memberRepo.GetActiveMember(ctx, pool, qc.Chat.ID, arbiter); err != nil {
		t.Fatalf("arbiter membership: %v", err)
	}
	last, err := msgRepo.GetLastMessage(ctx, pool, qc.Chat.ID)
	if err != nil {
		t.Fatalf("get last: %v", err)
	}
	if last.Info == nil || last.Info.Action != model.InfoActionDisputeAdminAdded {
		t.Fatalf("last message = %+v, want dispute_admin_added", last)
	}

	// Взятый спор нельзя перехватить.
	_, err = e.TakeDispute(ctx, disputeID, other)
	wantKind(t, err, apperrors.KindInvalidStatus)

	// Решить может только назначенный, и только с текстом решения.
	_, err = e.DecideDispute(ctx, disputeID, other, "refund")
	wantKind(t, err, apperrors.KindForbidden)
	_, err = e.DecideDispute(ctx, disputeID, arbiter, "")
	wantKind(t, err, apperrors.KindInvalidPayload)

	dispute, err = e.DecideDispute(ctx, disputeID, arbiter, "refund the employer")
	if err != nil {
		t.Fatalf("decide dispute: %v", err)
	}
	if dispute.Status != model.DisputeStatusResolved || dispute.Decision != "refund the employer" {
		t.Fatalf("dispute after decide = %+v", dispute)
	}

	// Арбитр вышел из чата, причина удаления — решённый спор.
	member, err := memberRepo.GetMember(ctx, pool, qc.Chat.ID, arbiter)
	if err != nil {
		t.Fatalf("get arbiter member: %v", err)
	}
	if member.IsActive() {
		t.Fatal("arbiter should have left the chat")
	}
	deletion, err := memberRepo.GetDeletion(ctx, pool, member.ID)
	if err != nil {
		t.Fatalf("get deletion: %v", err)
	}
	if deletion.Reason != model.DeletionReasonDisputeResolved {
		t.Fatalf("deletion reason = %s, want dispute_resolved", deletion.Reason)
	}
}

func TestStarChatAndMessage(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)
	outsider := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	msg, err := e.SendMessage(ctx, group.Chat.ID, a, "pin this", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	wantKind(t, e.StarChat(ctx, outsider, group.Chat.ID), apperrors.KindForbidden)
	wantKind(t, e.StarMessage(ctx, outsider, msg.ID), apperrors.KindForbidden)

	if err := e.StarChat(ctx, a, group.Chat.ID); err != nil {
		t.Fatalf("star chat: %v", err)
	}
	if err := e.StarMessage(ctx, a, msg.ID); err != nil {
		t.Fatalf("star message: %v", err)
	}

	chats, err := e.ListStarredChats(ctx, a)
	if err != nil {
		t.Fatalf("list starred chats: %v", err)
	}
	if len(chats) != 1 || chats[0].ChatID != group.Chat.ID {
		t.Fatalf("starred chats = %+v", chats)
	}
	msgs, err := e.ListStarredMessages(ctx, a)
	if err != nil {
		t.Fatalf("list starred messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != msg.ID {
		t.Fatalf("starred messages = %+v", msgs)
	}

	if err := e.UnstarChat(ctx, a, group.Chat.ID); err != nil {
		t.Fatalf("unstar chat: %v", err)
	}
	if err := e.UnstarMessage(ctx, a, msg.ID); err != nil {
		t.Fatalf("unstar message: %v", err)
	}
}

func TestListChats(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "ops", []string{b})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := e.SendMessageToAdmin(ctx, b, a, "ping", nil); err != nil {
		t.Fatalf("private message: %v", err)
	}

	previews, err := e.ListChats(ctx, a, 10, 0)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("previews = %d, want 2", len(previews))
	}
	// Приватный чат активен позже — идёт первым.
	if previews[0].Chat.ChatType != model.ChatTypePrivate {
		t.Fatalf("first preview type = %s, want private", previews[0].Chat.ChatType)
	}
	if previews[0].UnreadCount != 1 || previews[0].LastMessage == nil {
		t.Fatalf("private preview = %+v, want unread=1 with last message", previews[0])
	}
	if previews[1].Chat.ID != group.Chat.ID {
		t.Fatalf("second preview chat = %s, want group %s", previews[1].Chat.ID, group.Chat.ID)
	}
	if previews[1].Group == nil || previews[1].Group.Name != "ops" {
		t.Fatalf("group preview = %+v, want group info attached", previews[1])
	}
}

func TestSendMessageConcurrentNumbering(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "load", []string{b})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	// Чат создан с info-сообщением №1; N конкурентных отправителей должны
	// получить номера ровно 2..N+1, без дыр и дублей.
	const senders = 16
	numbers := make(chan int64, senders)
	errs := make(chan error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := e.SendMessage(ctx, group.Chat.ID, a, "ping", nil)
			if err != nil {
				errs <- err
				return
			}
			numbers <- msg.Number
		}()
	}
	wg.Wait()
	close(errs)
	close(numbers)
	for err := range errs {
		t.Fatalf("concurrent send: %v", err)
	}
	seen := make(map[int64]bool, senders)
	for n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate message number %d", n)
		}
		seen[n] = true
	}
	for n := int64(2); n <= senders+1; n++ {
		if !seen[n] {
			t.Fatalf("missing message number %d", n)
		}
	}
}

func TestPrivateChatConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	// Первые сообщения с обеих сторон одновременно: гонка создания чата
	// разрешается через pair_key, оба попадают в один чат.
	var wg sync.WaitGroup
	msgs := make([]*model.Message, 2)
	errs := make([]error, 2)
	send := func(i int, from, to string) {
		defer wg.Done()
		msgs[i], errs[i] = e.SendMessageToAdmin(ctx, from, to, "hi", nil)
	}
	wg.Add(2)
	go send(0, a, b)
	go send(1, b, a)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("send %d: %v", i, errs[i])
		}
	}
	if msgs[0].ChatID != msgs[1].ChatID {
		t.Fatalf("chats diverged: %s vs %s", msgs[0].ChatID, msgs[1].ChatID)
	}
	got := map[int64]bool{msgs[0].Number: true, msgs[1].Number: true}
	if !got[1] || !got[2] {
		t.Fatalf("numbers = %d, %d, want 1 and 2", msgs[0].Number, msgs[1].Number)
	}

	found, err := chatRepo.FindPrivateChat(ctx, pool, a, b)
	if err != nil {
		t.Fatalf("find private chat: %v", err)
	}
	if found.ID != msgs[0].ChatID {
		t.Fatalf("pair_key lookup = %s, want %s", found.ID, msgs[0].ChatID)
	}
}

func TestSetMessagesAsReadBackwards(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	a := seedAdmin(t, model.AdminRoleSupport)
	b := seedAdmin(t, model.AdminRoleSupport)

	group, err := e.CreateGroupChat(ctx, a, "history", []string{b})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	msg2, err := e.SendMessage(ctx, group.Chat.ID, b, "first", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msg3, err := e.SendMessage(ctx, group.Chat.ID, b, "second", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := e.SetMessagesAsRead(ctx, group.Chat.ID, a, msg3.ID); err != nil {
		t.Fatalf("read up to msg3: %v", err)
	}
	state := memberState(t, group.Chat.ID, a)
	if state.UnreadCount != 0 || state.LastReadMessageNumber != msg3.Number {
		t.Fatalf("state after full read = %+v, want unread=0 at %d", state, msg3.Number)
	}

	// Повторная отметка более раннего сообщения не двигает указатель назад и
	// не раздувает счётчик непрочитанного.
	if err := e.SetMessagesAsRead(ctx, group.Chat.ID, a, msg2.ID); err != nil {
		t.Fatalf("read msg2 again: %v", err)
	}
	state = memberState(t, group.Chat.ID, a)
	if state.UnreadCount != 0 {
		t.Fatalf("unread after backwards read = %d, want 0", state.UnreadCount)
	}
	if state.LastReadMessageNumber != msg3.Number {
		t.Fatalf("read pointer = %d, want still %d", state.LastReadMessageNumber, msg3.Number)
	}
}
