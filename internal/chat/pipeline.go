package chat

import (
	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

// check is one precondition in an operation's validation pipeline. Checks run
// in order before the transactional section, so a failed operation has no side
// effects.
type check func() error

func runChecks(checks ...check) error {
	for _, c := range checks {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

func chatIsType(c *model.Chat, want model.ChatType) check {
	return func() error {
		if c.ChatType != want {
			return apperrors.Newf(apperrors.KindInvalidType, "operation restricted to %s chat", want)
		}
		return nil
	}
}

func questIsOpen(q *model.QuestChatInfo) check {
	return func() error {
		if q.Status != model.QuestChatStatusOpen {
			return apperrors.New(apperrors.KindInvalidStatus, "quest chat is closed")
		}
		return nil
	}
}

func disputeInStatus(d *model.QuestDispute, want model.DisputeStatus) check {
	return func() error {
		if d.Status != want {
			return apperrors.Newf(apperrors.KindInvalidStatus, "dispute is %s, expected %s", d.Status, want)
		}
		return nil
	}
}

func memberIsOwner(g *model.GroupChatInfo, memberID string) check {
	return func() error {
		if g.OwnerMemberID != memberID {
			return apperrors.New(apperrors.KindForbidden, "only the chat owner may do this")
		}
		return nil
	}
}

func memberIsNotOwner(g *model.GroupChatInfo, memberID string) check {
	return func() error {
		if g.OwnerMemberID == memberID {
			return apperrors.New(apperrors.KindForbidden, "the chat owner may not leave the chat")
		}
		return nil
	}
}

func distinctAdmins(a, b string) check {
	return func() error {
		if a == b {
			return apperrors.New(apperrors.KindInvalidPayload, "sender and recipient must differ")
		}
		return nil
	}
}

func hasContent(text string, medias []model.Media) check {
	return func() error {
		if text == "" && len(medias) == 0 {
			return apperrors.New(apperrors.KindInvalidPayload, "message must carry text or media")
		}
		return nil
	}
}

func nonEmptyIDs(ids []string, what string) check {
	return func() error {
		if len(ids) == 0 {
			return apperrors.New(apperrors.KindInvalidPayload, what+" list is empty")
		}
		return nil
	}
}

func nonEmpty(s, what string) check {
	return func() error {
		if s == "" {
			return apperrors.New(apperrors.KindInvalidPayload, what+" is empty")
		}
		return nil
	}
}
