package bot

import (
	"context"
	"log"
)

// guard runs one cross-cutting precondition for a command. It returns the
// locale key of the denial message, or ok=true to continue. Guards compose
// in front of the engine call instead of being woven into it.
type guard func(ctx context.Context, userID int64) (denyKey string, ok bool)

// pass runs the guards in order and sends the first denial, if any.
func (h *Handler) pass(ctx context.Context, userID int64, lang string, guards ...guard) bool {
	for _, g := range guards {
		if key, ok := g(ctx, userID); !ok {
			h.reply(userID, h.messages.T(lang, key))
			return false
		}
	}
	return true
}

func (h *Handler) cooldownGuard(_ context.Context, userID int64) (string, bool) {
	if !h.cooldown.Allow(userID) {
		return "error_rate_limit", false
	}
	return "", true
}

func (h *Handler) workingDayGuard(_ context.Context, _ int64) (string, bool) {
	if !h.classifier.IsWorkingDay(h.cfg.Now()) {
		return "error_not_working_day", false
	}
	return "", true
}

func (h *Handler) registeredGuard(ctx context.Context, userID int64) (string, bool) {
	teacher, err := h.repo.GetTeacher(ctx, userID)
	if err != nil {
		log.Printf("registered guard for user %d: %v", userID, err)
		return "error_general", false
	}
	if teacher == nil {
		return "error_not_registered", false
	}
	return "", true
}

func (h *Handler) adminGuard(_ context.Context, userID int64) (string, bool) {
	if !h.cfg.IsAdmin(userID) {
		return "error_admin_only", false
	}
	return "", true
}
