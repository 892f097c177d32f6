package user

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact record emitted by the aggregate. Events are queued in
// memory and drained by the application layer after a successful save.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

type eventBase struct {
	UserID uuid.UUID `json:"user_id"`
	At     time.Time `json:"at"`
}

func (e eventBase) OccurredAt() time.Time { return e.At }

type UserCreated struct {
	eventBase
	Email       string `json:"email,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

func (UserCreated) EventName() string { return "user.created" }

type UserLoggedIn struct {
	eventBase
}

func (UserLoggedIn) EventName() string { return "user.logged_in" }

type UserProfileUpdated struct {
	eventBase
	Fields []string `json:"fields"`
}

func (UserProfileUpdated) EventName() string { return "user.profile_updated" }

type UserPasswordChanged struct {
	eventBase
}

func (UserPasswordChanged) EventName() string { return "user.password_changed" }

type UserEmailVerified struct {
	eventBase
}

func (UserEmailVerified) EventName() string { return "user.email_verified" }

type UserDeactivated struct {
	eventBase
}

func (UserDeactivated) EventName() string { return "user.deactivated" }

type UserActivated struct {
	eventBase
}

func (UserActivated) EventName() string { return "user.activated" }

type UserBanned struct {
	eventBase
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (UserBanned) EventName() string { return "user.banned" }

type UserUnbanned struct {
	eventBase
}

func (UserUnbanned) EventName() string { return "user.unbanned" }

type UserAnonymous struct {
	eventBase
}

func (UserAnonymous) EventName() string { return "user.anonymous" }

type UserRegular struct {
	eventBase
	Email string `json:"email"`
}

func (UserRegular) EventName() string { return "user.regular" }

type UserSessionRevoked struct {
	eventBase
	SessionID uuid.UUID `json:"session_id"`
}

func (UserSessionRevoked) EventName() string { return "user.session_revoked" }

type UserAllSessionsRevoked struct {
	eventBase
	// ExceptSessionID is set when the session performing the operation was
	// deliberately kept alive (password change).
	ExceptSessionID *uuid.UUID `json:"except_session_id,omitempty"`
}

func (UserAllSessionsRevoked) EventName() string { return "user.all_sessions_revoked" }
