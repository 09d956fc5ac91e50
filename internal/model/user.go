package model

import "time"

// Role decides which moderation actions an account may perform.
type Role string

const (
	RoleMember   Role = "member"   // may submit and edit own cards
	RoleReviewer Role = "reviewer" // may approve or reject pending cards
	RoleAdmin    Role = "admin"    // may do everything, including activation and delete
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

var roleRank = map[Role]int{RoleMember: 1, RoleReviewer: 2, RoleAdmin: 3}

// AtLeast reports whether r includes every permission of min.
// Unknown roles include nothing.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] > 0 && roleRank[r] >= roleRank[min]
}

// CanReview reports whether the role may approve/reject and see every status.
func (r Role) CanReview() bool {
	return r.AtLeast(RoleReviewer)
}

// User is a registered account.
//
// Members usually arrive through GitHub OAuth (GitHubID set, no password);
// staff accounts are bootstrapped from configuration with a bcrypt hash and
// no GitHub link. The UNIQUE constraints on username and github_id keep
// either path from creating duplicates.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	GitHubID     int64     `json:"githubId,omitempty"` // 0 for staff accounts
	Email        string    `json:"email,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor identifies who performs an operation. Anonymous callers have an
// empty ID and RoleMember.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// Anonymous is the actor used for unauthenticated requests.
var Anonymous = Actor{Role: RoleMember}

// IsAnonymous reports whether the actor was not authenticated.
func (a Actor) IsAnonymous() bool { return a.ID == "" }

// Label is the name recorded in activity messages.
func (a Actor) Label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.ID != "":
		return a.ID
	default:
		return "anonymous"
	}
}
