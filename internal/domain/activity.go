package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionCategory groups audit actions.
type ActionCategory string

const (
	CategoryAuth     ActionCategory = "auth"
	CategorySession  ActionCategory = "session"
	CategoryDocument ActionCategory = "document"
	CategoryProject  ActionCategory = "project"
)

// Action is an audit action tag. The set is closed: the only values are the
// variables declared in this file.
type Action interface {
	Tag() string
	Category() ActionCategory
	sealed()
}

type action struct {
	tag      string
	category ActionCategory
}

func (a action) Tag() string              { return a.tag }
func (a action) Category() ActionCategory { return a.category }
func (a action) String() string           { return a.tag }
func (action) sealed()                    {}

type AuthAction struct{ action }
type SessionAction struct{ action }
type DocumentAction struct{ action }
type ProjectAction struct{ action }

func authAction(tag string) AuthAction { return AuthAction{action{tag, CategoryAuth}} }
func sessionAction(tag string) SessionAction {
	return SessionAction{action{tag, CategorySession}}
}
func documentAction(tag string) DocumentAction {
	return DocumentAction{action{tag, CategoryDocument}}
}
func projectAction(tag string) ProjectAction {
	return ProjectAction{action{tag, CategoryProject}}
}

var (
	ActionLogin                = authAction("LOGIN")
	ActionLogin2FA             = authAction("LOGIN_2FA")
	ActionLogout               = authAction("LOGOUT")
	ActionRegister             = authAction("REGISTER")
	ActionPasswordResetRequest = authAction("PASSWORD_RESET_REQUEST")
	ActionPasswordReset        = authAction("PASSWORD_RESET")
	ActionPasswordChange       = authAction("PASSWORD_CHANGE")
	ActionTwoFactorEnable      = authAction("TWO_FACTOR_ENABLE")
	ActionTwoFactorDisable     = authAction("TWO_FACTOR_DISABLE")
	ActionInviteCreate         = authAction("INVITE_CREATE")
	ActionRoleChange           = authAction("ROLE_CHANGE")
	ActionUserDisable          = authAction("USER_DISABLE")

	ActionSessionRevoke    = sessionAction("SESSION_REVOKE")
	ActionSessionRevokeAll = sessionAction("SESSION_REVOKE_ALL")

	ActionCreateDocument   = documentAction("CREATE_DOCUMENT")
	ActionUpdateDocument   = documentAction("UPDATE_DOCUMENT")
	ActionArchiveDocument  = documentAction("ARCHIVE_DOCUMENT")
	ActionDeleteDocument   = documentAction("DELETE_DOCUMENT")
	ActionDownloadDocument = documentAction("DOWNLOAD_DOCUMENT")

	ActionCreateProject       = projectAction("CREATE_PROJECT")
	ActionUpdateProject       = projectAction("UPDATE_PROJECT")
	ActionArchiveProject      = projectAction("ARCHIVE_PROJECT")
	ActionDeleteProject       = projectAction("DELETE_PROJECT")
	ActionAddProjectMember    = projectAction("ADD_PROJECT_MEMBER")
	ActionRemoveProjectMember = projectAction("REMOVE_PROJECT_MEMBER")
)

var actionsByTag = map[string]Action{}

func init() {
	for _, a := range []Action{
		ActionLogin, ActionLogin2FA, ActionLogout, ActionRegister, ActionPasswordResetRequest,
		ActionPasswordReset, ActionPasswordChange, ActionTwoFactorEnable, ActionTwoFactorDisable,
		ActionInviteCreate, ActionRoleChange, ActionUserDisable,
		ActionSessionRevoke, ActionSessionRevokeAll,
		ActionCreateDocument, ActionUpdateDocument, ActionArchiveDocument, ActionDeleteDocument,
		ActionDownloadDocument,
		ActionCreateProject, ActionUpdateProject, ActionArchiveProject, ActionDeleteProject,
		ActionAddProjectMember, ActionRemoveProjectMember,
	} {
		actionsByTag[a.Tag()] = a
	}
}

// LookupAction resolves a stored tag back to its Action.
func LookupAction(tag string) (Action, bool) {
	a, ok := actionsByTag[tag]
	return a, ok
}

type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "SUCCESS"
	StatusFailure ActivityStatus = "FAILURE"
)

// ActivityLog is a write-once audit entry.
type ActivityLog struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ActorID     *uuid.UUID     `json:"actor_id,omitempty" db:"actor_id"`
	Action      string         `json:"action" db:"action"`
	Category    ActionCategory `json:"category" db:"category"`
	Status      ActivityStatus `json:"status" db:"status"`
	Description string         `json:"description" db:"description"`
	IPAddress   string         `json:"ip_address" db:"ip_address"`
	Device      string         `json:"device" db:"device"`
	UserAgent   string         `json:"user_agent" db:"user_agent"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// ActivityFilter narrows activity listings. Zero values mean no filter.
type ActivityFilter struct {
	ActorID *uuid.UUID
	Action  string
	Status  ActivityStatus
	Limit   int
	Offset  int
}
