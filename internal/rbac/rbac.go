package rbac

import "strings"

type Role string
type Action string

const (
	RoleUser    Role = "USER"
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

const (
	ActionSubmitGrievance  Action = "grievance.submit"
	ActionViewOwn          Action = "grievance.view_own"
	ActionWithdraw         Action = "grievance.withdraw"
	ActionConfirmResolved  Action = "grievance.confirm"
	ActionViewAssigned     Action = "grievance.view_assigned"
	ActionPostFieldEvent   Action = "grievance.field_event"
	ActionUploadAttachment Action = "grievance.attach"
	ActionViewAll          Action = "grievance.view_all"
	ActionAssign           Action = "grievance.assign"
	ActionReject           Action = "grievance.reject"
	ActionViewAudit        Action = "audit.view"
	ActionViewAnalytics    Action = "analytics.view"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return action == ActionViewAll || action == ActionAssign || action == ActionReject ||
			action == ActionViewAudit || action == ActionViewAnalytics
	case RoleOfficer:
		return action == ActionViewAssigned || action == ActionPostFieldEvent || action == ActionUploadAttachment
	case RoleUser:
		return action == ActionSubmitGrievance || action == ActionViewOwn || action == ActionWithdraw ||
			action == ActionConfirmResolved || action == ActionUploadAttachment
	default:
		return false
	}
}

// Normalize maps stored or legacy role spellings onto a Role. Anything
// unrecognised is treated as a citizen.
func Normalize(role string) Role {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleOfficer):
		return RoleOfficer
	case string(RoleUser), "CITIZEN":
		return RoleUser
	default:
		return RoleUser
	}
}
