package models

// Activity 감사 로그 항목 (append-only)
type Activity struct {
	ID        int64   `json:"id" db:"id"`
	Action    string  `json:"action" db:"action"`
	ItemType  string  `json:"item_type" db:"item_type"`
	ItemID    string  `json:"item_id" db:"item_id"`
	UserID    *string `json:"user_id" db:"user_id"`
	Timestamp string  `json:"timestamp" db:"timestamp"`
	Notes     string  `json:"notes" db:"notes"`
}

// Activity item type constants
const (
	ItemTypeAsset   = "asset"
	ItemTypeLicense = "license"
	ItemTypeUser    = "user"
)

// Activity action constants
const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionCheckout       = "checkout"
	ActionCheckin        = "checkin"
	ActionAssignSeat     = "assign-seat"
	ActionKnoxCleanup    = "knox-cleanup"
	ActionStatusRefresh  = "status-refresh"
	ActionLogin          = "login"
	ActionChangePassword = "change_password"
	ActionCreateAdmin    = "create_admin"
	ActionResetPassword  = "reset_password"
	ActionDeleteAdmin    = "delete_admin"
)

// SystemUserID is recorded as the acting principal for scheduler-driven changes.
const SystemUserID = "system"
