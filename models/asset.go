package models

// Asset is a tracked physical asset.
type Asset struct {
	ID                  string  `json:"id" db:"id"`
	AssetTag            string  `json:"asset_tag" db:"asset_tag"`
	Name                string  `json:"name" db:"name"`
	Category            string  `json:"category" db:"category"`
	Status              string  `json:"status" db:"status"` // available, deployed, pending, overdue, archived
	KnoxID              *string `json:"knox_id" db:"knox_id"`
	AssignedTo          *string `json:"assigned_to" db:"assigned_to"`
	CheckoutDate        *string `json:"checkout_date" db:"checkout_date"`
	ExpectedCheckinDate *string `json:"expected_checkin_date" db:"expected_checkin_date"`
	FinanceUpdated      bool    `json:"finance_updated" db:"finance_updated"`
	Notes               string  `json:"notes" db:"notes"`
	CreatedAt           string  `json:"created_at" db:"created_at"`
	UpdatedAt           string  `json:"updated_at" db:"updated_at"`
}

// Asset status constants
const (
	AssetStatusAvailable = "available"
	AssetStatusDeployed  = "deployed"
	AssetStatusPending   = "pending"
	AssetStatusOverdue   = "overdue"
	AssetStatusArchived  = "archived"
)

// ValidAssetStatus reports whether s is a known asset status.
func ValidAssetStatus(s string) bool {
	switch s {
	case AssetStatusAvailable, AssetStatusDeployed, AssetStatusPending, AssetStatusOverdue, AssetStatusArchived:
		return true
	}
	return false
}

// IsDeployed reports whether the asset is currently checked out.
func (a *Asset) IsDeployed() bool {
	return a.Status == AssetStatusDeployed
}

// HasKnoxID reports whether a non-empty Knox ID is set on the asset.
func (a *Asset) HasKnoxID() bool {
	return a.KnoxID != nil && *a.KnoxID != ""
}

// CreateAssetRequest 자산 생성 요청
type CreateAssetRequest struct {
	AssetTag       string `json:"asset_tag" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Category       string `json:"category" binding:"required"`
	Status         string `json:"status"`
	KnoxID         string `json:"knox_id"`
	FinanceUpdated bool   `json:"finance_updated"`
	Notes          string `json:"notes"`
}

// UpdateAssetRequest 자산 수정 요청 (partial; nil fields are left untouched)
type UpdateAssetRequest struct {
	AssetTag       *string `json:"asset_tag"`
	Name           *string `json:"name"`
	Category       *string `json:"category"`
	Status         *string `json:"status"`
	KnoxID         *string `json:"knox_id"`
	FinanceUpdated *bool   `json:"finance_updated"`
	Notes          *string `json:"notes"`
}

// CheckoutRequest 자산 체크아웃 요청
type CheckoutRequest struct {
	UserID              string `json:"user_id" binding:"required"`
	KnoxID              string `json:"knox_id"`
	ExpectedCheckinDate string `json:"expected_checkin_date"`
	Notes               string `json:"notes"`
}

// KnoxCleanupResult 고아 Knox ID 정리 결과
type KnoxCleanupResult struct {
	Count         int     `json:"count"`
	UpdatedAssets []Asset `json:"updated_assets"`
}
