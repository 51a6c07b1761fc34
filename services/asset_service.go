package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"assettrack/models"
	"assettrack/utils"
)

var (
	// ErrAssetNotFound는 자산이 존재하지 않을 때 반환됩니다.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetTagConflict는 동일한 자산 태그가 이미 존재할 때 반환됩니다.
	ErrAssetTagConflict = errors.New("asset tag already exists")
	// ErrInvalidTransition은 상태 전이 전제조건이 충족되지 않을 때 반환됩니다.
	ErrInvalidTransition = errors.New("invalid asset status transition")
	// ErrAssetStateChanged는 동시 작업으로 자산 상태가 변경되어 재시도가 필요할 때 반환됩니다.
	ErrAssetStateChanged = errors.New("asset state changed concurrently, retry")
	// ErrValidation은 잘못된 입력이 변경 전에 거부될 때 반환됩니다.
	ErrValidation = errors.New("validation failed")
)

// AssetFilter는 자산 목록 조회 시 필요한 필터 정보를 담습니다.
type AssetFilter struct {
	Status   string
	Category string
	Search   string
	Page     int
	PageSize int
}

// AssetService는 자산 수명주기에 대한 비즈니스 로직을 정의합니다.
// 단일 자산에 대한 read-validate-write는 상태를 키로 하는 조건부 UPDATE
// 또는 트랜잭션으로 보호되어 동시 호출 간에 원자적입니다.
type AssetService interface {
	Create(ctx context.Context, req models.CreateAssetRequest, actorID string) (models.Asset, error)
	List(ctx context.Context, filter AssetFilter) ([]models.Asset, int, error)
	Get(ctx context.Context, id string) (models.Asset, error)
	GetByTag(ctx context.Context, tag string) (models.Asset, error)
	Update(ctx context.Context, id string, req models.UpdateAssetRequest, actorID string) (models.Asset, error)
	Delete(ctx context.Context, id string, actorID string) error
	Checkout(ctx context.Context, id string, req models.CheckoutRequest, actorID string) (models.Asset, error)
	Checkin(ctx context.Context, id string, actorID string) (models.Asset, error)
	ApplyKnoxAssignment(ctx context.Context, id, knoxID, actorID string) (models.Asset, error)
	CleanupOrphanKnoxIDs(ctx context.Context, actorID string) (models.KnoxCleanupResult, error)
}

type assetService struct {
	db       SQLExecutor
	activity ActivityRecorder
}

// NewAssetService는 AssetService 구현체를 생성합니다.
func NewAssetService(db SQLExecutor, activity ActivityRecorder) AssetService {
	return &assetService{db: db, activity: activity}
}

const assetColumns = `id, asset_tag, name, category, status, knox_id, assigned_to,
	checkout_date, expected_checkin_date, finance_updated, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (models.Asset, error) {
	var (
		asset    models.Asset
		knoxID   sql.NullString
		assigned sql.NullString
		checkout sql.NullString
		expected sql.NullString
	)

	err := row.Scan(
		&asset.ID, &asset.AssetTag, &asset.Name, &asset.Category, &asset.Status,
		&knoxID, &assigned, &checkout, &expected,
		&asset.FinanceUpdated, &asset.Notes, &asset.CreatedAt, &asset.UpdatedAt,
	)
	if err != nil {
		return models.Asset{}, err
	}

	if knoxID.Valid && knoxID.String != "" {
		asset.KnoxID = &knoxID.String
	}
	if assigned.Valid && assigned.String != "" {
		asset.AssignedTo = &assigned.String
	}
	// Legacy rows can carry DATETIME-shaped values in the date columns.
	if checkout.Valid && checkout.String != "" {
		date := utils.NormalizeDateOnly(checkout.String)
		asset.CheckoutDate = &date
	}
	if expected.Valid && expected.String != "" {
		date := utils.NormalizeDateOnly(expected.String)
		asset.ExpectedCheckinDate = &date
	}

	return asset, nil
}

func getAsset(ctx context.Context, q execQuerier, id string) (models.Asset, error) {
	asset, err := scanAsset(q.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return models.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, err
	}
	return asset, nil
}

func (s *assetService) Create(ctx context.Context, req models.CreateAssetRequest, actorID string) (models.Asset, error) {
	req.AssetTag = strings.TrimSpace(req.AssetTag)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.KnoxID = strings.TrimSpace(req.KnoxID)

	if req.AssetTag == "" {
		return models.Asset{}, fmt.Errorf("%w: asset_tag is required", ErrValidation)
	}
	if req.Name == "" {
		return models.Asset{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Category == "" {
		return models.Asset{}, fmt.Errorf("%w: category is required", ErrValidation)
	}

	status := req.Status
	if status == "" {
		status = models.AssetStatusAvailable
	}
	if !models.ValidAssetStatus(status) {
		return models.Asset{}, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	if status == models.AssetStatusDeployed {
		// Assets enter deployed only through checkout.
		return models.Asset{}, fmt.Errorf("%w: assets are created available and deployed via checkout", ErrInvalidTransition)
	}

	id, err := utils.GenerateID("ast")
	if err != nil {
		return models.Asset{}, err
	}
	now := utils.NowDateTime()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Asset{}, err
	}
	defer tx.Rollback()

	var knox any
	if req.KnoxID != "" {
		knox = req.KnoxID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assets (id, asset_tag, name, category, status, knox_id, finance_updated, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.AssetTag, req.Name, req.Category, status, knox, req.FinanceUpdated, req.Notes, now, now,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.Asset{}, ErrAssetTagConflict
		}
		return models.Asset{}, err
	}

	// Knox-ID auto-checkout rule: a create that carries a Knox ID deploys the
	// asset to the acting principal in the same transaction.
	checkedOut := false
	if req.KnoxID != "" && status == models.AssetStatusAvailable {
		if err := checkoutConditional(ctx, tx, id, actorID, "", ""); err != nil {
			return models.Asset{}, err
		}
		checkedOut = true
	}

	asset, err := getAsset(ctx, tx, id)
	if err != nil {
		return models.Asset{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Asset{}, err
	}

	s.activity.Record(ctx, models.ActionCreate, models.ItemTypeAsset, id, actorID, "Asset created: "+req.AssetTag)
	if checkedOut {
		s.activity.Record(ctx, models.ActionCheckout, models.ItemTypeAsset, id, actorID, knoxCheckoutNote(req.KnoxID))
	}

	return asset, nil
}

func (s *assetService) List(ctx context.Context, filter AssetFilter) ([]models.Asset, int, error) {
	where := " WHERE 1=1"
	args := make([]any, 0)

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		where += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		where += " AND (asset_tag LIKE ? OR name LIKE ? OR knox_id LIKE ? OR assigned_to LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assetColumns + ` FROM assets` + where + " ORDER BY created_at DESC"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.PageSize, (page-1)*filter.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assets := make([]models.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		assets = append(assets, asset)
	}

	return assets, total, rows.Err()
}

func (s *assetService) Get(ctx context.Context, id string) (models.Asset, error) {
	return getAsset(ctx, s.db, id)
}

func (s *assetService) GetByTag(ctx context.Context, tag string) (models.Asset, error) {
	asset, err := scanAsset(s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE asset_tag = ?`, tag))
	if err == sql.ErrNoRows {
		return models.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, err
	}
	return asset, nil
}

func (s *assetService) Update(ctx context.Context, id string, req models.UpdateAssetRequest, actorID string) (models.Asset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Asset{}, err
	}
	defer tx.Rollback()

	current, err := getAsset(ctx, tx, id)
	if err != nil {
		return models.Asset{}, err
	}

	merged := current
	if req.AssetTag != nil {
		tag := strings.TrimSpace(*req.AssetTag)
		if tag == "" {
			return models.Asset{}, fmt.Errorf("%w: asset_tag cannot be empty", ErrValidation)
		}
		merged.AssetTag = tag
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return models.Asset{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		merged.Name = *req.Name
	}
	if req.Category != nil {
		merged.Category = *req.Category
	}
	if req.FinanceUpdated != nil {
		merged.FinanceUpdated = *req.FinanceUpdated
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}

	if req.Status != nil && *req.Status != current.Status {
		if !models.ValidAssetStatus(*req.Status) {
			return models.Asset{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		// deployed is entered via checkout and left via checkin only.
		if *req.Status == models.AssetStatusDeployed {
			return models.Asset{}, fmt.Errorf("%w: deploy assets via checkout", ErrInvalidTransition)
		}
		if current.Status == models.AssetStatusDeployed {
			return models.Asset{}, fmt.Errorf("%w: check the asset in before changing its status", ErrInvalidTransition)
		}
		merged.Status = *req.Status
	}

	now := utils.NowDateTime()
	if err := updateAssetConditional(ctx, tx, id, merged, current.Status, now); err != nil {
		return models.Asset{}, err
	}

	// Knox-ID rule runs against the merged state, inside the same transaction,
	// so no reader observes the knox_id written without its checkout.
	checkedOut := false
	if req.KnoxID != nil {
		knox := strings.TrimSpace(*req.KnoxID)
		if knox == "" {
			if current.HasKnoxID() {
				if _, err := tx.ExecContext(ctx, `UPDATE assets SET knox_id = NULL, updated_at = ? WHERE id = ?`, now, id); err != nil {
					return models.Asset{}, err
				}
			}
		} else {
			_, checkedOut, err = applyKnoxInTx(ctx, tx, merged, knox, actorID)
			if err != nil {
				return models.Asset{}, err
			}
		}
	}

	updated, err := getAsset(ctx, tx, id)
	if err != nil {
		return models.Asset{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Asset{}, err
	}

	s.activity.Record(ctx, models.ActionUpdate, models.ItemTypeAsset, id, actorID, "Asset updated: "+updated.AssetTag)
	if checkedOut && req.KnoxID != nil {
		s.activity.Record(ctx, models.ActionCheckout, models.ItemTypeAsset, id, actorID, knoxCheckoutNote(strings.TrimSpace(*req.KnoxID)))
	}

	return updated, nil
}

// updateAssetConditional writes the merged asset fields keyed on the status
// the merge was computed from. Zero matched rows means another operation
// moved the asset between the read and this write, so the stale merge must
// not land on top of it.
func updateAssetConditional(ctx context.Context, q execQuerier, id string, merged models.Asset, prevStatus, now string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE assets SET asset_tag = ?, name = ?, category = ?, status = ?, finance_updated = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		merged.AssetTag, merged.Name, merged.Category, merged.Status,
		merged.FinanceUpdated, merged.Notes, now, id, prevStatus,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAssetTagConflict
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAssetStateChanged
	}
	return nil
}

func (s *assetService) Delete(ctx context.Context, id string, actorID string) error {
	asset, err := getAsset(ctx, s.db, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrAssetNotFound
	}

	s.activity.Record(ctx, models.ActionDelete, models.ItemTypeAsset, id, actorID, "Asset deleted: "+asset.AssetTag)
	return nil
}

// checkoutConditional flips an available asset to deployed. The status
// predicate lives in the UPDATE itself so two concurrent checkouts of the
// same asset cannot both succeed, even across server processes.
func checkoutConditional(ctx context.Context, q execQuerier, id, userID, knoxID, expectedCheckin string) error {
	var expected any
	if expectedCheckin != "" {
		expected = expectedCheckin
	}

	result, err := q.ExecContext(ctx, `
		UPDATE assets
		SET status = ?, assigned_to = ?, checkout_date = ?, expected_checkin_date = ?,
			knox_id = COALESCE(NULLIF(?, ''), knox_id), updated_at = ?
		WHERE id = ? AND status = ?`,
		models.AssetStatusDeployed, userID, utils.Today(), expected,
		knoxID, utils.NowDateTime(), id, models.AssetStatusAvailable,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var status string
		err := q.QueryRowContext(ctx, "SELECT status FROM assets WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrAssetNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: cannot checkout asset in status %q", ErrInvalidTransition, status)
	}
	return nil
}

func (s *assetService) Checkout(ctx context.Context, id string, req models.CheckoutRequest, actorID string) (models.Asset, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return models.Asset{}, fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	expected := ""
	if req.ExpectedCheckinDate != "" {
		parsed, err := utils.ParseUserDate(req.ExpectedCheckinDate)
		if err != nil {
			return models.Asset{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		expected = parsed
	}

	if err := checkoutConditional(ctx, s.db, id, req.UserID, strings.TrimSpace(req.KnoxID), expected); err != nil {
		return models.Asset{}, err
	}

	asset, err := getAsset(ctx, s.db, id)
	if err != nil {
		return models.Asset{}, err
	}

	notes := req.Notes
	if notes == "" {
		notes = "Checked out to " + req.UserID
	}
	s.activity.Record(ctx, models.ActionCheckout, models.ItemTypeAsset, id, actorID, notes)

	return asset, nil
}

func (s *assetService) Checkin(ctx context.Context, id string, actorID string) (models.Asset, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET status = ?, assigned_to = NULL, checkout_date = NULL, expected_checkin_date = NULL,
			knox_id = NULL, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		models.AssetStatusAvailable, utils.NowDateTime(),
		id, models.AssetStatusDeployed, models.AssetStatusOverdue,
	)
	if err != nil {
		return models.Asset{}, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return models.Asset{}, err
	}
	if rows == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM assets WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return models.Asset{}, ErrAssetNotFound
		}
		if err != nil {
			return models.Asset{}, err
		}
		return models.Asset{}, fmt.Errorf("%w: cannot checkin asset in status %q", ErrInvalidTransition, status)
	}

	asset, err := getAsset(ctx, s.db, id)
	if err != nil {
		return models.Asset{}, err
	}

	s.activity.Record(ctx, models.ActionCheckin, models.ItemTypeAsset, id, actorID, "Asset checked in: "+asset.AssetTag)

	return asset, nil
}

func knoxCheckoutNote(knoxID string) string {
	return "Auto-checkout for Knox ID " + knoxID
}

// applyKnoxInTx persists a Knox ID and, when the asset is available, performs
// the coupled checkout. Both writes share the caller's transaction. Returns
// whether anything was written and whether the checkout ran.
func applyKnoxInTx(ctx context.Context, tx *sql.Tx, asset models.Asset, knoxID, actorID string) (applied, checkedOut bool, err error) {
	// Idempotence: already deployed with this exact Knox ID is a no-op.
	if asset.IsDeployed() && asset.KnoxID != nil && *asset.KnoxID == knoxID {
		return false, false, nil
	}

	if asset.Status == models.AssetStatusAvailable {
		if err := checkoutConditional(ctx, tx, asset.ID, actorID, knoxID, ""); err != nil {
			return false, false, err
		}
		return true, true, nil
	}

	// Any other status: persist the identifier only. The orphan-Knox cleanup
	// repairs the ones that never reach deployed.
	_, err = tx.ExecContext(ctx, `UPDATE assets SET knox_id = ?, updated_at = ? WHERE id = ?`,
		knoxID, utils.NowDateTime(), asset.ID)
	if err != nil {
		return false, false, err
	}
	return true, false, nil
}

// ApplyKnoxAssignment is the derived-transition rule coupling a Knox ID write
// to an asset checkout. It is invoked by create and update when they carry a
// Knox ID, and is callable directly for repairs.
func (s *assetService) ApplyKnoxAssignment(ctx context.Context, id, knoxID, actorID string) (models.Asset, error) {
	knoxID = strings.TrimSpace(knoxID)
	if knoxID == "" {
		return models.Asset{}, fmt.Errorf("%w: knox_id is required", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Asset{}, err
	}
	defer tx.Rollback()

	asset, err := getAsset(ctx, tx, id)
	if err != nil {
		return models.Asset{}, err
	}

	applied, checkedOut, err := applyKnoxInTx(ctx, tx, asset, knoxID, actorID)
	if err != nil {
		return models.Asset{}, err
	}

	updated, err := getAsset(ctx, tx, id)
	if err != nil {
		return models.Asset{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Asset{}, err
	}

	if checkedOut {
		s.activity.Record(ctx, models.ActionCheckout, models.ItemTypeAsset, id, actorID, knoxCheckoutNote(knoxID))
	} else if applied {
		s.activity.Record(ctx, models.ActionUpdate, models.ItemTypeAsset, id, actorID, "Knox ID set: "+knoxID)
	}

	return updated, nil
}

// CleanupOrphanKnoxIDs clears the Knox ID from every asset whose status says
// it is not checked out. Touches exactly the assets matching the predicate.
func (s *assetService) CleanupOrphanKnoxIDs(ctx context.Context, actorID string) (models.KnoxCleanupResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.KnoxCleanupResult{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE status IN (?, ?, ?) AND knox_id IS NOT NULL AND knox_id != ''
		ORDER BY asset_tag`,
		models.AssetStatusAvailable, models.AssetStatusPending, models.AssetStatusArchived,
	)
	if err != nil {
		return models.KnoxCleanupResult{}, err
	}

	orphans := make([]models.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			rows.Close()
			return models.KnoxCleanupResult{}, err
		}
		orphans = append(orphans, asset)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.KnoxCleanupResult{}, err
	}

	now := utils.NowDateTime()
	updated := make([]models.Asset, 0, len(orphans))
	for _, asset := range orphans {
		if _, err := tx.ExecContext(ctx, `UPDATE assets SET knox_id = NULL, updated_at = ? WHERE id = ?`, now, asset.ID); err != nil {
			return models.KnoxCleanupResult{}, err
		}
		asset.KnoxID = nil
		asset.UpdatedAt = now
		updated = append(updated, asset)
	}

	if err := tx.Commit(); err != nil {
		return models.KnoxCleanupResult{}, err
	}

	for i, asset := range updated {
		knox := ""
		if orphans[i].KnoxID != nil {
			knox = *orphans[i].KnoxID
		}
		s.activity.Record(ctx, models.ActionKnoxCleanup, models.ItemTypeAsset, asset.ID, actorID,
			fmt.Sprintf("Cleared orphan Knox ID %s (status %s)", knox, asset.Status))
	}
	s.activity.Record(ctx, models.ActionKnoxCleanup, models.ItemTypeAsset, "batch", actorID,
		fmt.Sprintf("Cleared %d orphan Knox IDs", len(updated)))

	return models.KnoxCleanupResult{Count: len(updated), UpdatedAssets: updated}, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}
