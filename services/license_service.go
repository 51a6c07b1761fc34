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
	// ErrLicenseNotFound는 라이선스가 존재하지 않을 때 반환됩니다.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrSeatCapacityExceeded는 시트 한도가 가득 찼을 때 반환됩니다.
	ErrSeatCapacityExceeded = errors.New("license seat capacity exceeded")
	// ErrSeatStateChanged는 동시 할당으로 시트 수가 변경되어 재시도가 필요할 때 반환됩니다.
	ErrSeatStateChanged = errors.New("license seat count changed concurrently, retry")
)

// LicenseFilter는 라이선스 목록 조회 필터입니다.
type LicenseFilter struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// LicenseService는 라이선스 및 시트 할당에 대한 비즈니스 로직을 정의합니다.
type LicenseService interface {
	Create(ctx context.Context, req models.CreateLicenseRequest, actorID string) (models.License, error)
	List(ctx context.Context, filter LicenseFilter) ([]models.License, int, error)
	Get(ctx context.Context, id string) (models.License, error)
	Update(ctx context.Context, id string, req models.UpdateLicenseRequest, actorID string) (models.License, error)
	Delete(ctx context.Context, id string, actorID string) error
	AssignSeat(ctx context.Context, licenseID string, req models.AssignSeatRequest, actorID string) (models.AssignSeatResult, error)
	ListAssignments(ctx context.Context, licenseID string) ([]models.LicenseAssignment, error)
	RefreshStatuses(ctx context.Context) (int, error)
}

type licenseService struct {
	db       SQLExecutor
	activity ActivityRecorder
}

// NewLicenseService는 LicenseService 구현체를 생성합니다.
func NewLicenseService(db SQLExecutor, activity ActivityRecorder) LicenseService {
	return &licenseService{db: db, activity: activity}
}

const licenseColumns = `id, name, license_key, seats, assigned_seats, expiration_date, status, notes, created_at, updated_at`

func scanLicense(row rowScanner) (models.License, error) {
	var lic models.License
	err := row.Scan(
		&lic.ID, &lic.Name, &lic.LicenseKey, &lic.Seats, &lic.AssignedSeats,
		&lic.ExpirationDate, &lic.Status, &lic.Notes, &lic.CreatedAt, &lic.UpdatedAt,
	)
	if err != nil {
		return lic, err
	}
	lic.ExpirationDate = utils.NormalizeDateOnly(lic.ExpirationDate)
	return lic, nil
}

func getLicense(ctx context.Context, q execQuerier, id string) (models.License, error) {
	lic, err := scanLicense(q.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return models.License{}, ErrLicenseNotFound
	}
	if err != nil {
		return models.License{}, err
	}
	return lic, nil
}

func (s *licenseService) Create(ctx context.Context, req models.CreateLicenseRequest, actorID string) (models.License, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return models.License{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Seats == "" {
		req.Seats = "1"
	}
	if !models.ValidSeats(req.Seats) {
		return models.License{}, fmt.Errorf("%w: seats must be a non-negative number or %q", ErrValidation, models.SeatsUnlimited)
	}

	expiration := ""
	if req.ExpirationDate != "" {
		parsed, err := utils.ParseUserDate(req.ExpirationDate)
		if err != nil {
			return models.License{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		expiration = parsed
	}

	key := strings.TrimSpace(req.LicenseKey)
	if key == "" {
		generated, err := utils.GenerateLicenseKey()
		if err != nil {
			return models.License{}, err
		}
		key = generated
	}

	id, err := utils.GenerateID("lic")
	if err != nil {
		return models.License{}, err
	}
	now := utils.NowDateTime()
	status := models.RecomputeLicenseStatus(expiration, 0)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO licenses (id, name, license_key, seats, assigned_seats, expiration_date, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		id, req.Name, key, req.Seats, expiration, status, req.Notes, now, now,
	)
	if err != nil {
		return models.License{}, err
	}

	s.activity.Record(ctx, models.ActionCreate, models.ItemTypeLicense, id, actorID, "License created: "+req.Name)

	return getLicense(ctx, s.db, id)
}

func (s *licenseService) List(ctx context.Context, filter LicenseFilter) ([]models.License, int, error) {
	where := " WHERE 1=1"
	args := make([]any, 0)

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += " AND (name LIKE ? OR license_key LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM licenses"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + licenseColumns + ` FROM licenses` + where + " ORDER BY created_at DESC"
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

	licenses := make([]models.License, 0)
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, 0, err
		}
		licenses = append(licenses, lic)
	}

	return licenses, total, rows.Err()
}

func (s *licenseService) Get(ctx context.Context, id string) (models.License, error) {
	return getLicense(ctx, s.db, id)
}

func (s *licenseService) Update(ctx context.Context, id string, req models.UpdateLicenseRequest, actorID string) (models.License, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.License{}, err
	}
	defer tx.Rollback()

	current, err := getLicense(ctx, tx, id)
	if err != nil {
		return models.License{}, err
	}

	merged := current
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return models.License{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		merged.Name = *req.Name
	}
	if req.LicenseKey != nil {
		merged.LicenseKey = *req.LicenseKey
	}
	if req.Seats != nil {
		if !models.ValidSeats(*req.Seats) {
			return models.License{}, fmt.Errorf("%w: seats must be a non-negative number or %q", ErrValidation, models.SeatsUnlimited)
		}
		merged.Seats = *req.Seats
	}
	if req.AssignedSeats != nil {
		if *req.AssignedSeats < 0 {
			return models.License{}, fmt.Errorf("%w: assigned_seats cannot be negative", ErrValidation)
		}
		merged.AssignedSeats = *req.AssignedSeats
	}
	if req.ExpirationDate != nil {
		expiration := ""
		if *req.ExpirationDate != "" {
			parsed, err := utils.ParseUserDate(*req.ExpirationDate)
			if err != nil {
				return models.License{}, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			expiration = parsed
		}
		merged.ExpirationDate = expiration
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}

	if limit, ok := models.SeatLimit(merged.Seats); ok && merged.AssignedSeats > limit {
		return models.License{}, fmt.Errorf("%w: %d seats assigned, limit %d", ErrSeatCapacityExceeded, merged.AssignedSeats, limit)
	}

	// Status is never taken from the request. It is recomputed from the
	// merged expiration date and seat count on every write.
	merged.Status = models.RecomputeLicenseStatus(merged.ExpirationDate, merged.AssignedSeats)

	if err := updateLicenseConditional(ctx, tx, id, merged, current.AssignedSeats, current.Status); err != nil {
		return models.License{}, err
	}

	updated, err := getLicense(ctx, tx, id)
	if err != nil {
		return models.License{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.License{}, err
	}

	s.activity.Record(ctx, models.ActionUpdate, models.ItemTypeLicense, id, actorID, "License updated: "+updated.Name)

	return updated, nil
}

// updateLicenseConditional writes the merged license fields keyed on the seat
// count and status the merge was computed from. Zero matched rows means a
// concurrent assignment (or refresh) landed in between, so the stale merge
// must not overwrite it.
func updateLicenseConditional(ctx context.Context, q execQuerier, id string, merged models.License, prevSeats int, prevStatus string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE licenses SET name = ?, license_key = ?, seats = ?, assigned_seats = ?,
			expiration_date = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ? AND assigned_seats = ? AND status = ?`,
		merged.Name, merged.LicenseKey, merged.Seats, merged.AssignedSeats,
		merged.ExpirationDate, merged.Status, merged.Notes, utils.NowDateTime(),
		id, prevSeats, prevStatus,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSeatStateChanged
	}
	return nil
}

// Delete removes a license and its assignment history in one transaction,
// assignments first so the foreign key holds throughout.
func (s *licenseService) Delete(ctx context.Context, id string, actorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lic, err := getLicense(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM license_assignments WHERE license_id = ?", id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM licenses WHERE id = ?", id)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrLicenseNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.activity.Record(ctx, models.ActionDelete, models.ItemTypeLicense, id, actorID, "License deleted: "+lic.Name)
	return nil
}

// AssignSeat appends an assignment record and increments the seat count. The
// increment is a conditional UPDATE keyed on the seat count read at the start
// of the transaction, so concurrent assignments cannot overshoot the limit.
func (s *licenseService) AssignSeat(ctx context.Context, licenseID string, req models.AssignSeatRequest, actorID string) (models.AssignSeatResult, error) {
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	if req.AssignedTo == "" {
		return models.AssignSeatResult{}, fmt.Errorf("%w: assigned_to is required", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.AssignSeatResult{}, err
	}
	defer tx.Rollback()

	lic, err := getLicense(ctx, tx, licenseID)
	if err != nil {
		return models.AssignSeatResult{}, err
	}

	if limit, ok := models.SeatLimit(lic.Seats); ok && lic.AssignedSeats >= limit {
		return models.AssignSeatResult{}, fmt.Errorf("%w: all %d seats of %q are assigned", ErrSeatCapacityExceeded, limit, lic.Name)
	}

	assignmentID, err := utils.GenerateID("asg")
	if err != nil {
		return models.AssignSeatResult{}, err
	}
	assignedDate := utils.Today()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO license_assignments (id, license_id, assigned_to, assigned_date, notes)
		VALUES (?, ?, ?, ?, ?)`,
		assignmentID, licenseID, req.AssignedTo, assignedDate, req.Notes,
	)
	if err != nil {
		return models.AssignSeatResult{}, err
	}

	newCount := lic.AssignedSeats + 1
	newStatus := models.RecomputeLicenseStatus(lic.ExpirationDate, newCount)

	result, err := tx.ExecContext(ctx, `
		UPDATE licenses SET assigned_seats = ?, status = ?, updated_at = ?
		WHERE id = ? AND assigned_seats = ?`,
		newCount, newStatus, utils.NowDateTime(), licenseID, lic.AssignedSeats,
	)
	if err != nil {
		return models.AssignSeatResult{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.AssignSeatResult{}, err
	}
	if rows == 0 {
		// Another assignment landed between our read and our write.
		return models.AssignSeatResult{}, ErrSeatStateChanged
	}

	updated, err := getLicense(ctx, tx, licenseID)
	if err != nil {
		return models.AssignSeatResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.AssignSeatResult{}, err
	}

	s.activity.Record(ctx, models.ActionAssignSeat, models.ItemTypeLicense, licenseID, actorID,
		fmt.Sprintf("Seat assigned to %s (%d/%s)", req.AssignedTo, updated.AssignedSeats, updated.Seats))

	return models.AssignSeatResult{
		Assignment: models.LicenseAssignment{
			ID:           assignmentID,
			LicenseID:    licenseID,
			AssignedTo:   req.AssignedTo,
			AssignedDate: assignedDate,
			Notes:        req.Notes,
		},
		License: updated,
	}, nil
}

func (s *licenseService) ListAssignments(ctx context.Context, licenseID string) ([]models.LicenseAssignment, error) {
	if _, err := getLicense(ctx, s.db, licenseID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, license_id, assigned_to, assigned_date, notes
		FROM license_assignments WHERE license_id = ? ORDER BY assigned_date DESC, id`,
		licenseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]models.LicenseAssignment, 0)
	for rows.Next() {
		var a models.LicenseAssignment
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.AssignedTo, &a.AssignedDate, &a.Notes); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// RefreshStatuses recomputes the status of every license, used by the
// scheduler to roll licenses into expired as their dates pass. Returns the
// number of licenses whose status changed.
func (s *licenseService) RefreshStatuses(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assigned_seats, expiration_date, status FROM licenses`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pending struct {
		id         string
		status     string
		prevSeats  int
		prevStatus string
	}
	changes := make([]pending, 0)
	for rows.Next() {
		var (
			id, expiration, status string
			assigned               int
		)
		if err := rows.Scan(&id, &assigned, &expiration, &status); err != nil {
			return 0, err
		}
		if next := models.RecomputeLicenseStatus(expiration, assigned); next != status {
			changes = append(changes, pending{id: id, status: next, prevSeats: assigned, prevStatus: status})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// Each write is keyed on the state the recompute saw: a license that an
	// assignment moved in the meantime already carries a fresher status than
	// this pass computed, so it is skipped rather than clobbered.
	now := utils.NowDateTime()
	applied := 0
	for _, c := range changes {
		result, err := s.db.ExecContext(ctx,
			"UPDATE licenses SET status = ?, updated_at = ? WHERE id = ? AND assigned_seats = ? AND status = ?",
			c.status, now, c.id, c.prevSeats, c.prevStatus)
		if err != nil {
			return applied, err
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			applied++
		}
	}

	return applied, nil
}
