package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assettrack/models"
)

func newLicenseService(t *testing.T) (LicenseService, *sql.DB) {
	t.Helper()
	db, exec := newTestDB(t)
	return NewLicenseService(exec, NewActivityRecorder(exec)), db
}

func TestLicenseCreateDefaults(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{
		Name:  "JetBrains All Products",
		Seats: "5",
	}, "admin-001")
	require.NoError(t, err)

	assert.Equal(t, models.LicenseStatusUnused, lic.Status)
	assert.Equal(t, 0, lic.AssignedSeats)
	assert.NotEmpty(t, lic.LicenseKey)
	assert.Empty(t, lic.ExpirationDate)
}

func TestLicenseCreateValidation(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateLicenseRequest{Seats: "5"}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, models.CreateLicenseRequest{Name: "Bad", Seats: "-1"}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, models.CreateLicenseRequest{Name: "Bad", Seats: "lots"}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAssignSeatCapacity(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{
		Name:  "Visio",
		Seats: "2",
	}, "admin-001")
	require.NoError(t, err)

	first, err := svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "kim.cs"}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, 1, first.License.AssignedSeats)
	assert.Equal(t, models.LicenseStatusActive, first.License.Status)
	assert.Equal(t, "kim.cs", first.Assignment.AssignedTo)

	second, err := svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "lee.yh"}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, 2, second.License.AssignedSeats)

	// At the limit: the assignment is rejected and nothing changes.
	_, err = svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "park.js"}, "admin-001")
	assert.ErrorIs(t, err, ErrSeatCapacityExceeded)

	after, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.AssignedSeats)

	assignments, err := svc.ListAssignments(ctx, lic.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
}

func TestAssignSeatUnlimited(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{
		Name:  "Site License",
		Seats: models.SeatsUnlimited,
	}, "admin-001")
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, err := svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{
			AssignedTo: fmt.Sprintf("user-%02d", i),
		}, "admin-001")
		require.NoError(t, err)
	}

	after, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, after.AssignedSeats)
	assert.Equal(t, models.LicenseStatusActive, after.Status)
}

func TestAssignSeatNotFoundAndValidation(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	_, err := svc.AssignSeat(ctx, "lic-missing", models.AssignSeatRequest{AssignedTo: "kim.cs"}, "admin-001")
	assert.ErrorIs(t, err, ErrLicenseNotFound)

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "X", Seats: "1"}, "admin-001")
	require.NoError(t, err)

	_, err = svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "  "}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLicenseUpdateRecomputesStatus(t *testing.T) {
	svc, _ := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "Acrobat", Seats: "10"}, "admin-001")
	require.NoError(t, err)
	require.Equal(t, models.LicenseStatusUnused, lic.Status)

	past := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	updated, err := svc.Update(ctx, lic.ID, models.UpdateLicenseRequest{ExpirationDate: &past}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpired, updated.Status)

	// Clearing the expiration date rolls the status back from expired.
	none := ""
	updated, err = svc.Update(ctx, lic.ID, models.UpdateLicenseRequest{ExpirationDate: &none}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusUnused, updated.Status)

	_, err = svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "kim.cs"}, "admin-001")
	require.NoError(t, err)
	_, err = svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "lee.yh"}, "admin-001")
	require.NoError(t, err)

	// Shrinking seats below the assigned count is rejected.
	one := "1"
	_, err = svc.Update(ctx, lic.ID, models.UpdateLicenseRequest{Seats: &one}, "admin-001")
	assert.ErrorIs(t, err, ErrSeatCapacityExceeded)

	zero := 0
	updated, err = svc.Update(ctx, lic.ID, models.UpdateLicenseRequest{AssignedSeats: &zero}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AssignedSeats)
	assert.Equal(t, models.LicenseStatusUnused, updated.Status)
}

func TestLicenseDeleteCascades(t *testing.T) {
	svc, db := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "CAD Suite", Seats: "3"}, "admin-001")
	require.NoError(t, err)

	for _, user := range []string{"kim.cs", "lee.yh"} {
		_, err := svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: user}, "admin-001")
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(ctx, lic.ID, "admin-001"))

	_, err = svc.Get(ctx, lic.ID)
	assert.ErrorIs(t, err, ErrLicenseNotFound)

	var remaining int
	err = db.QueryRow("SELECT COUNT(*) FROM license_assignments WHERE license_id = ?", lic.ID).Scan(&remaining)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRefreshStatuses(t *testing.T) {
	svc, db := newLicenseService(t)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "Stale", Seats: "5"}, "admin-001")
	require.NoError(t, err)

	// Simulate a license that expired while the server was down: the stored
	// status lags behind what the dates dictate.
	past := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	_, err = db.Exec("UPDATE licenses SET expiration_date = ?, status = 'active' WHERE id = ?", past, lic.ID)
	require.NoError(t, err)

	fresh, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "Fresh", Seats: "5"}, "admin-001")
	require.NoError(t, err)

	changed, err := svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpired, got.Status)

	got, err = svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusUnused, got.Status)

	// A second pass finds nothing left to fix.
	changed, err = svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestRecomputeLicenseStatus(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

	cases := []struct {
		name       string
		expiration string
		assigned   int
		want       string
	}{
		{"no expiration, no seats", "", 0, models.LicenseStatusUnused},
		{"no expiration, seats", "", 3, models.LicenseStatusActive},
		{"future expiration, no seats", tomorrow, 0, models.LicenseStatusUnused},
		{"future expiration, seats", tomorrow, 1, models.LicenseStatusActive},
		{"expires today, seats", today, 1, models.LicenseStatusActive},
		{"past expiration, no seats", yesterday, 0, models.LicenseStatusExpired},
		{"past expiration wins over seats", yesterday, 10, models.LicenseStatusExpired},
		{"unparseable date ignored", "soon", 1, models.LicenseStatusActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, models.RecomputeLicenseStatus(tc.expiration, tc.assigned))
		})
	}
}

func TestLicenseUpdateRejectsStaleMerge(t *testing.T) {
	_, exec := newTestDB(t)
	svc := NewLicenseService(exec, NewActivityRecorder(exec))
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "Sketch", Seats: "5"}, "admin-001")
	require.NoError(t, err)

	// A seat assignment lands after the merge snapshot above was read.
	_, err = svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "kim.cs"}, "admin-001")
	require.NoError(t, err)

	merged := lic
	merged.Name = "Sketch Team"
	err = updateLicenseConditional(ctx, exec, lic.ID, merged, lic.AssignedSeats, lic.Status)
	assert.ErrorIs(t, err, ErrSeatStateChanged)

	got, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sketch", got.Name)
	assert.Equal(t, 1, got.AssignedSeats)
	assert.Equal(t, models.LicenseStatusActive, got.Status)

	// Keyed on the state the row actually has, the same write lands.
	merged.AssignedSeats = got.AssignedSeats
	merged.Status = got.Status
	require.NoError(t, updateLicenseConditional(ctx, exec, lic.ID, merged, got.AssignedSeats, got.Status))

	got, err = svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sketch Team", got.Name)
}

// interceptingExecutor runs a callback before each write, standing in for a
// request that slips in between the scheduler's read and its write.
type interceptingExecutor struct {
	SQLExecutor
	beforeExec func(query string)
}

func (e *interceptingExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.beforeExec != nil {
		e.beforeExec(query)
	}
	return e.SQLExecutor.ExecContext(ctx, query, args...)
}

func TestRefreshStatusesSkipsConcurrentlyAssignedLicense(t *testing.T) {
	db, exec := newTestDB(t)
	recorder := NewActivityRecorder(exec)
	svc := NewLicenseService(exec, recorder)
	ctx := context.Background()

	lic, err := svc.Create(ctx, models.CreateLicenseRequest{Name: "Racy", Seats: "5"}, "admin-001")
	require.NoError(t, err)

	// Stored status lags what the fields dictate, so the refresh pass
	// queues a correction for this license.
	_, err = db.Exec("UPDATE licenses SET status = ? WHERE id = ?", models.LicenseStatusActive, lic.ID)
	require.NoError(t, err)

	assigned := false
	intercepted := &interceptingExecutor{SQLExecutor: exec, beforeExec: func(query string) {
		if assigned || !strings.Contains(query, "UPDATE licenses SET status") {
			return
		}
		assigned = true
		_, err := svc.AssignSeat(ctx, lic.ID, models.AssignSeatRequest{AssignedTo: "kim.cs"}, "admin-001")
		require.NoError(t, err)
	}}

	refreshSvc := NewLicenseService(intercepted, recorder)
	applied, err := refreshSvc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.True(t, assigned)

	// The assignment already moved the license to a fresher status than the
	// refresh computed, so its write must not land.
	assert.Equal(t, 0, applied)

	got, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, got.Status)
	assert.Equal(t, 1, got.AssignedSeats)
}
