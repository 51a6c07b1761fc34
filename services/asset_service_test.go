package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"assettrack/database"
	"assettrack/models"
	"assettrack/utils"
)

func newTestDB(t *testing.T) (*sql.DB, SQLExecutor) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A second pool connection would open a second, empty memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateTables(db, "sqlite"))
	return db, NewSQLExecutor(db)
}

func newAssetService(t *testing.T) (AssetService, *sql.DB) {
	t.Helper()
	db, exec := newTestDB(t)
	return NewAssetService(exec, NewActivityRecorder(exec)), db
}

func countActivities(t *testing.T, db *sql.DB, action, itemID string) int {
	t.Helper()
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM activities WHERE action = ? AND item_id = ?",
		action, itemID,
	).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestAssetCheckoutCheckinFlow(t *testing.T) {
	svc, db := newAssetService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-1001",
		Name:     "ThinkPad X1",
		Category: "laptop",
	}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusAvailable, asset.Status)
	assert.Nil(t, asset.AssignedTo)

	checked, err := svc.Checkout(ctx, asset.ID, models.CheckoutRequest{
		UserID:              "kim.cs",
		ExpectedCheckinDate: "2026-12-01",
	}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusDeployed, checked.Status)
	require.NotNil(t, checked.AssignedTo)
	assert.Equal(t, "kim.cs", *checked.AssignedTo)
	require.NotNil(t, checked.CheckoutDate)
	require.NotNil(t, checked.ExpectedCheckinDate)
	assert.Equal(t, "2026-12-01", *checked.ExpectedCheckinDate)

	// Second checkout of a deployed asset must fail outright.
	_, err = svc.Checkout(ctx, asset.ID, models.CheckoutRequest{UserID: "lee.yh"}, "admin-001")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	returned, err := svc.Checkin(ctx, asset.ID, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusAvailable, returned.Status)
	assert.Nil(t, returned.AssignedTo)
	assert.Nil(t, returned.CheckoutDate)
	assert.Nil(t, returned.ExpectedCheckinDate)
	assert.Nil(t, returned.KnoxID)

	_, err = svc.Checkin(ctx, asset.ID, "admin-001")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 1, countActivities(t, db, models.ActionCheckout, asset.ID))
	assert.Equal(t, 1, countActivities(t, db, models.ActionCheckin, asset.ID))
}

func TestAssetCreateWithKnoxAutoCheckout(t *testing.T) {
	svc, db := newAssetService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-1002",
		Name:     "Galaxy Book",
		Category: "laptop",
		KnoxID:   "knox.abc",
	}, "admin-001")
	require.NoError(t, err)

	assert.Equal(t, models.AssetStatusDeployed, asset.Status)
	require.NotNil(t, asset.KnoxID)
	assert.Equal(t, "knox.abc", *asset.KnoxID)
	require.NotNil(t, asset.AssignedTo)
	assert.Equal(t, "admin-001", *asset.AssignedTo)
	require.NotNil(t, asset.CheckoutDate)

	assert.Equal(t, 1, countActivities(t, db, models.ActionCheckout, asset.ID))
}

func TestApplyKnoxAssignmentIdempotent(t *testing.T) {
	svc, db := newAssetService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-1003",
		Name:     "Galaxy Tab",
		Category: "tablet",
		KnoxID:   "knox.tab",
	}, "admin-001")
	require.NoError(t, err)
	require.Equal(t, models.AssetStatusDeployed, asset.Status)

	// Re-applying the same Knox ID to the deployed asset is a no-op: no
	// state change and no second checkout activity.
	again, err := svc.ApplyKnoxAssignment(ctx, asset.ID, "knox.tab", "admin-001")
	require.NoError(t, err)
	assert.Equal(t, asset.Status, again.Status)
	assert.Equal(t, *asset.AssignedTo, *again.AssignedTo)
	assert.Equal(t, 1, countActivities(t, db, models.ActionCheckout, asset.ID))
}

func TestApplyKnoxAssignmentPersistsOnNonAvailable(t *testing.T) {
	svc, _ := newAssetService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-1004",
		Name:     "Monitor",
		Category: "display",
		Status:   models.AssetStatusPending,
	}, "admin-001")
	require.NoError(t, err)

	updated, err := svc.ApplyKnoxAssignment(ctx, asset.ID, "knox.mon", "admin-001")
	require.NoError(t, err)

	// Not available, so the identifier is stored without a checkout.
	assert.Equal(t, models.AssetStatusPending, updated.Status)
	require.NotNil(t, updated.KnoxID)
	assert.Equal(t, "knox.mon", *updated.KnoxID)
	assert.Nil(t, updated.AssignedTo)
}

func TestCleanupOrphanKnoxIDs(t *testing.T) {
	svc, db := newAssetService(t)
	ctx := context.Background()

	// Deployed with a Knox ID: consistent, must not be touched.
	deployed, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-2001", Name: "A", Category: "laptop", KnoxID: "knox.ok",
	}, "admin-001")
	require.NoError(t, err)

	// Pending with a Knox ID: orphan.
	pending, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-2002", Name: "B", Category: "laptop",
		Status: models.AssetStatusPending, KnoxID: "knox.orphan1",
	}, "admin-001")
	require.NoError(t, err)

	// Archived with a Knox ID: orphan.
	archived, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-2003", Name: "C", Category: "laptop",
		Status: models.AssetStatusArchived, KnoxID: "knox.orphan2",
	}, "admin-001")
	require.NoError(t, err)

	// Available with a leftover Knox ID, as legacy rows can carry.
	clean, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-2004", Name: "D", Category: "laptop",
	}, "admin-001")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE assets SET knox_id = 'knox.orphan3' WHERE id = ?", clean.ID)
	require.NoError(t, err)

	// Available without a Knox ID: nothing to clean.
	untouched, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-2005", Name: "E", Category: "laptop",
	}, "admin-001")
	require.NoError(t, err)

	result, err := svc.CleanupOrphanKnoxIDs(ctx, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	require.Len(t, result.UpdatedAssets, 3)
	for _, a := range result.UpdatedAssets {
		assert.Nil(t, a.KnoxID)
	}

	for _, id := range []string{pending.ID, archived.ID, clean.ID} {
		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.KnoxID, "asset %s should have its Knox ID cleared", got.AssetTag)
	}

	got, err := svc.Get(ctx, deployed.ID)
	require.NoError(t, err)
	require.NotNil(t, got.KnoxID)
	assert.Equal(t, "knox.ok", *got.KnoxID)

	got, err = svc.Get(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Nil(t, got.KnoxID)

	assert.Equal(t, 1, countActivities(t, db, models.ActionKnoxCleanup, pending.ID))
	assert.Equal(t, 0, countActivities(t, db, models.ActionKnoxCleanup, deployed.ID))
}

func TestAssetUpdateStatusTransitions(t *testing.T) {
	svc, _ := newAssetService(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-3001", Name: "Dock", Category: "accessory",
	}, "admin-001")
	require.NoError(t, err)

	deployedStatus := models.AssetStatusDeployed
	_, err = svc.Update(ctx, asset.ID, models.UpdateAssetRequest{Status: &deployedStatus}, "admin-001")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Checkout(ctx, asset.ID, models.CheckoutRequest{UserID: "park.js"}, "admin-001")
	require.NoError(t, err)

	archivedStatus := models.AssetStatusArchived
	_, err = svc.Update(ctx, asset.ID, models.UpdateAssetRequest{Status: &archivedStatus}, "admin-001")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Checkin(ctx, asset.ID, "admin-001")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, asset.ID, models.UpdateAssetRequest{Status: &archivedStatus}, "admin-001")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusArchived, updated.Status)
}

func TestAssetTagConflict(t *testing.T) {
	svc, _ := newAssetService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-4001", Name: "First", Category: "laptop",
	}, "admin-001")
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-4001", Name: "Second", Category: "laptop",
	}, "admin-001")
	assert.ErrorIs(t, err, ErrAssetTagConflict)
}

func TestAssetValidationAndNotFound(t *testing.T) {
	svc, _ := newAssetService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateAssetRequest{Name: "No tag", Category: "laptop"}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-5001", Name: "Bad status", Category: "laptop", Status: "broken",
	}, "admin-001")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Get(ctx, "ast-missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = svc.Checkout(ctx, "ast-missing", models.CheckoutRequest{UserID: "kim.cs"}, "admin-001")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	err = svc.Delete(ctx, "ast-missing", "admin-001")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAssetListFilters(t *testing.T) {
	svc, _ := newAssetService(t)
	ctx := context.Background()

	for _, req := range []models.CreateAssetRequest{
		{AssetTag: "AT-6001", Name: "MacBook Pro", Category: "laptop"},
		{AssetTag: "AT-6002", Name: "Galaxy S24", Category: "phone"},
		{AssetTag: "AT-6003", Name: "MacBook Air", Category: "laptop", Status: models.AssetStatusPending},
	} {
		_, err := svc.Create(ctx, req, "admin-001")
		require.NoError(t, err)
	}

	all, total, err := svc.List(ctx, AssetFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	laptops, total, err := svc.List(ctx, AssetFilter{Category: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, laptops, 2)

	pending, total, err := svc.List(ctx, AssetFilter{Status: models.AssetStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, "AT-6003", pending[0].AssetTag)

	macs, total, err := svc.List(ctx, AssetFilter{Search: "MacBook", PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, macs, 1)

	byTag, err := svc.GetByTag(ctx, "AT-6002")
	require.NoError(t, err)
	assert.Equal(t, "Galaxy S24", byTag.Name)
}

func TestAssetUpdateRejectsStaleMerge(t *testing.T) {
	_, exec := newTestDB(t)
	svc := NewAssetService(exec, NewActivityRecorder(exec))
	ctx := context.Background()

	asset, err := svc.Create(ctx, models.CreateAssetRequest{
		AssetTag: "AT-7001",
		Name:     "ThinkPad T14",
		Category: "laptop",
	}, "admin-001")
	require.NoError(t, err)

	// A checkout lands after the merge snapshot above was read.
	_, err = svc.Checkout(ctx, asset.ID, models.CheckoutRequest{UserID: "kim.cs"}, "admin-001")
	require.NoError(t, err)

	merged := asset
	merged.Status = models.AssetStatusArchived
	err = updateAssetConditional(ctx, exec, asset.ID, merged, asset.Status, utils.NowDateTime())
	assert.ErrorIs(t, err, ErrAssetStateChanged)

	got, err := svc.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusDeployed, got.Status)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "kim.cs", *got.AssignedTo)

	// Keyed on the state the row actually has, the same write lands.
	merged.Status = models.AssetStatusDeployed
	merged.Notes = "repair scheduled"
	require.NoError(t, updateAssetConditional(ctx, exec, asset.ID, merged, models.AssetStatusDeployed, utils.NowDateTime()))

	got, err = svc.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "repair scheduled", got.Notes)
}
