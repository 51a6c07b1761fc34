package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"assettrack/database"
	"assettrack/models"
	"assettrack/services"
)

func newTestAssetHandler(t *testing.T) *AssetHandler {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db, "sqlite"))

	exec := services.NewSQLExecutor(db)
	return NewAssetHandler(services.NewAssetService(exec, services.NewActivityRecorder(exec)))
}

func authedRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(r.Context(), "admin_id", "admin-001")
	ctx = context.WithValue(ctx, "username", "admin")
	ctx = context.WithValue(ctx, "role", "super_admin")
	return r.WithContext(ctx)
}

func withAssetID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "path_asset_id", id))
}

func decodeAsset(t *testing.T, body *bytes.Buffer) models.Asset {
	t.Helper()
	var resp struct {
		Status string       `json:"status"`
		Data   models.Asset `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Data
}

func TestAssetHandlerCheckoutFlow(t *testing.T) {
	h := newTestAssetHandler(t)

	// 등록
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/assets", models.CreateAssetRequest{
		AssetTag: "AT-9001",
		Name:     "ThinkPad T14",
		Category: "laptop",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	asset := decodeAsset(t, w.Body)
	assert.Equal(t, models.AssetStatusAvailable, asset.Status)

	// 중복 태그
	w = httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/assets", models.CreateAssetRequest{
		AssetTag: "AT-9001",
		Name:     "Duplicate",
		Category: "laptop",
	}))
	assert.Equal(t, http.StatusConflict, w.Code)

	// 체크아웃
	w = httptest.NewRecorder()
	h.Checkout(w, withAssetID(authedRequest(http.MethodPost, "/api/assets/x/checkout", models.CheckoutRequest{
		UserID: "kim.cs",
	}), asset.ID))
	require.Equal(t, http.StatusOK, w.Code)
	deployed := decodeAsset(t, w.Body)
	assert.Equal(t, models.AssetStatusDeployed, deployed.Status)
	require.NotNil(t, deployed.AssignedTo)
	assert.Equal(t, "kim.cs", *deployed.AssignedTo)

	// 중복 체크아웃은 400
	w = httptest.NewRecorder()
	h.Checkout(w, withAssetID(authedRequest(http.MethodPost, "/api/assets/x/checkout", models.CheckoutRequest{
		UserID: "lee.yh",
	}), asset.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 반납
	w = httptest.NewRecorder()
	h.Checkin(w, withAssetID(authedRequest(http.MethodPost, "/api/assets/x/checkin", nil), asset.ID))
	require.Equal(t, http.StatusOK, w.Code)
	returned := decodeAsset(t, w.Body)
	assert.Equal(t, models.AssetStatusAvailable, returned.Status)
	assert.Nil(t, returned.AssignedTo)

	// 없는 자산은 404
	w = httptest.NewRecorder()
	h.Checkin(w, withAssetID(authedRequest(http.MethodPost, "/api/assets/x/checkin", nil), "ast-missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssetHandlerKnoxAutoCheckout(t *testing.T) {
	h := newTestAssetHandler(t)

	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/assets", models.CreateAssetRequest{
		AssetTag: "AT-9002",
		Name:     "Galaxy Book 4",
		Category: "laptop",
		KnoxID:   "knox.gb4",
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	asset := decodeAsset(t, w.Body)
	assert.Equal(t, models.AssetStatusDeployed, asset.Status)
	require.NotNil(t, asset.KnoxID)
	assert.Equal(t, "knox.gb4", *asset.KnoxID)
	require.NotNil(t, asset.AssignedTo)
	assert.Equal(t, "admin-001", *asset.AssignedTo)
}

func TestAssetHandlerCleanupKnox(t *testing.T) {
	h := newTestAssetHandler(t)

	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/assets", models.CreateAssetRequest{
		AssetTag: "AT-9003",
		Name:     "Spare Monitor",
		Category: "display",
		Status:   models.AssetStatusPending,
		KnoxID:   "knox.stale",
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.CleanupKnox(w, authedRequest(http.MethodPost, "/api/assets/cleanup-knox", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.KnoxCleanupResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Data.Count)
	require.Len(t, resp.Data.UpdatedAssets, 1)
	assert.Nil(t, resp.Data.UpdatedAssets[0].KnoxID)
}
