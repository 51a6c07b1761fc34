package handlers

import (
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

func newTestLicenseHandler(t *testing.T) *LicenseHandler {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db, "sqlite"))

	exec := services.NewSQLExecutor(db)
	return NewLicenseHandler(services.NewLicenseService(exec, services.NewActivityRecorder(exec)))
}

func withLicenseID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "path_license_id", id))
}

func decodeLicense(t *testing.T, w *httptest.ResponseRecorder) models.License {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   models.License `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Data
}

func TestLicenseHandlerDeleteNoContent(t *testing.T) {
	h := newTestLicenseHandler(t)

	// 등록
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/licenses", models.CreateLicenseRequest{
		Name:  "Figma Org",
		Seats: "10",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	lic := decodeLicense(t, w)

	// 삭제는 본문 없이 204
	w = httptest.NewRecorder()
	h.Delete(w, withLicenseID(authedRequest(http.MethodDelete, "/api/licenses/x", nil), lic.ID))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	// 삭제 후 조회는 404
	w = httptest.NewRecorder()
	h.Get(w, withLicenseID(authedRequest(http.MethodGet, "/api/licenses/x", nil), lic.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 없는 라이선스 삭제도 404
	w = httptest.NewRecorder()
	h.Delete(w, withLicenseID(authedRequest(http.MethodDelete, "/api/licenses/x", nil), "lic-missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLicenseHandlerSeatConflict(t *testing.T) {
	h := newTestLicenseHandler(t)

	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/api/licenses", models.CreateLicenseRequest{
		Name:  "Sketch",
		Seats: "1",
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	lic := decodeLicense(t, w)

	w = httptest.NewRecorder()
	h.AssignSeat(w, withLicenseID(authedRequest(http.MethodPost, "/api/licenses/x/assign", models.AssignSeatRequest{
		AssignedTo: "kim.cs",
	}), lic.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	// 좌석 한도 초과는 400
	w = httptest.NewRecorder()
	h.AssignSeat(w, withLicenseID(authedRequest(http.MethodPost, "/api/licenses/x/assign", models.AssignSeatRequest{
		AssignedTo: "lee.yh",
	}), lic.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
