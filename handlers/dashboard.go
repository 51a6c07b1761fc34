package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"assettrack/database"
	"assettrack/logger"
	"assettrack/models"
)

// GetDashboardStats 대시보드 통계
// @Summary 대시보드 통계 조회
// @Description 자산/라이선스 상태별 집계를 조회합니다
// @Tags 대시보드
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "조회 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Router /api/admin/dashboard/stats [get]
func GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	var totalAssets int
	database.DB.QueryRow("SELECT COUNT(*) FROM assets").Scan(&totalAssets)
	stats["total_assets"] = totalAssets

	assetCounts := make(map[string]int)
	for _, status := range []string{
		models.AssetStatusAvailable, models.AssetStatusDeployed, models.AssetStatusPending,
		models.AssetStatusOverdue, models.AssetStatusArchived,
	} {
		var n int
		database.DB.QueryRow("SELECT COUNT(*) FROM assets WHERE status = ?", status).Scan(&n)
		assetCounts[status] = n
	}
	stats["assets_by_status"] = assetCounts

	var pendingFinance int
	database.DB.QueryRow("SELECT COUNT(*) FROM assets WHERE finance_updated = 0").Scan(&pendingFinance)
	stats["assets_pending_finance"] = pendingFinance

	var totalLicenses, activeLicenses, unusedLicenses, expiredLicenses int
	database.DB.QueryRow("SELECT COUNT(*) FROM licenses").Scan(&totalLicenses)
	database.DB.QueryRow("SELECT COUNT(*) FROM licenses WHERE status = ?", models.LicenseStatusActive).Scan(&activeLicenses)
	database.DB.QueryRow("SELECT COUNT(*) FROM licenses WHERE status = ?", models.LicenseStatusUnused).Scan(&unusedLicenses)
	database.DB.QueryRow("SELECT COUNT(*) FROM licenses WHERE status = ?", models.LicenseStatusExpired).Scan(&expiredLicenses)

	stats["total_licenses"] = totalLicenses
	stats["active_licenses"] = activeLicenses
	stats["unused_licenses"] = unusedLicenses
	stats["expired_licenses"] = expiredLicenses

	var assignedSeats int
	database.DB.QueryRow("SELECT COALESCE(SUM(assigned_seats), 0) FROM licenses").Scan(&assignedSeats)
	stats["total_assigned_seats"] = assignedSeats

	json.NewEncoder(w).Encode(models.SuccessResponse("Dashboard stats retrieved", stats))
}

// GetRecentActivities 최근 활동 내역
// @Summary 최근 활동 조회
// @Description 자산/라이선스/관리자 활동 내역을 최신순으로 조회합니다
// @Tags 대시보드
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param item_type query string false "항목 타입 필터 (asset, license, user)"
// @Param action query string false "액션 필터"
// @Param limit query int false "조회 개수 (기본 20, 최대 100)"
// @Success 200 {object} models.APIResponse{data=[]models.Activity} "조회 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/admin/dashboard/activities [get]
func GetRecentActivities(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	query := "SELECT id, action, item_type, item_id, user_id, timestamp, notes FROM activities WHERE 1=1"
	args := make([]interface{}, 0)

	if itemType := r.URL.Query().Get("item_type"); itemType != "" {
		query += " AND item_type = ?"
		args = append(args, itemType)
	}
	if action := r.URL.Query().Get("action"); action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		logger.Error("Failed to query activities: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to query activities", err))
		return
	}
	defer rows.Close()

	activities := make([]models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.ItemType, &a.ItemID, &a.UserID, &a.Timestamp, &a.Notes); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse("Failed to scan activity", err))
			return
		}
		activities = append(activities, a)
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("Recent activities retrieved", activities))
}
