package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"assettrack/database"
	"assettrack/logger"
	"assettrack/models"
	"assettrack/utils"
)

func pathAdminID(r *http.Request) string {
	id, _ := r.Context().Value("path_admin_id").(string)
	return id
}

// ListAdmins 관리자 목록 조회
// @Summary 관리자 목록 조회
// @Description 모든 관리자 계정을 조회합니다 (슈퍼 관리자 전용)
// @Tags 관리자
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=[]models.Admin} "조회 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 403 {object} models.APIResponse "권한 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/admin/admins [get]
func ListAdmins(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(
		"SELECT id, username, email, role, created_at, updated_at FROM admins ORDER BY created_at")
	if err != nil {
		logger.Error("Failed to query admins: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to query admins", err))
		return
	}
	defer rows.Close()

	admins := make([]models.Admin, 0)
	for rows.Next() {
		var admin models.Admin
		if err := rows.Scan(&admin.ID, &admin.Username, &admin.Email,
			&admin.Role, &admin.CreatedAt, &admin.UpdatedAt); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse("Failed to scan admin", err))
			return
		}
		admins = append(admins, admin)
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("Admins retrieved", admins))
}

// CreateAdmin 관리자 생성
// @Summary 관리자 생성
// @Description 새로운 관리자 계정을 생성합니다 (슈퍼 관리자 전용)
// @Tags 관리자
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAdminRequest true "관리자 정보"
// @Success 201 {object} models.APIResponse{data=models.Admin} "생성 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청"
// @Failure 409 {object} models.APIResponse "중복 사용자명"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/admin/admins/create [post]
func CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Username and a password of at least 8 characters are required", nil))
		return
	}

	role := req.Role
	if role == "" {
		role = "admin"
	}
	if role != "admin" && role != "super_admin" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Role must be admin or super_admin", nil))
		return
	}

	id, err := utils.GenerateID("adm")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to generate admin ID", err))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to hash password", err))
		return
	}

	now := utils.NowDateTime()
	_, err = database.DB.Exec(`
		INSERT INTO admins (id, username, password, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, req.Username, hash, req.Email, role, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "Duplicate entry") {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(models.ErrorResponse("Username already exists", nil))
			return
		}
		logger.Error("Failed to create admin: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to create admin", err))
		return
	}

	logger.WithFields(map[string]interface{}{
		"admin_id": id,
		"username": req.Username,
		"role":     role,
	}).Info("Admin created")

	recordAdminActivity(r, models.ActionCreateAdmin, id, "Admin created: "+req.Username)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.SuccessResponse("Admin created successfully", models.Admin{
		ID:        id,
		Username:  req.Username,
		Email:     req.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

// ResetAdminPassword 관리자 비밀번호 초기화
// @Summary 관리자 비밀번호 초기화
// @Description 대상 관리자의 비밀번호를 임시 비밀번호로 초기화합니다 (슈퍼 관리자 전용)
// @Tags 관리자
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param admin_id path string true "관리자 ID"
// @Success 200 {object} models.APIResponse "초기화 성공"
// @Failure 404 {object} models.APIResponse "관리자 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/admin/admins/{admin_id}/reset-password [post]
func ResetAdminPassword(w http.ResponseWriter, r *http.Request) {
	targetID := pathAdminID(r)
	if targetID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Admin ID is required", nil))
		return
	}

	tempPassword := utils.GenerateTempPassword(10)
	hash, err := utils.HashPassword(tempPassword)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to hash password", err))
		return
	}

	result, err := database.DB.Exec(
		"UPDATE admins SET password = ?, updated_at = ? WHERE id = ?",
		hash, utils.NowDateTime(), targetID,
	)
	if err != nil {
		logger.Error("Failed to reset admin password: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to reset password", err))
		return
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse("Admin not found", nil))
		return
	}

	logger.WithFields(map[string]interface{}{"admin_id": targetID}).Info("Admin password reset")
	recordAdminActivity(r, models.ActionResetPassword, targetID, "Password reset by super admin")

	json.NewEncoder(w).Encode(models.SuccessResponse("Password reset successfully", map[string]interface{}{
		"temp_password": tempPassword,
	}))
}

// DeleteAdmin 관리자 삭제
// @Summary 관리자 삭제
// @Description 관리자 계정을 삭제합니다. 자기 자신은 삭제할 수 없습니다 (슈퍼 관리자 전용)
// @Tags 관리자
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param admin_id path string true "관리자 ID"
// @Success 200 {object} models.APIResponse "삭제 성공"
// @Failure 400 {object} models.APIResponse "자기 자신 삭제 불가"
// @Failure 404 {object} models.APIResponse "관리자 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/admin/admins/{admin_id} [delete]
func DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	targetID := pathAdminID(r)
	if targetID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Admin ID is required", nil))
		return
	}

	if targetID == getAdminID(r) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Cannot delete your own account", nil))
		return
	}

	result, err := database.DB.Exec("DELETE FROM admins WHERE id = ?", targetID)
	if err != nil {
		logger.Error("Failed to delete admin: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to delete admin", err))
		return
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse("Admin not found", nil))
		return
	}

	logger.WithFields(map[string]interface{}{"admin_id": targetID}).Info("Admin deleted")
	recordAdminActivity(r, models.ActionDeleteAdmin, targetID, "Admin account deleted")

	json.NewEncoder(w).Encode(models.SuccessResponse("Admin deleted successfully", nil))
}
