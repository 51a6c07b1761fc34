package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"assettrack/logger"
	"assettrack/models"
	"assettrack/services"
)

// LicenseHandler는 라이선스 관련 HTTP 요청을 처리한다.
type LicenseHandler struct {
	service services.LicenseService
}

// NewLicenseHandler는 라이선스 핸들러를 생성한다.
func NewLicenseHandler(service services.LicenseService) *LicenseHandler {
	return &LicenseHandler{service: service}
}

func pathLicenseID(r *http.Request) string {
	id, _ := r.Context().Value("path_license_id").(string)
	return id
}

func writeLicenseError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrLicenseNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse("License not found", nil))
	case errors.Is(err, services.ErrSeatCapacityExceeded):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse(err.Error(), nil))
	case errors.Is(err, services.ErrSeatStateChanged):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.ErrorResponse("Seat count changed concurrently, please retry", nil))
	case errors.Is(err, services.ErrValidation):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse(err.Error(), nil))
	default:
		logger.Error("%s: %v", fallback, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse(fallback, err))
	}
}

// Create 라이선스 등록
// @Summary 라이선스 등록
// @Description 새로운 소프트웨어 라이선스를 등록합니다. 키 미입력 시 자동 생성됩니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateLicenseRequest true "라이선스 정보"
// @Success 201 {object} models.APIResponse{data=models.License} "등록 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/licenses [post]
func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	lic, err := h.service.Create(r.Context(), req, getAdminID(r))
	if err != nil {
		writeLicenseError(w, err, "Failed to create license")
		return
	}

	logger.WithFields(map[string]interface{}{
		"license_id": lic.ID,
		"name":       lic.Name,
		"seats":      lic.Seats,
	}).Info("License created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.SuccessResponse("License created successfully", lic))
}

// List 라이선스 목록 조회
// @Summary 라이선스 목록 조회
// @Description 라이선스 목록을 상태/검색어로 필터링하여 조회합니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "상태 필터 (active, unused, expired)"
// @Param search query string false "검색어 (이름, 키)"
// @Param page query int false "페이지 번호"
// @Param page_size query int false "페이지 크기"
// @Success 200 {object} models.PaginatedResponse{data=[]models.License} "조회 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/licenses [get]
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	licenses, total, err := h.service.List(r.Context(), services.LicenseFilter{
		Status:   r.URL.Query().Get("status"),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		logger.Error("Failed to query licenses: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to query licenses", err))
		return
	}

	if pageSize == 0 {
		json.NewEncoder(w).Encode(models.SuccessResponse("Licenses retrieved", licenses))
		return
	}

	json.NewEncoder(w).Encode(models.PagedResponse("Licenses retrieved", licenses, page, pageSize, total))
}

// Get 라이선스 상세 조회
// @Summary 라이선스 상세 조회
// @Description 라이선스 상세 정보를 조회합니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "라이선스 ID"
// @Success 200 {object} models.APIResponse{data=models.License} "조회 성공"
// @Failure 404 {object} models.APIResponse "라이선스 없음"
// @Router /api/licenses/{id} [get]
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathLicenseID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("License ID is required", nil))
		return
	}

	lic, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeLicenseError(w, err, "Failed to retrieve license")
		return
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("License retrieved", lic))
}

// Update 라이선스 수정
// @Summary 라이선스 수정
// @Description 라이선스 정보를 부분 수정합니다. 상태는 만료일/시트 수에서 자동 계산됩니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "라이선스 ID"
// @Param request body models.UpdateLicenseRequest true "수정할 정보"
// @Success 200 {object} models.APIResponse{data=models.License} "수정 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청/시트 한도 초과"
// @Failure 404 {object} models.APIResponse "라이선스 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/licenses/{id} [patch]
func (h *LicenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathLicenseID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("License ID is required", nil))
		return
	}

	var req models.UpdateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	lic, err := h.service.Update(r.Context(), id, req, getAdminID(r))
	if err != nil {
		writeLicenseError(w, err, "Failed to update license")
		return
	}

	logger.WithFields(map[string]interface{}{"license_id": id}).Info("License updated")
	json.NewEncoder(w).Encode(models.SuccessResponse("License updated successfully", lic))
}

// Delete 라이선스 삭제
// @Summary 라이선스 삭제
// @Description 라이선스와 모든 시트 할당 내역을 함께 삭제합니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "라이선스 ID"
// @Success 204 "삭제 성공"
// @Failure 404 {object} models.APIResponse "라이선스 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/licenses/{id} [delete]
func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathLicenseID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("License ID is required", nil))
		return
	}

	if err := h.service.Delete(r.Context(), id, getAdminID(r)); err != nil {
		writeLicenseError(w, err, "Failed to delete license")
		return
	}

	logger.WithFields(map[string]interface{}{"license_id": id}).Info("License deleted")
	w.WriteHeader(http.StatusNoContent)
}

// AssignSeat 시트 할당
// @Summary 시트 할당
// @Description 라이선스 시트를 사용자에게 할당합니다. 시트 한도를 초과할 수 없습니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "라이선스 ID"
// @Param request body models.AssignSeatRequest true "할당 정보"
// @Success 201 {object} models.APIResponse{data=models.AssignSeatResult} "할당 성공"
// @Failure 400 {object} models.APIResponse "시트 한도 초과"
// @Failure 404 {object} models.APIResponse "라이선스 없음"
// @Failure 409 {object} models.APIResponse "동시 할당 충돌, 재시도 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/licenses/{id}/assign [post]
func (h *LicenseHandler) AssignSeat(w http.ResponseWriter, r *http.Request) {
	id := pathLicenseID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("License ID is required", nil))
		return
	}

	var req models.AssignSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	result, err := h.service.AssignSeat(r.Context(), id, req, getAdminID(r))
	if err != nil {
		writeLicenseError(w, err, "Failed to assign seat")
		return
	}

	logger.WithFields(map[string]interface{}{
		"license_id":  id,
		"assigned_to": req.AssignedTo,
		"seats_used":  result.License.AssignedSeats,
	}).Info("License seat assigned")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.SuccessResponse("Seat assigned successfully", result))
}

// ListAssignments 시트 할당 내역 조회
// @Summary 시트 할당 내역 조회
// @Description 라이선스의 시트 할당 내역을 조회합니다
// @Tags 라이선스
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "라이선스 ID"
// @Success 200 {object} models.APIResponse{data=[]models.LicenseAssignment} "조회 성공"
// @Failure 404 {object} models.APIResponse "라이선스 없음"
// @Router /api/licenses/{id}/assignments [get]
func (h *LicenseHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id := pathLicenseID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("License ID is required", nil))
		return
	}

	assignments, err := h.service.ListAssignments(r.Context(), id)
	if err != nil {
		writeLicenseError(w, err, "Failed to query assignments")
		return
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("Assignments retrieved", assignments))
}
