package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"assettrack/logger"
	"assettrack/models"
	"assettrack/services"
)

// AssetHandler는 자산 관련 HTTP 요청을 처리한다.
type AssetHandler struct {
	service services.AssetService
}

// NewAssetHandler는 자산 핸들러를 생성한다.
func NewAssetHandler(service services.AssetService) *AssetHandler {
	return &AssetHandler{service: service}
}

func getAdminID(r *http.Request) string {
	adminID, _ := r.Context().Value("admin_id").(string)
	return adminID
}

func pathAssetID(r *http.Request) string {
	id, _ := r.Context().Value("path_asset_id").(string)
	return id
}

func parsePaging(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 0 {
		pageSize = 0
	}
	return page, pageSize
}

func writeAssetError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrAssetNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset not found", nil))
	case errors.Is(err, services.ErrAssetTagConflict):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.ErrorResponse("이미 존재하는 자산 태그입니다", nil))
	case errors.Is(err, services.ErrAssetStateChanged):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset changed concurrently, please retry", nil))
	case errors.Is(err, services.ErrInvalidTransition):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse(err.Error(), nil))
	case errors.Is(err, services.ErrValidation):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse(err.Error(), nil))
	default:
		logger.Error("%s: %v", fallback, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse(fallback, err))
	}
}

// Create 자산 등록
// @Summary 자산 등록
// @Description 새로운 자산을 등록합니다. Knox ID가 포함되면 자동 체크아웃됩니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAssetRequest true "자산 정보"
// @Success 201 {object} models.APIResponse{data=models.Asset} "등록 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 409 {object} models.APIResponse "중복 자산 태그"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets [post]
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	asset, err := h.service.Create(r.Context(), req, getAdminID(r))
	if err != nil {
		writeAssetError(w, err, "Failed to create asset")
		return
	}

	logger.WithFields(map[string]interface{}{
		"asset_id":  asset.ID,
		"asset_tag": asset.AssetTag,
		"status":    asset.Status,
	}).Info("Asset created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.SuccessResponse("Asset created successfully", asset))
}

// List 자산 목록 조회
// @Summary 자산 목록 조회
// @Description 자산 목록을 상태/카테고리/검색어로 필터링하여 조회합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "상태 필터 (available, deployed, pending, overdue, archived)"
// @Param category query string false "카테고리 필터"
// @Param search query string false "검색어 (태그, 이름, Knox ID, 사용자)"
// @Param page query int false "페이지 번호"
// @Param page_size query int false "페이지 크기"
// @Success 200 {object} models.PaginatedResponse{data=[]models.Asset} "조회 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets [get]
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	assets, total, err := h.service.List(r.Context(), services.AssetFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		logger.Error("Failed to query assets: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to query assets", err))
		return
	}

	if pageSize == 0 {
		json.NewEncoder(w).Encode(models.SuccessResponse("Assets retrieved", assets))
		return
	}

	json.NewEncoder(w).Encode(models.PagedResponse("Assets retrieved", assets, page, pageSize, total))
}

// Get 자산 상세 조회
// @Summary 자산 상세 조회
// @Description 자산 ID 또는 자산 태그(tag 쿼리)로 상세 정보를 조회합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "자산 ID"
// @Success 200 {object} models.APIResponse{data=models.Asset} "조회 성공"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/{id} [get]
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathAssetID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset ID is required", nil))
		return
	}

	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeAssetError(w, err, "Failed to retrieve asset")
		return
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("Asset retrieved", asset))
}

// GetByTag 자산 태그로 조회
// @Summary 자산 태그로 조회
// @Description 고유 자산 태그로 자산을 조회합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tag query string true "자산 태그"
// @Success 200 {object} models.APIResponse{data=models.Asset} "조회 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Router /api/assets/by-tag [get]
func (h *AssetHandler) GetByTag(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset tag is required", nil))
		return
	}

	asset, err := h.service.GetByTag(r.Context(), tag)
	if err != nil {
		writeAssetError(w, err, "Failed to retrieve asset")
		return
	}

	json.NewEncoder(w).Encode(models.SuccessResponse("Asset retrieved", asset))
}

// Update 자산 수정
// @Summary 자산 수정
// @Description 자산 정보를 부분 수정합니다. Knox ID가 새로 설정되면 자동 체크아웃됩니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "자산 ID"
// @Param request body models.UpdateAssetRequest true "수정할 정보"
// @Success 200 {object} models.APIResponse{data=models.Asset} "수정 성공"
// @Failure 400 {object} models.APIResponse "잘못된 요청/전이 불가"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Failure 409 {object} models.APIResponse "중복 자산 태그"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/{id} [patch]
func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathAssetID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset ID is required", nil))
		return
	}

	var req models.UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	asset, err := h.service.Update(r.Context(), id, req, getAdminID(r))
	if err != nil {
		writeAssetError(w, err, "Failed to update asset")
		return
	}

	logger.WithFields(map[string]interface{}{"asset_id": id}).Info("Asset updated")
	json.NewEncoder(w).Encode(models.SuccessResponse("Asset updated successfully", asset))
}

// Delete 자산 삭제
// @Summary 자산 삭제
// @Description 자산을 삭제합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "자산 ID"
// @Success 200 {object} models.APIResponse "삭제 성공"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/{id} [delete]
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathAssetID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset ID is required", nil))
		return
	}

	if err := h.service.Delete(r.Context(), id, getAdminID(r)); err != nil {
		writeAssetError(w, err, "Failed to delete asset")
		return
	}

	logger.WithFields(map[string]interface{}{"asset_id": id}).Info("Asset deleted")
	json.NewEncoder(w).Encode(models.SuccessResponse("Asset deleted successfully", nil))
}

// Checkout 자산 체크아웃
// @Summary 자산 체크아웃
// @Description available 상태의 자산을 사용자에게 배정합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "자산 ID"
// @Param request body models.CheckoutRequest true "체크아웃 정보"
// @Success 200 {object} models.APIResponse{data=models.Asset} "체크아웃 성공"
// @Failure 400 {object} models.APIResponse "체크아웃 불가 상태"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/{id}/checkout [post]
func (h *AssetHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := pathAssetID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset ID is required", nil))
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Invalid request body", err))
		return
	}

	asset, err := h.service.Checkout(r.Context(), id, req, getAdminID(r))
	if err != nil {
		writeAssetError(w, err, "Failed to checkout asset")
		return
	}

	logger.WithFields(map[string]interface{}{
		"asset_id": id,
		"user_id":  req.UserID,
	}).Info("Asset checked out")
	json.NewEncoder(w).Encode(models.SuccessResponse("Asset checked out successfully", asset))
}

// Checkin 자산 반납
// @Summary 자산 반납
// @Description deployed 또는 overdue 상태의 자산을 반납 처리합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "자산 ID"
// @Success 200 {object} models.APIResponse{data=models.Asset} "반납 성공"
// @Failure 400 {object} models.APIResponse "반납 불가 상태"
// @Failure 404 {object} models.APIResponse "자산 없음"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/{id}/checkin [post]
func (h *AssetHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	id := pathAssetID(r)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse("Asset ID is required", nil))
		return
	}

	asset, err := h.service.Checkin(r.Context(), id, getAdminID(r))
	if err != nil {
		writeAssetError(w, err, "Failed to checkin asset")
		return
	}

	logger.WithFields(map[string]interface{}{"asset_id": id}).Info("Asset checked in")
	json.NewEncoder(w).Encode(models.SuccessResponse("Asset checked in successfully", asset))
}

// CleanupKnox 고아 Knox ID 일괄 정리
// @Summary 고아 Knox ID 정리
// @Description 체크아웃 상태가 아닌 자산에 남아있는 Knox ID를 일괄 제거합니다
// @Tags 자산
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=models.KnoxCleanupResult} "정리 성공"
// @Failure 401 {object} models.APIResponse "인증 필요"
// @Failure 500 {object} models.APIResponse "서버 에러"
// @Router /api/assets/cleanup-knox [post]
func (h *AssetHandler) CleanupKnox(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CleanupOrphanKnoxIDs(r.Context(), getAdminID(r))
	if err != nil {
		logger.Error("Knox cleanup failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse("Failed to cleanup Knox IDs", err))
		return
	}

	logger.WithFields(map[string]interface{}{"count": result.Count}).Info("Orphan Knox IDs cleared")
	json.NewEncoder(w).Encode(models.SuccessResponse("Knox cleanup completed", result))
}
