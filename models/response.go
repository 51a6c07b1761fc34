package models

// APIResponse 모든 엔드포인트가 공유하는 응답 봉투
type APIResponse struct {
	Status  string      `json:"status"` // success, error
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginatedResponse 목록 조회용 페이징 응답 봉투
type PaginatedResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Meta    Pagination  `json:"meta"`
}

// Pagination 페이징 메타 정보
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
}

// SuccessResponse 성공 응답을 만든다
func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

// ErrorResponse 에러 응답을 만든다. err가 nil이면 message만 내려간다
func ErrorResponse(message string, err error) APIResponse {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return APIResponse{
		Status:  "error",
		Message: message,
		Error:   errMsg,
	}
}

// PagedResponse 페이징 메타를 계산해 목록 응답을 만든다
func PagedResponse(message string, data interface{}, page, pageSize, totalCount int) PaginatedResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}
	return PaginatedResponse{
		Status:  "success",
		Message: message,
		Data:    data,
		Meta: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalCount: totalCount,
		},
	}
}
