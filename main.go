package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"assettrack/database"
	_ "assettrack/docs" // Swagger 문서
	"assettrack/handlers"
	"assettrack/logger"
	"assettrack/middleware"
	"assettrack/scheduler"
	"assettrack/services"

	httpSwagger "github.com/swaggo/http-swagger"
)

var (
	assetHTTPHandler   *handlers.AssetHandler
	licenseHTTPHandler *handlers.LicenseHandler
)

// @title AssetTrack Server API
// @version 1.0
// @description 자산 및 소프트웨어 라이선스 수명주기 관리 서버
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT 토큰을 입력하세요. 형식: Bearer {token}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// 로거 초기화
	logConfig := logger.Config{
		Level:      logger.INFO, // 운영: INFO, 개발: DEBUG
		LogDir:     envOr("LOG_DIR", "./logs"),
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,                // 7일
		UseColor:   true,
		ShowCaller: false,
		Prefix:     "",
	}
	if envOr("LOG_LEVEL", "") == "debug" {
		logConfig.Level = logger.DEBUG
	}

	if err := logger.Initialize(logConfig); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}

	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Info("🚀 AssetTrack Server Starting")
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// 데이터베이스 초기화 (기본: SQLite, DB_TYPE=mysql 시 MySQL)
	// MySQL DSN 형식: "user:password@tcp(host:port)/dbname"
	dbType := envOr("DB_TYPE", "sqlite")
	dbDSN := envOr("DB_DSN", "./assettrack.db")
	if err := database.Initialize(dbType, dbDSN); err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 서비스 계층 초기화
	sqlExecutor := services.NewSQLExecutor(database.DB)
	activityRecorder := services.NewActivityRecorder(sqlExecutor)
	assetService := services.NewAssetService(sqlExecutor, activityRecorder)
	licenseService := services.NewLicenseService(sqlExecutor, activityRecorder)

	handlers.SetActivityRecorder(activityRecorder)
	assetHTTPHandler = handlers.NewAssetHandler(assetService)
	licenseHTTPHandler = handlers.NewLicenseHandler(licenseService)

	// 스케줄러 시작 (만료된 라이선스 상태 자동 갱신)
	scheduler.StartScheduler(licenseService, activityRecorder)

	// 라우터 설정
	mux := http.NewServeMux()

	// Swagger 문서
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Public 엔드포인트
	mux.HandleFunc("/", homeHandler)
	mux.HandleFunc("/health", healthHandler)

	// 인증 API (관리자)
	mux.HandleFunc("/api/admin/login",
		middleware.ChainMiddleware(
			handlers.Login,
			middleware.LoggingMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 관리자 API (인증 필요)
	mux.HandleFunc("/api/admin/me",
		middleware.ChainMiddleware(
			handlers.GetMe,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/admin/change-password",
		middleware.ChainMiddleware(
			handlers.ChangePassword,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 자산 관리 API (인증 필요)
	mux.HandleFunc("/api/assets",
		middleware.ChainMiddleware(
			assetCollectionHandler,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/assets/",
		middleware.ChainMiddleware(
			assetDetailHandler,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 라이선스 관리 API (인증 필요)
	mux.HandleFunc("/api/licenses",
		middleware.ChainMiddleware(
			licenseCollectionHandler,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/licenses/",
		middleware.ChainMiddleware(
			licenseDetailHandler,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 대시보드 API
	mux.HandleFunc("/api/admin/dashboard/stats",
		middleware.ChainMiddleware(
			handlers.GetDashboardStats,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/admin/dashboard/activities",
		middleware.ChainMiddleware(
			handlers.GetRecentActivities,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 관리자 계정 관리 API (슈퍼 관리자 전용)
	mux.HandleFunc("/api/admin/admins",
		middleware.ChainMiddleware(
			handlers.ListAdmins,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.RequireRoles("super_admin"),
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/admin/admins/create",
		middleware.ChainMiddleware(
			handlers.CreateAdmin,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.RequireRoles("super_admin"),
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	mux.HandleFunc("/api/admin/admins/",
		middleware.ChainMiddleware(
			adminDetailHandler,
			middleware.LoggingMiddleware,
			middleware.AuthMiddleware,
			middleware.RequireRoles("super_admin"),
			middleware.CORSMiddleware,
			middleware.SetJSONHeader,
		))

	// 서버 설정
	port := ":" + envOr("PORT", "8080")
	server := &http.Server{
		Addr:         port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown 설정
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Warn("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		database.Close()
		os.Exit(0)
	}()

	logger.Info("Server listening on http://localhost%s", port)
	logger.Info("Swagger UI: http://localhost%s/swagger/index.html", port)
	logger.Info("Log directory: %s", logConfig.LogDir)
	logger.Info("Database: %s - %s", dbType, dbDSN)
	logger.Info("Default admin - username: admin, password: admin123")
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed to start: %v", err)
	}
}

// homeHandler 루트 핸들러
func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"success","message":"AssetTrack Server","version":"1.0.0"}`))
}

// healthHandler 헬스체크 핸들러
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"success","message":"Server is healthy"}`))
}

// assetCollectionHandler 자산 목록/등록 핸들러
func assetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assetHTTPHandler.List(w, r)
	case http.MethodPost:
		assetHTTPHandler.Create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// assetDetailHandler 자산 상세/수정/삭제 및 체크아웃/반납 핸들러
// 경로: /api/assets/{id}[/checkout|/checkin], /api/assets/by-tag, /api/assets/cleanup-knox
func assetDetailHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/assets/"), "/")
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "":
		w.WriteHeader(http.StatusNotFound)
		return
	case "by-tag":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		assetHTTPHandler.GetByTag(w, r)
		return
	case "cleanup-knox":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		assetHTTPHandler.CleanupKnox(w, r)
		return
	}

	ctx := context.WithValue(r.Context(), "path_asset_id", parts[0])
	r = r.WithContext(ctx)

	if len(parts) > 1 {
		if r.Method != http.MethodPost || len(parts) > 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch parts[1] {
		case "checkout":
			assetHTTPHandler.Checkout(w, r)
		case "checkin":
			assetHTTPHandler.Checkin(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		assetHTTPHandler.Get(w, r)
	case http.MethodPatch, http.MethodPut:
		assetHTTPHandler.Update(w, r)
	case http.MethodDelete:
		assetHTTPHandler.Delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// licenseCollectionHandler 라이선스 목록/등록 핸들러
func licenseCollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		licenseHTTPHandler.List(w, r)
	case http.MethodPost:
		licenseHTTPHandler.Create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// licenseDetailHandler 라이선스 상세/수정/삭제 및 시트 할당 핸들러
// 경로: /api/licenses/{id}[/assign|/assignments]
func licenseDetailHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/licenses/"), "/")
	parts := strings.Split(path, "/")

	if parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ctx := context.WithValue(r.Context(), "path_license_id", parts[0])
	r = r.WithContext(ctx)

	if len(parts) > 1 {
		if len(parts) > 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case parts[1] == "assign" && r.Method == http.MethodPost:
			licenseHTTPHandler.AssignSeat(w, r)
		case parts[1] == "assignments" && r.Method == http.MethodGet:
			licenseHTTPHandler.ListAssignments(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		licenseHTTPHandler.Get(w, r)
	case http.MethodPatch, http.MethodPut:
		licenseHTTPHandler.Update(w, r)
	case http.MethodDelete:
		licenseHTTPHandler.Delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// adminDetailHandler 관리자 상세/삭제 및 비밀번호 초기화 핸들러
// 경로: /api/admin/admins/{admin_id}[/reset-password]
func adminDetailHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/admins/"), "/")
	parts := strings.Split(path, "/")

	if parts[0] == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"Invalid path"}`))
		return
	}

	ctx := context.WithValue(r.Context(), "path_admin_id", parts[0])
	r = r.WithContext(ctx)

	switch r.Method {
	case http.MethodPost:
		if len(parts) > 1 && parts[1] == "reset-password" {
			handlers.ResetAdminPassword(w, r)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"Invalid request"}`))
	case http.MethodDelete:
		handlers.DeleteAdmin(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
