package scheduler

import (
	"context"
	"fmt"
	"time"

	"assettrack/logger"
	"assettrack/models"
	"assettrack/services"
)

// StartScheduler 스케줄러 시작
func StartScheduler(licenses services.LicenseService, activity services.ActivityRecorder) {
	logger.Info("Scheduler started")

	// 1시간마다 실행
	ticker := time.NewTicker(1 * time.Hour)

	// 서버 시작 시 즉시 한 번 실행
	RefreshLicenseStatuses(licenses, activity)

	// 고루틴으로 주기적 실행
	go func() {
		for {
			<-ticker.C
			logger.Info("Scheduler tick: Running RefreshLicenseStatuses")
			RefreshLicenseStatuses(licenses, activity)
		}
	}()
}

// RefreshLicenseStatuses 라이선스 상태 재계산
// 만료일이 지난 라이선스를 expired로, 거꾸로 만료가 해제된 라이선스를
// 시트 수에 따라 active/unused로 되돌립니다.
func RefreshLicenseStatuses(licenses services.LicenseService, activity services.ActivityRecorder) {
	logger.Info("Running scheduled task: RefreshLicenseStatuses")

	ctx := context.Background()
	changed, err := licenses.RefreshStatuses(ctx)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Failed to refresh license statuses")
		return
	}

	logger.WithFields(map[string]interface{}{
		"count": changed,
	}).Info("License statuses refreshed")

	if changed > 0 {
		notes := fmt.Sprintf("자동으로 %d개의 라이선스 상태가 갱신되었습니다.", changed)
		activity.Record(ctx, models.ActionStatusRefresh, models.ItemTypeLicense, "batch", models.SystemUserID, notes)
	}
}
