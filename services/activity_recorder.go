package services

import (
	"context"

	"assettrack/logger"
	"assettrack/utils"
)

// ActivityRecorder는 모든 상태 변경 작업에 대한 감사 로그를 기록합니다.
// Recording is fire-and-forget: failures are logged and never propagated to
// the caller's success path.
type ActivityRecorder interface {
	Record(ctx context.Context, action, itemType, itemID, userID, notes string)
}

type sqlActivityRecorder struct {
	db SQLExecutor
}

// NewActivityRecorder는 activities 테이블에 기록하는 ActivityRecorder를 생성합니다.
func NewActivityRecorder(db SQLExecutor) ActivityRecorder {
	return &sqlActivityRecorder{db: db}
}

func (r *sqlActivityRecorder) Record(ctx context.Context, action, itemType, itemID, userID, notes string) {
	var user any
	if userID != "" {
		user = userID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (action, item_type, item_id, user_id, timestamp, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		action, itemType, itemID, user, utils.NowDateTime(), notes,
	)
	if err != nil {
		logger.Error("Failed to record activity (%s %s %s): %v", action, itemType, itemID, err)
	}
}
