package database

import (
	"database/sql"
	"fmt"

	"assettrack/logger"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

var DB *sql.DB
var dbType string

// Initialize 데이터베이스 초기화
// dbType: "sqlite" 또는 "mysql"
// dsn: SQLite 파일 경로 또는 MySQL DSN
func Initialize(t, dsn string) error {
	var err error

	if t == "" {
		t = "sqlite"
	}
	if dsn == "" {
		if t == "sqlite" {
			dsn = "./assettrack.db"
		}
	}

	dbType = t

	DB, err = sql.Open(dbType, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 전용: 외래키 강제 활성화 (기본값 off)
	if dbType == "sqlite" {
		if _, err := DB.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := CreateTables(DB, dbType); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := createDefaultAdmin(); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	logger.Info("Database initialized successfully (%s)", dbType)
	return nil
}

// CreateTables 테이블 생성. 테스트에서 인메모리 DB에 대해서도 호출됩니다.
func CreateTables(db *sql.DB, t string) error {
	// activities는 자동 증가 PK를 사용하므로 드라이버별 문법이 다릅니다.
	activityPK := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if t == "mysql" {
		activityPK = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS admins (
			id VARCHAR(50) PRIMARY KEY,
			username VARCHAR(100) UNIQUE NOT NULL,
			password VARCHAR(255) NOT NULL,
			email VARCHAR(100) NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'admin',
			created_at VARCHAR(50) NOT NULL DEFAULT '',
			updated_at VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS assets (
			id VARCHAR(50) PRIMARY KEY,
			asset_tag VARCHAR(100) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'available',
			knox_id VARCHAR(100),
			assigned_to VARCHAR(100),
			checkout_date VARCHAR(50),
			expected_checkin_date VARCHAR(50),
			finance_updated BOOLEAN NOT NULL DEFAULT 0,
			notes TEXT,
			created_at VARCHAR(50) NOT NULL DEFAULT '',
			updated_at VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS licenses (
			id VARCHAR(50) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			license_key VARCHAR(255) NOT NULL,
			seats VARCHAR(50) NOT NULL DEFAULT '1',
			assigned_seats INT NOT NULL DEFAULT 0,
			expiration_date VARCHAR(50) NOT NULL DEFAULT '',
			status VARCHAR(50) NOT NULL DEFAULT 'unused',
			notes TEXT,
			created_at VARCHAR(50) NOT NULL DEFAULT '',
			updated_at VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS license_assignments (
			id VARCHAR(50) PRIMARY KEY,
			license_id VARCHAR(50) NOT NULL,
			assigned_to VARCHAR(255) NOT NULL,
			assigned_date VARCHAR(50) NOT NULL DEFAULT '',
			notes TEXT,
			FOREIGN KEY (license_id) REFERENCES licenses(id)
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS activities (
			id %s,
			action VARCHAR(100) NOT NULL,
			item_type VARCHAR(50) NOT NULL,
			item_id VARCHAR(50) NOT NULL,
			user_id VARCHAR(100),
			timestamp VARCHAR(50) NOT NULL DEFAULT '',
			notes TEXT
		)`, activityPK),

		`CREATE INDEX IF NOT EXISTS idx_assets_tag ON assets(asset_tag)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_knox ON assets(knox_id)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_status ON licenses(status)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_expiration ON licenses(expiration_date)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_license ON license_assignments(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_item ON activities(item_type, item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_timestamp ON activities(timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
	}

	return nil
}

// createDefaultAdmin 기본 관리자 계정 생성
func createDefaultAdmin() error {
	var count int
	err := DB.QueryRow("SELECT COUNT(*) FROM admins").Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	// bcrypt 해시 (비밀번호: admin123)
	hashedPassword := "$2a$10$qSCYloReyQ4gid/Gxf4gquDv3LaMmzC/2lnxvnfAAKnRkkaqXoOha"

	query := `
		INSERT INTO admins (id, username, password, email, role)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = DB.Exec(query, "admin-001", "admin", hashedPassword, "admin@example.com", "super_admin")
	if err != nil {
		return err
	}

	logger.Info("Default admin created (username: admin, password: admin123)")
	return nil
}

// Close 데이터베이스 연결 종료
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
