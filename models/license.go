package models

import (
	"strconv"
	"time"
)

// SeatsUnlimited is the literal seats value for licenses without a seat limit.
const SeatsUnlimited = "Unlimited"

// License 라이선스 정보
type License struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	LicenseKey     string `json:"license_key" db:"license_key"`
	Seats          string `json:"seats" db:"seats"` // numeric string or "Unlimited"
	AssignedSeats  int    `json:"assigned_seats" db:"assigned_seats"`
	ExpirationDate string `json:"expiration_date" db:"expiration_date"` // YYYY-MM-DD, empty when none
	Status         string `json:"status" db:"status"`                   // active, unused, expired
	Notes          string `json:"notes" db:"notes"`
	CreatedAt      string `json:"created_at" db:"created_at"`
	UpdatedAt      string `json:"updated_at" db:"updated_at"`
}

// License status constants
const (
	LicenseStatusActive  = "active"
	LicenseStatusUnused  = "unused"
	LicenseStatusExpired = "expired"
)

// LicenseAssignment 라이선스 시트 할당 내역 (append-only)
type LicenseAssignment struct {
	ID           string `json:"id" db:"id"`
	LicenseID    string `json:"license_id" db:"license_id"`
	AssignedTo   string `json:"assigned_to" db:"assigned_to"`
	AssignedDate string `json:"assigned_date" db:"assigned_date"`
	Notes        string `json:"notes" db:"notes"`
}

// CreateLicenseRequest 라이선스 생성 요청
type CreateLicenseRequest struct {
	Name           string `json:"name" binding:"required"`
	LicenseKey     string `json:"license_key"`
	Seats          string `json:"seats" binding:"required"`
	ExpirationDate string `json:"expiration_date"`
	Notes          string `json:"notes"`
}

// UpdateLicenseRequest 라이선스 수정 요청 (partial; nil fields are left untouched)
type UpdateLicenseRequest struct {
	Name           *string `json:"name"`
	LicenseKey     *string `json:"license_key"`
	Seats          *string `json:"seats"`
	AssignedSeats  *int    `json:"assigned_seats"`
	ExpirationDate *string `json:"expiration_date"`
	Notes          *string `json:"notes"`
}

// AssignSeatRequest 시트 할당 요청
type AssignSeatRequest struct {
	AssignedTo string `json:"assigned_to" binding:"required"`
	Notes      string `json:"notes"`
}

// AssignSeatResult 시트 할당 응답
type AssignSeatResult struct {
	Assignment LicenseAssignment `json:"assignment"`
	License    License           `json:"license"`
}

// SeatLimit returns the numeric seat limit. Unlimited (or unparseable) seats
// report ok=false and impose no limit.
func SeatLimit(seats string) (limit int, ok bool) {
	if seats == SeatsUnlimited {
		return 0, false
	}
	n, err := strconv.Atoi(seats)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidSeats reports whether seats is "Unlimited" or a non-negative numeric string.
func ValidSeats(seats string) bool {
	if seats == SeatsUnlimited {
		return true
	}
	n, err := strconv.Atoi(seats)
	return err == nil && n >= 0
}

// RecomputeLicenseStatus derives the license status from its expiration date and
// assigned seat count. This is the single source of truth for the status column;
// every mutator that touches assigned_seats or expiration_date persists its result.
func RecomputeLicenseStatus(expirationDate string, assignedSeats int) string {
	if expirationDate != "" {
		if exp, err := time.Parse("2006-01-02", expirationDate); err == nil {
			today, _ := time.Parse("2006-01-02", time.Now().Format("2006-01-02"))
			if exp.Before(today) {
				return LicenseStatusExpired
			}
		}
	}
	if assignedSeats > 0 {
		return LicenseStatusActive
	}
	return LicenseStatusUnused
}
