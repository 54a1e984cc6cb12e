package service

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neurothrive/thrive/internal/model"
)

type CouponImport struct {
	RemoteID       string
	ItemName       string
	DiscountAmount float64
	DiscountType   string
	ExpirationDate time.Time
	IsActive       bool
}

type CouponFilter struct {
	ActiveOnly bool
	Limit      int
}

const couponColumns = `id, item_name, discount_amount, discount_type, expiration_date, is_active, last_synced_at, remote_id`

// ReplaceCoupons swaps the whole coupon table for the pulled set.
func ReplaceCoupons(db *sql.DB, coupons []CouponImport, pulledAt time.Time) (int, error) {
	for i, c := range coupons {
		if strings.TrimSpace(c.RemoteID) == "" {
			return 0, fmt.Errorf("coupon %d: remote id is required", i+1)
		}
		if strings.TrimSpace(c.ItemName) == "" {
			return 0, fmt.Errorf("coupon %q: item name is required", c.RemoteID)
		}
		if c.DiscountAmount < 0 {
			return 0, fmt.Errorf("coupon %q: discount must be >= 0", c.RemoteID)
		}
	}
	stamp := formatTime(nowOr(pulledAt))

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin coupon replace: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM coupons`); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear coupons: %w", err)
	}
	for _, c := range coupons {
		discountType := normalizeName(c.DiscountType)
		if discountType == "" {
			discountType = "amount"
		}
		if _, err := tx.Exec(`
INSERT INTO coupons(id, item_name, discount_amount, discount_type, expiration_date, is_active, last_synced_at, synced, remote_id)
VALUES(?, ?, ?, ?, ?, ?, ?, 1, ?)
`, newID(), strings.TrimSpace(c.ItemName), c.DiscountAmount, discountType, formatTime(routineDay(c.ExpirationDate)), c.IsActive, stamp, c.RemoteID); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert coupon %q: %w", c.RemoteID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit coupon replace: %w", err)
	}
	return len(coupons), nil
}

func ListCoupons(db *sql.DB, f CouponFilter) ([]model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE 1=1`
	args := make([]any, 0)
	if f.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY expiration_date ASC, item_name ASC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))
	return queryCoupons(db, query, args...)
}

// MatchCoupons finds active coupons whose item name contains any of names,
// or is contained by one of them.
func MatchCoupons(db *sql.DB, names []string) ([]model.Coupon, error) {
	active, err := queryCoupons(db, `SELECT `+couponColumns+` FROM coupons WHERE is_active = 1 ORDER BY item_name ASC`)
	if err != nil {
		return nil, err
	}
	out := make([]model.Coupon, 0)
	for _, c := range active {
		couponName := normalizeName(c.ItemName)
		for _, n := range names {
			n = normalizeName(n)
			if n == "" {
				continue
			}
			if strings.Contains(couponName, n) || strings.Contains(n, couponName) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

// DeactivateExpiredCoupons flags coupons whose expiration day is before the
// day of now.
func DeactivateExpiredCoupons(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec(`UPDATE coupons SET is_active = 0 WHERE is_active = 1 AND expiration_date < ?`, formatTime(routineDay(now)))
	if err != nil {
		return 0, fmt.Errorf("deactivate expired coupons: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve deactivated coupons: %w", err)
	}
	return n, nil
}

func queryCoupons(db *sql.DB, query string, args ...any) ([]model.Coupon, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	out := make([]model.Coupon, 0)
	for rows.Next() {
		var c model.Coupon
		var expires, lastSynced string
		if err := rows.Scan(&c.ID, &c.ItemName, &c.DiscountAmount, &c.DiscountType, &expires, &c.IsActive, &lastSynced, &c.RemoteID); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		if c.ExpirationDate, err = parseTime("expiration_date", expires); err != nil {
			return nil, err
		}
		if c.LastSyncedAt, err = parseTime("last_synced_at", lastSynced); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}
	return out, nil
}
