package service_test

import (
	"testing"
	"time"

	"github.com/neurothrive/thrive/internal/service"
)

func TestReplaceCouponsMatchAndExpire(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	today := time.Date(2026, 6, 10, 12, 0, 0, 0, time.Local)
	_, err := service.ReplaceCoupons(db, []service.CouponImport{
		{RemoteID: "c1", ItemName: "Rolled Oats", DiscountAmount: 1.5, DiscountType: "amount", ExpirationDate: today.AddDate(0, 0, 3), IsActive: true},
		{RemoteID: "c2", ItemName: "Milk", DiscountAmount: 10, DiscountType: "percent", ExpirationDate: today.AddDate(0, 0, -1), IsActive: true},
	}, today)
	if err != nil {
		t.Fatalf("replace coupons: %v", err)
	}

	matched, err := service.MatchCoupons(db, []string{"oats", "bananas"})
	if err != nil {
		t.Fatalf("match coupons: %v", err)
	}
	if len(matched) != 1 || matched[0].RemoteID != "c1" {
		t.Fatalf("expected oats coupon match, got %+v", matched)
	}

	n, err := service.DeactivateExpiredCoupons(db, today)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired coupon, got %d", n)
	}
	active, err := service.ListCoupons(db, service.CouponFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].RemoteID != "c1" {
		t.Fatalf("unexpected active coupons: %+v", active)
	}

	if _, err := service.ReplaceCoupons(db, []service.CouponImport{
		{RemoteID: "c3", ItemName: "Rice", DiscountAmount: 2, ExpirationDate: today, IsActive: true},
	}, today); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	all, err := service.ListCoupons(db, service.CouponFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].RemoteID != "c3" || all[0].DiscountType != "amount" {
		t.Fatalf("expected wholesale replacement, got %+v", all)
	}
}
