package stats

import (
	"context"
	"testing"

	"backend-stridehub/internal/apperr"

	"github.com/pashagolub/pgxmock/v3"
)

func TestOnCompleteAppliesIncrements(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService()

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1", 5.2, int64(1800), 52).
		WillReturnRows(pgxmock.NewRows([]string{"xp"}).AddRow(152))

	res, err := svc.OnComplete(context.Background(), mock, "user-1", 5.2, 1800)
	if err != nil {
		t.Fatalf("on complete: %v", err)
	}
	if res.XP != 152 || res.Level != 1 || res.LeveledUp {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOnCompleteReportsSingleLevelUp(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService()

	// 2250 XP run jumps from 950 to 3200: crosses levels 2, 3 and 4 at once,
	// reported as one level-up carrying the final level.
	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1", 225.0, int64(86400), 2250).
		WillReturnRows(pgxmock.NewRows([]string{"xp"}).AddRow(3200))

	res, err := svc.OnComplete(context.Background(), mock, "user-1", 225.0, 86400)
	if err != nil {
		t.Fatalf("on complete: %v", err)
	}
	if !res.LeveledUp || res.Level != 4 {
		t.Fatalf("expected single level-up to 4, got %+v", res)
	}
}

func TestOnCompleteUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService()

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("ghost", 1.0, int64(60), 10).
		WillReturnRows(pgxmock.NewRows([]string{"xp"}))

	_, err = svc.OnComplete(context.Background(), mock, "ghost", 1.0, 60)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOnDeleteReversesWithClamp(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService()

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1", 10.0, int64(3600), 100).
		WillReturnRows(pgxmock.NewRows([]string{"xp"}).AddRow(0))

	res, err := svc.OnDelete(context.Background(), mock, "user-1", 10.0, 3600, 0)
	if err != nil {
		t.Fatalf("on delete: %v", err)
	}
	if res.XP != 0 || res.Level != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOnDeleteIncludesAchievementXP(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService()

	// 5 km run earned 50 XP from distance and 100 from an unlock; reversal
	// removes both in one decrement.
	mock.ExpectQuery(`UPDATE users`).
		WithArgs("user-1", 5.0, int64(1500), 150).
		WillReturnRows(pgxmock.NewRows([]string{"xp"}).AddRow(0))

	res, err := svc.OnDelete(context.Background(), mock, "user-1", 5.0, 1500, 100)
	if err != nil {
		t.Fatalf("on delete: %v", err)
	}
	if res.XP != 0 {
		t.Fatalf("expected xp back to 0, got %d", res.XP)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestXPForDistanceFloors(t *testing.T) {
	if got := XPForDistance(5.29); got != 52 {
		t.Fatalf("expected 52, got %d", got)
	}
	if got := XPForDistance(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
