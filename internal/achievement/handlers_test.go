package achievement

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func authStub(c *fiber.Ctx) error {
	c.Locals("user_id", "user-1")
	return c.Next()
}

func TestAchievementHandlersCreateAndList(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO achievements`).
		WithArgs(pgxmock.AnyArg(), TypeTotalDistance, "Century", "Run 100 km total", 100.0, 500).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	mock.ExpectQuery(`SELECT id, type, name, COALESCE\(description,''\), threshold, xp_reward, created_at`).
		WillReturnRows(ruleRows().AddRow("ach-1", TypeTotalDistance, "Century", "Run 100 km total", 100.0, 500, time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(mock, nil), authStub)

	body, _ := json.Marshal(Achievement{Type: TypeTotalDistance, Name: "Century", Description: "Run 100 km total", Threshold: 100, XPReward: 500})
	req := httptest.NewRequest(http.MethodPost, "/achievements/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/achievements/", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
}

func TestAchievementHandlersCreateValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(nil, nil), authStub)

	body, _ := json.Marshal(Achievement{Type: "streak", Name: "Weekly", Threshold: 7})
	req := httptest.NewRequest(http.MethodPost, "/achievements/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type should be rejected")
	}

	body, _ = json.Marshal(Achievement{Type: TypeTotalRuns, Threshold: 10})
	req = httptest.NewRequest(http.MethodPost, "/achievements/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing name should be rejected")
	}
}

func TestAchievementHandlersForUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT user_id, achievement_id, progress, unlocked_at, updated_at`).
		WithArgs("user-1", "", 20).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "achievement_id", "progress", "unlocked_at", "updated_at"}).
			AddRow("user-1", "ach-1", 42.0, nil, now))

	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(mock, nil), authStub)

	req := httptest.NewRequest(http.MethodGet, "/achievements/me", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("for user status: %v", err)
	}
}
