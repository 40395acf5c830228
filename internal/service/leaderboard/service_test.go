package leaderboard

import (
	"context"
	"fmt"
	"testing"

	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/pkg/logger"
	"github.com/doefacil/doefacil-api/test/mocks"
)

func testLogger() *logger.Logger {
	return logger.New("error", "json", "stdout")
}

type mockPointsRepo struct {
	userLevels []models.UserLevel
	calls      int
}

func (m *mockPointsRepo) TopByPoints(limit int) ([]models.UserLevel, error) {
	m.calls++
	if limit > len(m.userLevels) {
		limit = len(m.userLevels)
	}
	return m.userLevels[:limit], nil
}

type mockUserRepo struct {
	users map[string]*models.User
}

func (m *mockUserRepo) GetByID(id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

type mockAchievementRepo struct {
	counts map[string]int64
}

func (m *mockAchievementRepo) CountByUser(userID string) (int64, error) {
	return m.counts[userID], nil
}

func TestService_Top(t *testing.T) {
	pointsRepo := &mockPointsRepo{userLevels: []models.UserLevel{
		{UserID: "auth0|alice", Level: 6, TotalPoints: 2500},
		{UserID: "auth0|bob", Level: 2, TotalPoints: 150},
	}}
	svc := NewServiceWithInterfaces(
		pointsRepo,
		&mockUserRepo{users: map[string]*models.User{
			"auth0|alice": {ID: "auth0|alice", Username: "alice"},
			"auth0|bob":   {ID: "auth0|bob", Username: "bob"},
		}},
		&mockAchievementRepo{counts: map[string]int64{"auth0|alice": 5}},
		mocks.NewMockCache(),
		testLogger(),
	)

	entries, err := svc.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("Top() failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Rank != 1 || first.Username != "alice" {
		t.Errorf("Expected alice at rank 1, got %+v", first)
	}
	if first.Title != "Patron" {
		t.Errorf("Expected title 'Patron' at 2500 points, got %q", first.Title)
	}
	if first.Achievements != 5 {
		t.Errorf("Expected 5 achievements, got %d", first.Achievements)
	}

	if entries[1].Rank != 2 || entries[1].Username != "bob" {
		t.Errorf("Expected bob at rank 2, got %+v", entries[1])
	}
}

func TestService_Top_Cached(t *testing.T) {
	pointsRepo := &mockPointsRepo{userLevels: []models.UserLevel{
		{UserID: "auth0|alice", Level: 1, TotalPoints: 50},
	}}
	svc := NewServiceWithInterfaces(
		pointsRepo,
		&mockUserRepo{users: map[string]*models.User{
			"auth0|alice": {ID: "auth0|alice", Username: "alice"},
		}},
		&mockAchievementRepo{},
		mocks.NewMockCache(),
		testLogger(),
	)
	ctx := context.Background()

	if _, err := svc.Top(ctx, 10); err != nil {
		t.Fatalf("Top() failed: %v", err)
	}
	if _, err := svc.Top(ctx, 10); err != nil {
		t.Fatalf("Second Top() failed: %v", err)
	}

	if pointsRepo.calls != 1 {
		t.Errorf("Expected the second call to hit the cache, repo called %d times", pointsRepo.calls)
	}
}

func TestService_Top_LimitClamping(t *testing.T) {
	userLevels := make([]models.UserLevel, 150)
	users := make(map[string]*models.User, 150)
	for i := range userLevels {
		id := fmt.Sprintf("auth0|user%d", i)
		userLevels[i] = models.UserLevel{UserID: id, Level: 1, TotalPoints: 150 - i}
		users[id] = &models.User{ID: id, Username: fmt.Sprintf("user%d", i)}
	}

	svc := NewServiceWithInterfaces(
		&mockPointsRepo{userLevels: userLevels},
		&mockUserRepo{users: users},
		&mockAchievementRepo{},
		mocks.NewMockCache(),
		testLogger(),
	)
	ctx := context.Background()

	entries, err := svc.Top(ctx, 0)
	if err != nil {
		t.Fatalf("Top() failed: %v", err)
	}
	if len(entries) != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, len(entries))
	}

	entries, err = svc.Top(ctx, 1000)
	if err != nil {
		t.Fatalf("Top() failed: %v", err)
	}
	if len(entries) != MaxLimit {
		t.Errorf("Expected max limit %d, got %d", MaxLimit, len(entries))
	}
}
