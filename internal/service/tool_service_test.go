package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type mockToolRepo struct {
	tools   map[string]*models.Tool
	list    []models.Tool
	ratings []models.ToolRating
	rated   *models.ToolRating
}

func (m *mockToolRepo) List(ctx context.Context, category string) ([]models.Tool, error) {
	return m.list, nil
}

func (m *mockToolRepo) FindByID(ctx context.Context, id string) (*models.Tool, error) {
	if tool, ok := m.tools[id]; ok {
		return tool, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockToolRepo) Create(ctx context.Context, tool *models.Tool) error {
	tool.ID = "new-tool"
	return nil
}

func (m *mockToolRepo) Update(ctx context.Context, tool *models.Tool) error { return nil }
func (m *mockToolRepo) Delete(ctx context.Context, id string) error         { return nil }

func (m *mockToolRepo) UpsertRating(ctx context.Context, rating *models.ToolRating) error {
	m.rated = rating
	return nil
}

func (m *mockToolRepo) ListRatings(ctx context.Context, toolID string) ([]models.ToolRating, error) {
	return m.ratings, nil
}

func userWithRole(role models.UserRole, cpf string) *models.UserInfo {
	now := time.Now().UTC()
	return &models.UserInfo{
		ID:     "u1",
		CPF:    cpf,
		Role:   role,
		Access: models.ResolveAccess(role, nil, now),
	}
}

func linkPtr() *string {
	link := "https://tools.example.com/calc"
	return &link
}

func TestListForUserProjectsLockState(t *testing.T) {
	repo := &mockToolRepo{list: []models.Tool{
		{ID: "t1", Name: "Open", AccessLevel: models.RoleEBasic, LinkType: models.ToolLinkExternal, Link: linkPtr()},
		{ID: "t2", Name: "Premium", AccessLevel: models.RoleEMaster, LinkType: models.ToolLinkExternal, Link: linkPtr()},
	}}
	svc := NewToolService(repo, nil, time.Minute, nil, zap.NewNop())

	views, err := svc.ListForUser(context.Background(), userWithRole(models.RoleETool, ""), "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.False(t, views[0].Locked)
	assert.NotNil(t, views[0].Link)
	assert.True(t, views[1].Locked)
	assert.Nil(t, views[1].Link)
}

func TestRateLockedToolForbidden(t *testing.T) {
	repo := &mockToolRepo{tools: map[string]*models.Tool{
		"t1": {ID: "t1", AccessLevel: models.RoleEMaster, LinkType: models.ToolLinkExternal, Link: linkPtr()},
	}}
	svc := NewToolService(repo, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Rate(context.Background(), userWithRole(models.RoleEBasic, ""), "t1", models.RateToolRequest{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.rated)
}

func TestRateReachableTool(t *testing.T) {
	repo := &mockToolRepo{tools: map[string]*models.Tool{
		"t1": {ID: "t1", AccessLevel: models.RoleETool, LinkType: models.ToolLinkExternal, Link: linkPtr()},
	}}
	svc := NewToolService(repo, nil, time.Minute, nil, zap.NewNop())

	rating, err := svc.Rate(context.Background(), userWithRole(models.RoleETool, ""), "t1", models.RateToolRequest{Rating: 4, Comment: "useful"})
	require.NoError(t, err)
	assert.Equal(t, 4, rating.Rating)
	assert.Equal(t, "u1", repo.rated.UserID)
}

func TestRateCPFRestrictedToolWithListedUser(t *testing.T) {
	repo := &mockToolRepo{tools: map[string]*models.Tool{
		"t1": {
			ID:             "t1",
			AccessLevel:    models.RoleEMaster,
			LinkType:       models.ToolLinkExternal,
			Link:           linkPtr(),
			RestrictedCPFs: pq.StringArray{"52998224725"},
		},
	}}
	svc := NewToolService(repo, nil, time.Minute, nil, zap.NewNop())

	// A basic user on the list can rate; a master off the list cannot.
	_, err := svc.Rate(context.Background(), userWithRole(models.RoleEBasic, "52998224725"), "t1", models.RateToolRequest{Rating: 5})
	assert.NoError(t, err)

	_, err = svc.Rate(context.Background(), userWithRole(models.RoleEMaster, "11144477735"), "t1", models.RateToolRequest{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateToolCustomRequiresHTML(t *testing.T) {
	svc := NewToolService(&mockToolRepo{}, nil, time.Minute, newTestValidator(t), zap.NewNop())

	_, err := svc.CreateTool(context.Background(), models.ToolCreateRequest{
		Name:        "Widget",
		Category:    "calculators",
		AccessLevel: models.RoleEBasic,
		LinkType:    models.ToolLinkCustom,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateToolNormalizesRestrictedCPFs(t *testing.T) {
	repo := &mockToolRepo{}
	v := newTestValidator(t)
	svc := NewToolService(repo, nil, time.Minute, v, zap.NewNop())

	tool, err := svc.CreateTool(context.Background(), models.ToolCreateRequest{
		Name:           "Widget",
		Category:       "calculators",
		AccessLevel:    models.RoleEBasic,
		LinkType:       models.ToolLinkExternal,
		Link:           linkPtr(),
		RestrictedCPFs: []string{"529.982.247-25"},
	})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"52998224725"}, tool.RestrictedCPFs)
}

func TestGetForUserNotFound(t *testing.T) {
	svc := NewToolService(&mockToolRepo{}, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.GetForUser(context.Background(), userWithRole(models.RoleEBasic, ""), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
