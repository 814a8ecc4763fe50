package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	usersByCPF   map[string]*models.User
	resetTokens  map[string]*models.User
	createdUser  *models.User
	lastLoginSet bool
	passwordSet  string
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByCPF(ctx context.Context, cpf string) (*models.User, error) {
	if u, ok := m.usersByCPF[cpf]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.createdUser = user
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordSet = passwordHash
	return nil
}

func (m *mockUserRepo) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return nil
}

func (m *mockUserRepo) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	if u, ok := m.resetTokens[token]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ClearResetToken(ctx context.Context, id string) error {
	return nil
}

type mockSessionRepo struct {
	sessions map[string]*models.ActiveSession
	byUser   map[string]*models.ActiveSession
	touched  []string
	deleted  []string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.ActiveSession) error {
	session.ID = "new-session"
	if m.sessions == nil {
		m.sessions = make(map[string]*models.ActiveSession)
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.ActiveSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindByUserID(ctx context.Context, userID string) (*models.ActiveSession, error) {
	if s, ok := m.byUser[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Touch(ctx context.Context, id string, ts time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.sessions, id)
	return nil
}

type mockNotifier struct {
	superseded []string
}

func (m *mockNotifier) NotifySessionSuperseded(userID, sessionID string) {
	m.superseded = append(m.superseded, sessionID)
}

type mockMailer struct {
	to    string
	token string
	err   error
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	if m.err != nil {
		return m.err
	}
	m.to = to
	m.token = token
	return nil
}

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, RegisterValidations(v))
	return v
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:   "secret",
		TokenExpiry:   time.Hour,
		ResetTokenTTL: time.Hour,
		Issuer:        "test",
	}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesTokenBoundToSession(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Role: models.RoleETool}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	sessions := &mockSessionRepo{}
	svc := NewAuthService(users, sessions, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.True(t, users.lastLoginSet)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "new-session", claims.SessionID)
	assert.Equal(t, models.RoleETool, claims.Role)
}

func TestLoginSupersedesPreviousSession(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Role: models.RoleEBasic}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	sessions := &mockSessionRepo{
		byUser: map[string]*models.ActiveSession{"u1": {ID: "old-session", UserID: "u1"}},
	}
	notifier := &mockNotifier{}
	svc := NewAuthService(users, sessions, notifier, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, []string{"old-session"}, notifier.superseded)
}

func TestLoginInvalidPassword(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Role: models.RoleEBasic}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginTokenCarriesEffectiveRole(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashOf(t, "password"), Role: models.RoleEMaster, RoleExpiryDate: &expired}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEBasic, claims.Role)
	assert.Equal(t, models.RoleEBasic, res.User.Role)
	assert.False(t, res.User.Access.IsEMaster)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "taken@example.com"}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"taken@example.com": existing}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "someone",
		Email:    "taken@example.com",
		CPF:      "529.982.247-25",
		Password: "password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsDuplicateCPF(t *testing.T) {
	existing := &models.User{ID: "u1", CPF: "52998224725"}
	users := &mockUserRepo{usersByCPF: map[string]*models.User{"52998224725": existing}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "someone",
		Email:    "fresh@example.com",
		CPF:      "529.982.247-25",
		Password: "password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterNormalizesCPFAndStartsBasic(t *testing.T) {
	users := &mockUserRepo{}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "someone",
		Email:    "fresh@example.com",
		CPF:      "529.982.247-25",
		Password: "password",
	})
	require.NoError(t, err)
	assert.Equal(t, "52998224725", users.createdUser.CPF)
	assert.Equal(t, models.RoleEBasic, info.Role)
}

func TestRegisterRejectsInvalidCPF(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "someone",
		Email:    "fresh@example.com",
		CPF:      "111.111.111-11",
		Password: "password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCheckSessionExpiredWhenSessionGone(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.CheckSession(context.Background(), &models.SessionClaims{UserID: "u1", SessionID: "gone"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, appErrors.FromError(err).Code)
}

func TestCheckSessionExpiredOnUserMismatch(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]*models.ActiveSession{
		"s1": {ID: "s1", UserID: "someone-else"},
	}}
	svc := NewAuthService(&mockUserRepo{}, sessions, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.CheckSession(context.Background(), &models.SessionClaims{UserID: "u1", SessionID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, appErrors.FromError(err).Code)
}

func TestCheckSessionTouchesAndReturnsUser(t *testing.T) {
	user := &models.User{ID: "u1", Username: "someone", Role: models.RoleETool}
	users := &mockUserRepo{usersByID: map[string]*models.User{"u1": user}}
	sessions := &mockSessionRepo{sessions: map[string]*models.ActiveSession{
		"s1": {ID: "s1", UserID: "u1"},
	}}
	svc := NewAuthService(users, sessions, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	info, err := svc.CheckSession(context.Background(), &models.SessionClaims{UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", info.ID)
	assert.Equal(t, models.RoleETool, info.Role)
	assert.Equal(t, []string{"s1"}, sessions.touched)
}

func TestLogoutDeletesSession(t *testing.T) {
	sessions := &mockSessionRepo{sessions: map[string]*models.ActiveSession{
		"s1": {ID: "s1", UserID: "u1"},
	}}
	svc := NewAuthService(&mockUserRepo{}, sessions, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.Logout(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, sessions.deleted)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestForgotPasswordSilentForUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"})
	assert.NoError(t, err)
}

func TestForgotPasswordMailsTokenToAccountAddress(t *testing.T) {
	user := &models.User{ID: "u1", Username: "someone", Email: "user@example.com"}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	mail := &mockMailer{}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, mail, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", mail.to)
	assert.NotEmpty(t, mail.token)
}

func TestForgotPasswordSkipsMailForUnknownEmail(t *testing.T) {
	mail := &mockMailer{}
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, nil, mail, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, mail.to)
}

func TestForgotPasswordSurfacesMailFailure(t *testing.T) {
	user := &models.User{ID: "u1", Username: "someone", Email: "user@example.com"}
	users := &mockUserRepo{usersByEmail: map[string]*models.User{"user@example.com": user}}
	mail := &mockMailer{err: errors.New("smtp down")}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, mail, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "user@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Minute)
	user := &models.User{ID: "u1", ResetTokenExpiresAt: &expired}
	users := &mockUserRepo{resetTokens: map[string]*models.User{"tok": user}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "tok", NewPassword: "newpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResetPasswordUpdatesHash(t *testing.T) {
	valid := time.Now().UTC().Add(time.Hour)
	user := &models.User{ID: "u1", ResetTokenExpiresAt: &valid}
	users := &mockUserRepo{resetTokens: map[string]*models.User{"tok": user}}
	svc := NewAuthService(users, &mockSessionRepo{}, nil, nil, nil, newTestValidator(t), zap.NewNop(), testAuthConfig())

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "tok", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwordSet), []byte("newpassword")))
}
