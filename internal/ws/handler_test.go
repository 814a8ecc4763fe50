package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type stubValidator struct {
	claims     *models.SessionClaims
	tokenErr   error
	sessionErr error
}

func (s *stubValidator) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return s.claims, nil
}

func (s *stubValidator) CheckSession(ctx context.Context, claims *models.SessionClaims) (*models.UserInfo, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return &models.UserInfo{ID: claims.UserID}, nil
}

func serveWS(auth *stubValidator, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewHub(zap.NewNop()), auth, nil, zap.NewNop())
	r := gin.New()
	r.GET("/ws", h.Serve)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestServeMissingToken(t *testing.T) {
	w := serveWS(&stubValidator{}, "/ws")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "sessionExpired")
}

func TestServeSupersededSessionGetsExpiredPayload(t *testing.T) {
	auth := &stubValidator{
		claims:     &models.SessionClaims{UserID: "u1", SessionID: "s1"},
		sessionErr: appErrors.ErrSessionExpired,
	}
	w := serveWS(auth, "/ws?token=tok")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["sessionExpired"])
}

// A backend failure during the session check must not masquerade as a
// superseded session; the client would log the user out over a blip.
func TestServeInternalErrorIsNotExpired(t *testing.T) {
	auth := &stubValidator{
		claims:     &models.SessionClaims{UserID: "u1", SessionID: "s1"},
		sessionErr: appErrors.Clone(appErrors.ErrInternal, "failed to load session"),
	}
	w := serveWS(auth, "/ws?token=tok")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "sessionExpired")
}
