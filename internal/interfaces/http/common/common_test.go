package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		WriteSuccess(nil, w, http.StatusOK, "ok", actor)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (Envelope, map[string]any) {
	t.Helper()
	var raw struct {
		Envelope
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return raw.Envelope, raw.Data
}

func TestRequiredAuthenticatesActor(t *testing.T) {
	auth := NewAuthenticator([]JWTConfig{{Secret: testSecret, Issuer: "wellnest"}}, "", nil)
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "coach-1",
			Issuer:    "wellnest",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:      "Aiko",
		Role:      "COACH",
		CompanyID: "acme",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	auth.Required(echoActor()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env, data := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "coach-1", data["ID"])
	assert.Equal(t, "coach", data["Role"])
	assert.Equal(t, "acme", data["CompanyID"])
}

func TestRequiredRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator([]JWTConfig{{Secret: testSecret, Issuer: "wellnest"}}, "", nil)
	wrongIssuer := signToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "other"}})
	expired := signToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "x",
		Issuer:    "wellnest",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer " + wrongIssuer, "Bearer " + expired} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		auth.Required(echoActor()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		env, _ := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "unauthorized", env.Message)
	}
}

func TestOptionalAllowsAnonymous(t *testing.T) {
	auth := NewAuthenticator(nil, "", nil)
	rec := httptest.NewRecorder()
	auth.Optional(echoActor()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec)
	assert.Equal(t, "member", data["Role"])
	assert.Nil(t, data["CompanyID"])
}

func TestActorFromClaimsDefaultsUnknownRole(t *testing.T) {
	actor := ActorFromClaims(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}, Role: "superuser"})
	assert.Equal(t, domain.RoleMember, actor.Role)
	assert.Nil(t, actor.CompanyID)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{domain.Invalid("title", "title is required"), http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("load: %w", domain.ErrSurveyNotFound), http.StatusNotFound, "survey_not_found"},
		{domain.ErrApprovalNotFound, http.StatusNotFound, "approval_not_found"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: q9", domain.ErrQuestionNotOwned), http.StatusConflict, "question_not_owned"},
		{domain.ErrVersionMismatch, http.StatusConflict, "version_conflict"},
		{domain.ErrApprovalFrozen, http.StatusConflict, "approval_frozen"},
		{domain.ErrPartialWrite, http.StatusInternalServerError, "partial_write"},
		{fmt.Errorf("socket closed"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		assert.Equal(t, tc.status, mapped.Status, tc.err.Error())
		assert.Equal(t, tc.message, mapped.Message, tc.err.Error())
	}
	assert.Equal(t, "title: title is required", MapError(domain.Invalid("title", "title is required")).Detail)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(nil, rec, fmt.Errorf("mongo: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo")
}

func TestRateLimitPerActor(t *testing.T) {
	handler := RateLimit(rate.Every(time.Hour), 1, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(actorID string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(ContextWithActor(req.Context(), domain.Actor{ID: actorID}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusNoContent, call("b"))
}

func TestKeyedLimiterSweepsIdleKeysOncePerTTL(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	l := newKeyedLimiter(rate.Every(time.Hour), 1, time.Minute)
	l.lastSweep = start
	l.now = func() time.Time { return clock }
	at := func(seconds int) { clock = start.Add(time.Duration(seconds) * time.Second) }

	assert.True(t, l.allow("a"))
	at(30)
	assert.True(t, l.allow("b"))
	at(61)
	assert.True(t, l.allow("c"))
	assert.NotContains(t, l.limiters, "a")
	assert.Contains(t, l.limiters, "b")
	assert.Equal(t, clock, l.lastSweep)

	// "b" is idle past the TTL but the next sweep is not due yet
	at(100)
	assert.True(t, l.allow("d"))
	assert.Len(t, l.limiters, 3)

	at(121)
	assert.False(t, l.allow("c"))
	assert.NotContains(t, l.limiters, "b")
	assert.Len(t, l.limiters, 2)
	assert.Equal(t, clock, l.lastSweep)
}

func TestParsePaging(t *testing.T) {
	paging := ParsePaging(url.Values{"page": {"3"}, "limit": {"x"}, "sort": {" title "}, "order": {"DESC"}})
	assert.Equal(t, 3, paging.Page)
	assert.Equal(t, 0, paging.Limit)
	assert.Equal(t, "title", paging.Sort)
	assert.True(t, paging.Desc)
}
