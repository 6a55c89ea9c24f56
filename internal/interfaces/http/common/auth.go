package common

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ContextWithActor stores the authenticated actor into context.
func ContextWithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// JWTConfig は 1 つの発行元の検証設定。
type JWTConfig struct {
	Secret []byte
	Issuer string
}

// Claims はトークンに載るアクター情報。
type Claims struct {
	jwt.RegisteredClaims
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// Authenticator は Bearer トークンを検証し、アクターをコンテキストへ詰める。
type Authenticator struct {
	configs  []JWTConfig
	audience string
	logger   *log.Logger
}

func NewAuthenticator(configs []JWTConfig, audience string, logger *log.Logger) *Authenticator {
	return &Authenticator{
		configs:  append([]JWTConfig(nil), configs...),
		audience: audience,
		logger:   logger,
	}
}

// Required はトークン必須のルートに使う。
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.authenticate(r)
		if err != nil {
			WriteFailure(a.logger, w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Optional はヘッダーが無ければ匿名の member として通す。ヘッダーがあって不正なら 401。
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			anonymous := domain.Actor{Role: domain.RoleMember}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), anonymous)))
			return
		}
		a.Required(next).ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) (domain.Actor, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return domain.Actor{}, fmt.Errorf("Authorization ヘッダーがありません")
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return domain.Actor{}, fmt.Errorf("Bearer トークンを指定してください")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if tokenString == "" {
		return domain.Actor{}, fmt.Errorf("アクセストークンが空です")
	}
	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return domain.Actor{}, err
	}
	return ActorFromClaims(claims), nil
}

// ParseToken は複数の JWT 設定を順番に試し、署名と Issuer/Audience を検証する。
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	if len(a.configs) == 0 {
		return nil, fmt.Errorf("認証設定が構成されていません")
	}
	for _, cfg := range a.configs {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return cfg.Secret, nil
		}, jwt.WithLeeway(30*time.Second))
		if err != nil || !token.Valid {
			continue
		}
		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			continue
		}
		if claims.Subject == "" {
			continue
		}
		if a.audience != "" && !slices.Contains(claims.Audience, a.audience) {
			continue
		}
		return claims, nil
	}
	return nil, fmt.Errorf("アクセストークンが無効です")
}

// ActorFromClaims maps token claims onto a domain actor. Unknown roles fall back to member.
func ActorFromClaims(claims *Claims) domain.Actor {
	actor := domain.Actor{
		ID:   claims.Subject,
		Name: strings.TrimSpace(claims.Name),
		Role: parseRole(claims.Role),
	}
	if companyID := strings.TrimSpace(claims.CompanyID); companyID != "" {
		actor.CompanyID = &companyID
	}
	return actor
}

func parseRole(value string) domain.Role {
	switch role := domain.Role(strings.ToLower(strings.TrimSpace(value))); role {
	case domain.RoleRootAdmin, domain.RoleOrgAdmin, domain.RoleCoach, domain.RoleMember:
		return role
	}
	return domain.RoleMember
}
