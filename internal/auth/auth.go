// Package auth verifies session tokens and carries the authenticated
// account through request contexts.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrUnauthorized is returned for a missing, malformed, expired or
// wrongly signed session token.
var ErrUnauthorized = eris.New("auth: unauthorized")

const defaultLeeway = 30 * time.Second

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret. An empty
// issuer accepts any iss claim.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, eris.New("auth: jwt secret is required")
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: defaultLeeway,
		now:    time.Now,
	}, nil
}

// Verify parses raw and returns the account it identifies. The subject
// claim is the account ID; a missing plan claim means the free plan.
func (v *Verifier) Verify(raw string) (model.Account, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return model.Account{}, eris.Wrap(ErrUnauthorized, errText(err))
	}
	if claims.Subject == "" {
		return model.Account{}, eris.Wrap(ErrUnauthorized, "missing subject")
	}

	plan := model.Plan(strings.ToLower(claims.Plan))
	if plan == "" {
		plan = model.PlanFree
	}
	return model.Account{ID: claims.Subject, Email: claims.Email, Plan: plan}, nil
}

// Issue signs a session token for acct valid for ttl. Used by the CLI for
// local testing; production tokens come from the identity provider.
func (v *Verifier) Issue(acct model.Account, ttl time.Duration) (string, error) {
	now := v.now()
	claims := sessionClaims{
		Email: acct.Email,
		Plan:  string(acct.Plan),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type ctxKey struct{}

// WithAccount returns a copy of ctx carrying acct.
func WithAccount(ctx context.Context, acct model.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acct)
}

// AccountFrom returns the account stored by WithAccount.
func AccountFrom(ctx context.Context) (model.Account, bool) {
	acct, ok := ctx.Value(ctxKey{}).(model.Account)
	return acct, ok && acct.ID != ""
}

func errText(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}
