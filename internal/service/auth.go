// Package service contains application services for authentication, patients,
// appointments and staff accounts.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/clinic-keeper/internal/crypto"
	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/limiter"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository"
)

// DefaultAccessTTL applies when neither the call nor the config sets a TTL.
const DefaultAccessTTL = 30 * time.Minute

// TokenConfig is the signing material for access tokens. It is copied into
// the service once and never mutated.
type TokenConfig struct {
	Key    []byte
	Method jwt.SigningMethod // HMAC family; nil means HS256
	TTL    time.Duration
}

// AuthService defines authentication and token operations.
type AuthService interface {
	// Authenticate verifies CPF and password against staff, then patients.
	Authenticate(ctx context.Context, cpf, password string) (model.Principal, error)
	// IssueToken signs an access token for p; ttl <= 0 uses the configured TTL.
	IssueToken(p model.Principal, ttl time.Duration) (model.Tokens, error)
	// ResolveToken verifies a token and decodes its principal.
	ResolveToken(token string) (model.Principal, error)
	// Login applies rate-limiting, authenticates and issues a token.
	Login(ctx context.Context, cpf, password, ip string) (model.Tokens, model.Principal, error)
}

type AuthServiceImpl struct {
	staff    repository.StaffRepository
	patients repository.PatientRepository
	cfg      TokenConfig
	lim      limiter.Limiter
	clock    Clock
	log      *zap.Logger
}

// NewAuthService constructs AuthService. lim may be nil to disable throttling.
func NewAuthService(
	staff repository.StaffRepository,
	patients repository.PatientRepository,
	cfg TokenConfig,
	lim limiter.Limiter,
	clock Clock,
	log *zap.Logger,
) *AuthServiceImpl {
	cfg.Key = append([]byte(nil), cfg.Key...)
	if cfg.Method == nil {
		cfg.Method = jwt.SigningMethodHS256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAccessTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{staff: staff, patients: patients, cfg: cfg, lim: lim, clock: clock, log: log}
}

// tokenClaims is the access token payload. ID is a pointer so a token without
// "id" can be told apart from id 0.
type tokenClaims struct {
	ID       *int64 `json:"id,omitempty"`
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticate looks the CPF up among staff first and among patients second.
// A staff hit is decisive: a patient sharing the CPF is not consulted.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, cpf, password string) (model.Principal, error) {
	cpf = normalizeCPF(cpf)
	if cpf == "" || password == "" {
		return model.Principal{}, errs.ErrUnauthorized
	}

	st, err := s.staff.GetByCPF(ctx, cpf)
	switch {
	case err == nil:
		if !pkgcrypto.CheckPassword(password, st.PwdHash) {
			return model.Principal{}, errs.ErrUnauthorized
		}
		return model.Principal{ID: st.ID, CPF: st.CPF, Role: st.Role, Username: st.Username}, nil
	case !errors.Is(err, errs.ErrNotFound):
		return model.Principal{}, err
	}

	pt, err := s.patients.GetByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Principal{}, errs.ErrUnauthorized
		}
		return model.Principal{}, err
	}
	if !pkgcrypto.CheckPassword(password, pt.PwdHash) {
		return model.Principal{}, errs.ErrUnauthorized
	}
	return model.Principal{ID: pt.ID, CPF: pt.CPF, Role: pt.Role, Username: pt.FullName}, nil
}

// IssueToken creates a signed JWT carrying the principal.
func (s *AuthServiceImpl) IssueToken(p model.Principal, ttl time.Duration) (model.Tokens, error) {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now := s.clock.Now()
	exp := now.Add(ttl)
	id := p.ID
	claims := tokenClaims{
		ID:       &id,
		Role:     p.Role,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.CPF,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(s.cfg.Method, claims).SignedString(s.cfg.Key)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// ResolveToken verifies signature, algorithm and expiry. Every failure,
// including malformed input, is reported as errs.ErrUnauthorized.
func (s *AuthServiceImpl) ResolveToken(token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, errs.ErrUnauthorized
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.cfg.Key, nil },
		jwt.WithValidMethods([]string{s.cfg.Method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ID == nil {
		return model.Principal{}, fmt.Errorf("%w: incomplete claims", errs.ErrUnauthorized)
	}
	return model.Principal{
		ID:       *claims.ID,
		CPF:      claims.Subject,
		Role:     claims.Role,
		Username: claims.Username,
	}, nil
}

// Login authenticates with rate limiting by (cpf, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, cpf, password, ip string) (model.Tokens, model.Principal, error) {
	cpf = normalizeCPF(cpf)
	ipHash := limiter.HashIP(ip)

	if s.lim != nil {
		allowed, _, err := s.lim.Allow(ctx, cpf, ipHash)
		if err != nil {
			return model.Tokens{}, model.Principal{}, err
		}
		if !allowed {
			return model.Tokens{}, model.Principal{}, errs.ErrRateLimited
		}
	}

	p, err := s.Authenticate(ctx, cpf, password)
	if err != nil {
		if s.lim != nil && errors.Is(err, errs.ErrUnauthorized) {
			if blocked, _, ferr := s.lim.Failure(ctx, cpf, ipHash); ferr == nil && blocked {
				s.log.Info("login blocked", zap.String("cpf", maskCPF(cpf)))
				return model.Tokens{}, model.Principal{}, errs.ErrRateLimited
			}
		}
		return model.Tokens{}, model.Principal{}, err
	}

	if s.lim != nil {
		// best-effort
		_ = s.lim.Success(ctx, cpf, ipHash)
	}

	tok, err := s.IssueToken(p, 0)
	if err != nil {
		return model.Tokens{}, model.Principal{}, err
	}
	return tok, p, nil
}

// maskCPF keeps the last two digits for log correlation.
func maskCPF(cpf string) string {
	if len(cpf) <= 2 {
		return "**"
	}
	return "*********" + cpf[len(cpf)-2:]
}
