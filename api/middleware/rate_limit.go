package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	pkgredis "github.com/agromart/agromart-backend/pkg/redis"
)

// maxKeyedBody bounds how much of a request body a rule may buffer.
const maxKeyedBody = 64 << 10

// RateLimitRule counts requests sharing the same key. An empty key skips
// the rule for that request.
type RateLimitRule struct {
	dimension string
	limit     int
	key       func(r *http.Request) (string, error)
	// redacted keys are logged as hashes only.
	redacted bool
}

// PerIP keys requests by the caller's address.
func PerIP(limit int) RateLimitRule {
	return RateLimitRule{dimension: "ip", limit: limit, key: func(r *http.Request) (string, error) {
		return clientIP(r), nil
	}}
}

// PerEmail keys requests by the normalized "email" field of a JSON body.
// The body is restored for the next handler.
func PerEmail(limit int) RateLimitRule {
	return RateLimitRule{dimension: "email", limit: limit, redacted: true, key: emailKey}
}

// PerUser keys requests by the authenticated user and must run after Auth.
func PerUser(limit int) RateLimitRule {
	return RateLimitRule{dimension: "user", limit: limit, key: func(r *http.Request) (string, error) {
		return UserIDFromContext(r.Context()), nil
	}}
}

// RateLimitPolicy groups rules that share a window.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []RateLimitRule
}

func NewRateLimitPolicy(name string, window time.Duration, rules ...RateLimitRule) RateLimitPolicy {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.limit > 0 {
			active = append(active, rule)
		}
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{name: name, window: window, rules: active}
}

func LoginRateLimitPolicy(cfg config.RateLimitConfig) RateLimitPolicy {
	return NewRateLimitPolicy("login", cfg.LoginWindow, PerIP(cfg.LoginIPLimit), PerEmail(cfg.LoginEmailLimit))
}

func RegisterRateLimitPolicy(cfg config.RateLimitConfig) RateLimitPolicy {
	return NewRateLimitPolicy("register", cfg.RegisterWindow, PerIP(cfg.RegisterIPLimit), PerEmail(cfg.RegisterEmailLimit))
}

// CouponValidateRateLimitPolicy throttles code guessing against /coupons/validate.
func CouponValidateRateLimitPolicy(cfg config.RateLimitConfig) RateLimitPolicy {
	return NewRateLimitPolicy("coupon_validate", cfg.CouponWindow, PerUser(cfg.CouponUserLimit))
}

func (p RateLimitPolicy) retryAfter() string {
	secs := int(p.window.Round(time.Second) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

// RateLimit rejects requests once any rule of the policy exceeds its limit
// within the window. Limiter failures fail closed with 503.
func RateLimit(policy RateLimitPolicy, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || policy.window <= 0 || len(policy.rules) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, rule := range policy.rules {
				key, err := rule.key(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				if key == "" {
					continue
				}
				if rule.redacted {
					key = digest(key)
				}

				scope := policy.name + ":" + rule.dimension + ":" + key
				allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(rule.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if allowed {
					continue
				}

				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":    policy.name,
						"dimension": rule.dimension,
						"key":       key,
						"attempts":  count,
						"limit":     rule.limit,
					}), "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", policy.retryAfter())
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func emailKey(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyedBody))
	if err != nil {
		return "", err
	}
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(payload.Email)), nil
}

// clientIP prefers the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func clientIP(r *http.Request) string {
	for hop := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(hop)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type replayBody struct {
	io.Reader
	io.Closer
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
