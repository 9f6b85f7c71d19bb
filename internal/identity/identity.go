// Package identity resolves the caller of an HTTP request into a typed
// (role, id) pair. Credentials are issued elsewhere; this package only looks
// them up through an ordered list of strategies.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Role is the marketplace role of a caller.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleDistributor Role = "distributor"
	RoleAdmin       Role = "admin"
)

// ParseRole accepts the canonical role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleDistributor:
		return RoleDistributor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Caller is the resolved identity passed explicitly into service calls.
type Caller struct {
	Role Role  `json:"role"`
	ID   int64 `json:"id"`
}

func (c Caller) Is(role Role) bool {
	return c.Role == role
}

var (
	// ErrUnauthenticated is returned when no strategy recognised the request.
	ErrUnauthenticated = errors.New("caller could not be identified")
	// ErrInvalidCredential is returned when a strategy found a credential it rejects.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Strategy inspects a request. ok=false means the strategy does not apply and
// the next one should be tried; a non-nil error stops the chain.
type Strategy interface {
	Resolve(r *http.Request) (caller Caller, ok bool, err error)
}

// Chain tries strategies in order and returns the first match.
type Chain []Strategy

func (c Chain) Resolve(r *http.Request) (Caller, error) {
	for _, s := range c {
		caller, ok, err := s.Resolve(r)
		if err != nil {
			return Caller{}, err
		}
		if ok {
			return caller, nil
		}
	}
	return Caller{}, ErrUnauthenticated
}

// SessionStore maps opaque bearer tokens to callers.
type SessionStore interface {
	LookupSession(ctx context.Context, token string) (role string, id int64, found bool, err error)
}

// BearerStrategy resolves "Authorization: Bearer <token>" through a SessionStore.
type BearerStrategy struct {
	Sessions SessionStore
}

func (b BearerStrategy) Resolve(r *http.Request) (Caller, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Caller{}, false, nil
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Caller{}, false, ErrInvalidCredential
	}

	roleName, id, ok, err := b.Sessions.LookupSession(r.Context(), strings.TrimSpace(token))
	if err != nil {
		return Caller{}, false, fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return Caller{}, false, ErrInvalidCredential
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return Caller{}, false, ErrInvalidCredential
	}
	return Caller{Role: role, ID: id}, true, nil
}

// Header names set by a trusted gateway that already authenticated the caller.
const (
	HeaderCallerRole = "X-Caller-Role"
	HeaderCallerID   = "X-Caller-Id"
)

// HeaderStrategy trusts gateway-injected identity headers. Only enable it when
// the service is unreachable except through that gateway.
type HeaderStrategy struct{}

func (HeaderStrategy) Resolve(r *http.Request) (Caller, bool, error) {
	roleHeader := r.Header.Get(HeaderCallerRole)
	idHeader := r.Header.Get(HeaderCallerID)
	if roleHeader == "" && idHeader == "" {
		return Caller{}, false, nil
	}

	role, err := ParseRole(roleHeader)
	if err != nil {
		return Caller{}, false, ErrInvalidCredential
	}
	id, err := strconv.ParseInt(idHeader, 10, 64)
	if err != nil || id <= 0 {
		return Caller{}, false, ErrInvalidCredential
	}
	return Caller{Role: role, ID: id}, true, nil
}

type callerKey struct{}

// WithCaller stores the caller on a context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored by WithCaller.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
