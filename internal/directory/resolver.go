// Package directory implements the user-existence check against the
// provider's account directory. The directory is only reachable in
// fixed-size pages, so the resolver walks pages sequentially until it
// finds a match or exhausts the listing.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lllypuk/blogify/internal/domain/errs"
)

// Resolver errors.
var (
	ErrEmptyEmail = fmt.Errorf("%w: email is required", errs.ErrInvalidInput)
	ErrLookup     = errors.New("directory lookup failed")
)

// DefaultPerPage is the page size used for directory listing calls.
const DefaultPerPage = 100

// UserRecord is a read-only projection of a provider account.
type UserRecord struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

// Confirmed reports whether the account completed email verification.
func (u UserRecord) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Page is one page of the provider directory listing.
type Page struct {
	Users []UserRecord `json:"users"`
	Total int          `json:"total"`
}

// Lister fetches one page of the account directory.
// page is 1-based; perPage is the requested page size.
type Lister interface {
	ListUsers(ctx context.Context, page, perPage int) (*Page, error)
}

// Result is the outcome of an existence check.
// Confirmed implies Exists.
type Result struct {
	Exists    bool `json:"exists"`
	Confirmed bool `json:"confirmed"`
}

// ResolverConfig contains configuration for Resolver.
type ResolverConfig struct {
	Lister  Lister
	PerPage int
	Logger  *slog.Logger
}

// Resolver answers "does an account with this email already exist, and
// has it confirmed its address" by scanning the provider directory.
type Resolver struct {
	lister  Lister
	perPage int
	logger  *slog.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		lister:  cfg.Lister,
		perPage: perPage,
		logger:  logger,
	}
}

// Resolve checks whether email belongs to an existing account.
//
// Matching is case-insensitive: the provider treats email case-insensitively
// for login, but directory entries keep their original casing. The scan
// stops at the first match. Without a match it stops once the reported
// total is covered or a short page signals the end of the listing —
// whichever comes first, since the reported total can be stale while the
// directory mutates under us. The page index is additionally capped by
// ceil(total/perPage), recomputed after every fetch, so an inconsistent
// total can never turn this into an unbounded loop.
//
// Any page fetch error aborts the whole check; partial results are never
// returned.
func (r *Resolver) Resolve(ctx context.Context, email string) (Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Result{}, ErrEmptyEmail
	}

	// maxPages is refined from the first response's total.
	maxPages := 1

	for page := 1; page <= maxPages; page++ {
		p, err := r.lister.ListUsers(ctx, page, r.perPage)
		if err != nil {
			return Result{}, fmt.Errorf("%w: page %d: %w", ErrLookup, page, err)
		}

		for _, u := range p.Users {
			if strings.EqualFold(u.Email, email) {
				return Result{Exists: true, Confirmed: u.Confirmed()}, nil
			}
		}

		// Short page: the provider has nothing past this one.
		if len(p.Users) < r.perPage {
			break
		}

		maxPages = pageCount(p.Total, r.perPage)
	}

	r.logger.DebugContext(ctx, "directory exhausted without match")

	return Result{}, nil
}

// pageCount returns ceil(total/perPage), never less than 1.
func pageCount(total, perPage int) int {
	if total <= perPage {
		return 1
	}
	return (total + perPage - 1) / perPage
}
