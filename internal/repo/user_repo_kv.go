package repo

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-kv-commerce/internal/apperr"
	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/domain"
	"go-kv-commerce/internal/perf"
	"go-kv-commerce/internal/query"
	"go-kv-commerce/internal/response"
	"go-kv-commerce/pkg/utils"
)

const userCollection = "users"

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// dummyHash keeps ValidateCredentials timing flat for unknown emails.
var dummyHash = utils.HashPassword("no-such-account-placeholder")

// userKey encodes the email into a key safe for the flat store namespace.
func userKey(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return base64.RawURLEncoding.EncodeToString([]byte(normalized))
}

// userUpdatable is the patch allow-list. Email and password hash are never
// patchable through Update.
var userUpdatable = map[string]struct{}{
	"firstName": {}, "lastName": {}, "role": {}, "isActive": {},
}

type UserRepo struct {
	gw  *kv.Gateway
	log *zap.Logger
	mon *perf.Monitor
	env response.Builder
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(gw *kv.Gateway, log *zap.Logger, mon *perf.Monitor, env response.Builder) *UserRepo {
	return &UserRepo{gw: gw, log: log, mon: mon, env: env}
}

func (r *UserRepo) fail(op string, err error, ctx map[string]string) response.Envelope {
	r.log.Error("user repo operation failed", zap.String("op", op), zap.Error(err))
	return r.env.Fail(op, err, ctx)
}

func (r *UserRepo) Create(ctx context.Context, in domain.CreateUserInput) response.Envelope {
	const op = "user.create"
	done := track(r.mon, op)

	var fields []string
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case email == "":
		fields = append(fields, "email is required")
	case !emailRx.MatchString(email):
		fields = append(fields, "email is invalid")
	}
	if len(in.Password) < 6 {
		fields = append(fields, "password must be at least 6 characters")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		fields = append(fields, "firstName is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields = append(fields, "lastName is required")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if role != domain.RoleCustomer && role != domain.RoleAdmin {
		fields = append(fields, "role must be customer or admin")
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), nil)
	}

	existing, err := loadOne[domain.User](ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	if existing != nil {
		done(false)
		return r.env.Fail(op, apperr.Duplicate("user"), map[string]string{"email": maskEmail(email)})
	}

	now := time.Now().UTC()
	u := domain.User{
		Email:        email,
		PasswordHash: utils.HashPassword(in.Password),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := save(ctx, r.gw, userCollection, userKey(email), u); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}

	done(true)
	r.log.Info("user created", zap.String("email", maskEmail(email)), zap.String("role", role))
	return r.env.OK(op, u.Sanitized())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) response.Envelope {
	const op = "user.getByEmail"
	done := track(r.mon, op)

	if strings.TrimSpace(email) == "" {
		done(false)
		return r.env.Fail(op, apperr.Validation("email is required"), nil)
	}

	u, err := loadOne[domain.User](ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	done(true)
	if u == nil {
		// Absence is a normal outcome, not an error.
		return r.env.OK(op, nil)
	}
	return r.env.OK(op, u.Sanitized())
}

func (r *UserRepo) List(ctx context.Context, f domain.UserFilters, opts domain.ListOptions) response.Envelope {
	const op = "user.list"
	done := track(r.mon, op)

	users, err := loadAll[domain.User](ctx, r.gw, r.log, userCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	preds := []query.Predicate[domain.User]{}
	if !opts.IncludeInactive {
		preds = append(preds, func(u domain.User) bool { return u.IsActive })
	}
	if f.Role != "" {
		preds = append(preds, func(u domain.User) bool { return u.Role == f.Role })
	}
	if f.Search != "" {
		preds = append(preds, func(u domain.User) bool {
			return query.ContainsFold(u.FirstName, f.Search) ||
				query.ContainsFold(u.LastName, f.Search) ||
				query.ContainsFold(u.Email, f.Search)
		})
	}
	users = query.Filter(users, preds...)

	query.SortStable(users, userComparator(opts.SortField), sortOrder(opts.SortOrder))

	page := query.Paginate(users, defaultPage(opts.Page), defaultLimit(opts.Limit))
	for i := range page.Items {
		page.Items[i] = page.Items[i].Sanitized()
	}

	done(true)
	return r.env.OK(op, page)
}

func userComparator(field string) func(a, b domain.User) int {
	switch field {
	case "email":
		return func(a, b domain.User) int { return query.CompareStrings(a.Email, b.Email) }
	case "firstName":
		return func(a, b domain.User) int { return query.CompareStrings(a.FirstName, b.FirstName) }
	case "lastName":
		return func(a, b domain.User) int { return query.CompareStrings(a.LastName, b.LastName) }
	case "role":
		return func(a, b domain.User) int { return query.CompareStrings(a.Role, b.Role) }
	case "lastLogin":
		return func(a, b domain.User) int {
			return compareTimePtr(a.LastLogin, b.LastLogin)
		}
	case "updatedAt":
		return func(a, b domain.User) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b domain.User) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func (r *UserRepo) Update(ctx context.Context, email string, patch map[string]any) response.Envelope {
	const op = "user.update"
	done := track(r.mon, op)

	u, err := loadOne[domain.User](ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	if u == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("user"), map[string]string{"email": maskEmail(email)})
	}

	applied := 0
	var fields []string
	for k, v := range patch {
		if _, ok := userUpdatable[k]; !ok {
			continue // outside the allow-list, silently dropped
		}
		switch k {
		case "firstName":
			if s, ok := asString(v); ok && strings.TrimSpace(s) != "" {
				u.FirstName = strings.TrimSpace(s)
				applied++
			} else {
				fields = append(fields, "firstName must be a non-empty string")
			}
		case "lastName":
			if s, ok := asString(v); ok && strings.TrimSpace(s) != "" {
				u.LastName = strings.TrimSpace(s)
				applied++
			} else {
				fields = append(fields, "lastName must be a non-empty string")
			}
		case "role":
			if s, ok := asString(v); ok && (s == domain.RoleCustomer || s == domain.RoleAdmin) {
				u.Role = s
				applied++
			} else {
				fields = append(fields, "role must be customer or admin")
			}
		case "isActive":
			if b, ok := asBool(v); ok {
				u.IsActive = b
				if b {
					u.DeletedAt = nil
				}
				applied++
			} else {
				fields = append(fields, "isActive must be a boolean")
			}
		}
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), nil)
	}
	if applied == 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation("no updatable fields in patch"), nil)
	}

	u.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, userCollection, userKey(email), *u); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	done(true)
	return r.env.OK(op, u.Sanitized())
}

func (r *UserRepo) SoftDelete(ctx context.Context, email string) response.Envelope {
	const op = "user.softDelete"
	done := track(r.mon, op)

	u, err := loadOne[domain.User](ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	if u == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("user"), map[string]string{"email": maskEmail(email)})
	}

	// Re-deleting an inactive record succeeds; the flags are just re-stamped.
	now := time.Now().UTC()
	u.IsActive = false
	u.DeletedAt = &now
	u.UpdatedAt = now
	if err := save(ctx, r.gw, userCollection, userKey(email), *u); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	done(true)
	r.log.Info("user soft-deleted", zap.String("email", maskEmail(email)))
	return r.env.OK(op, u.Sanitized())
}

func (r *UserRepo) HardDelete(ctx context.Context, email string) response.Envelope {
	const op = "user.hardDelete"
	done := track(r.mon, op)

	existed, err := remove(ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	if !existed {
		done(false)
		return r.env.Fail(op, apperr.NotFound("user"), map[string]string{"email": maskEmail(email)})
	}
	done(true)
	r.log.Warn("user hard-deleted, irreversible", zap.String("email", maskEmail(email)))
	return r.env.OK(op, map[string]any{"deleted": true})
}

func (r *UserRepo) Statistics(ctx context.Context) response.Envelope {
	const op = "user.statistics"
	done := track(r.mon, op)

	users, err := loadAll[domain.User](ctx, r.gw, r.log, userCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	active := query.Filter(users, func(u domain.User) bool { return u.IsActive })
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	recent := query.Filter(active, func(u domain.User) bool {
		return u.LastLogin != nil && u.LastLogin.After(cutoff)
	})

	done(true)
	return r.env.OK(op, domain.UserStats{
		Total:          len(active),
		ByRole:         query.CountBy(active, func(u domain.User) string { return u.Role }),
		RecentlyActive: len(recent),
	})
}

// ValidateCredentials returns one uniform AUTHENTICATION_ERROR for unknown
// email, wrong password and deactivated account.
func (r *UserRepo) ValidateCredentials(ctx context.Context, email, password string) response.Envelope {
	const op = "user.validateCredentials"
	done := track(r.mon, op)

	u, err := loadOne[domain.User](ctx, r.gw, userCollection, userKey(email))
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"email": maskEmail(email)})
	}
	if u == nil {
		// Burn a compare anyway so unknown emails cost the same as wrong passwords.
		utils.CheckPassword(password, dummyHash)
		done(false)
		r.log.Warn("credential check failed", zap.String("email", maskEmail(email)))
		return r.env.Fail(op, apperr.Authentication(), nil)
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		done(false)
		r.log.Warn("credential check failed", zap.String("email", maskEmail(email)))
		return r.env.Fail(op, apperr.Authentication(), nil)
	}
	if !u.IsActive {
		done(false)
		r.log.Warn("deactivated account access attempt", zap.String("email", maskEmail(email)))
		return r.env.Fail(op, apperr.Authentication(), nil)
	}

	now := time.Now().UTC()
	u.LastLogin = &now
	u.UpdatedAt = now
	if err := save(ctx, r.gw, userCollection, userKey(email), *u); err != nil {
		// Login still succeeds; the stamp is best effort.
		r.log.Error("lastLogin stamp failed", zap.String("email", maskEmail(email)), zap.Error(err))
	}

	done(true)
	return r.env.OK(op, u.Sanitized())
}
