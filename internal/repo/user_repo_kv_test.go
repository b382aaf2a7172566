package repo

import (
	"context"
	"strings"
	"testing"

	"go-kv-commerce/internal/apperr"
	"go-kv-commerce/internal/domain"
)

func validUserInput() domain.CreateUserInput {
	return domain.CreateUserInput{
		Email:     "alice@example.com",
		Password:  "secret123",
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func TestUserCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid input", func(t *testing.T) {
		r := newTestEnv(t).users()
		env := r.Create(ctx, validUserInput())
		wantSuccess(t, env)

		u := dataAs[domain.User](t, env)
		if u.Email != "alice@example.com" {
			t.Errorf("Email = %q", u.Email)
		}
		if u.Role != domain.RoleCustomer {
			t.Errorf("Role = %q, want default customer", u.Role)
		}
		if !u.IsActive {
			t.Error("new user should be active")
		}
		if u.PasswordHash != "" {
			t.Error("password hash leaked out of Create")
		}
		if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
			t.Error("timestamps not stamped")
		}
	})

	t.Run("email is normalized", func(t *testing.T) {
		r := newTestEnv(t).users()
		in := validUserInput()
		in.Email = "  Alice@Example.COM "
		wantSuccess(t, r.Create(ctx, in))

		env := r.GetByEmail(ctx, "alice@example.com")
		wantSuccess(t, env)
		if env.Data == nil {
			t.Fatal("normalized email did not resolve")
		}
	})

	t.Run("validation collects every field", func(t *testing.T) {
		r := newTestEnv(t).users()
		env := r.Create(ctx, domain.CreateUserInput{Email: "not-an-email", Password: "x"})
		wantFailure(t, env, apperr.CodeValidation)
		if len(env.Error.Fields) != 4 {
			t.Errorf("Fields = %v, want email/password/firstName/lastName", env.Error.Fields)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))

		in := validUserInput()
		in.Email = "ALICE@example.com" // same account after normalization
		wantFailure(t, r.Create(ctx, in), apperr.CodeDuplicate)
	})

	t.Run("bad role rejected", func(t *testing.T) {
		r := newTestEnv(t).users()
		in := validUserInput()
		in.Role = "superuser"
		wantFailure(t, r.Create(ctx, in), apperr.CodeValidation)
	})
}

func TestUserGetByEmail(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()
	wantSuccess(t, r.Create(ctx, validUserInput()))

	t.Run("absent user is success with nil data", func(t *testing.T) {
		env := r.GetByEmail(ctx, "nobody@example.com")
		wantSuccess(t, env)
		if env.Data != nil {
			t.Errorf("Data = %v, want nil", env.Data)
		}
	})

	t.Run("empty email is a validation failure", func(t *testing.T) {
		wantFailure(t, r.GetByEmail(ctx, "  "), apperr.CodeValidation)
	})

	t.Run("found user is sanitized", func(t *testing.T) {
		env := r.GetByEmail(ctx, "alice@example.com")
		wantSuccess(t, env)
		u := dataAs[domain.User](t, env)
		if u.PasswordHash != "" {
			t.Error("password hash leaked")
		}
	})
}

func TestUserList(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()

	seed := []domain.CreateUserInput{
		{Email: "a@example.com", Password: "secret123", FirstName: "Ann", LastName: "Ames", Role: domain.RoleAdmin},
		{Email: "b@example.com", Password: "secret123", FirstName: "Bob", LastName: "Berg"},
		{Email: "c@example.com", Password: "secret123", FirstName: "Cara", LastName: "Cole"},
	}
	for _, in := range seed {
		wantSuccess(t, r.Create(ctx, in))
	}
	wantSuccess(t, r.SoftDelete(ctx, "c@example.com"))

	t.Run("active only by default", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{}, domain.ListOptions{}))
		if page.Pagination.Total != 2 {
			t.Fatalf("Total = %d, want 2", page.Pagination.Total)
		}
	})

	t.Run("include inactive", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{}, domain.ListOptions{IncludeInactive: true}))
		if page.Pagination.Total != 3 {
			t.Fatalf("Total = %d, want 3", page.Pagination.Total)
		}
	})

	t.Run("role filter", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{Role: domain.RoleAdmin}, domain.ListOptions{}))
		if page.Pagination.Total != 1 || page.Items[0].Email != "a@example.com" {
			t.Fatalf("page = %+v", page)
		}
	})

	t.Run("search matches name and email", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{Search: "BOB"}, domain.ListOptions{}))
		if page.Pagination.Total != 1 || page.Items[0].FirstName != "Bob" {
			t.Fatalf("page = %+v", page)
		}
	})

	t.Run("sort by email ascending", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{}, domain.ListOptions{SortField: "email", SortOrder: "asc"}))
		if page.Items[0].Email != "a@example.com" || page.Items[1].Email != "b@example.com" {
			t.Fatalf("order: %q, %q", page.Items[0].Email, page.Items[1].Email)
		}
	})

	t.Run("items are sanitized", func(t *testing.T) {
		page := pageOf[domain.User](t, r.List(ctx, domain.UserFilters{}, domain.ListOptions{}))
		for _, u := range page.Items {
			if u.PasswordHash != "" {
				t.Fatalf("password hash leaked for %s", u.Email)
			}
		}
	})
}

func TestUserUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("allow-listed fields apply", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))

		env := r.Update(ctx, "alice@example.com", map[string]any{
			"firstName": "Alicia",
			"role":      domain.RoleAdmin,
		})
		wantSuccess(t, env)
		u := dataAs[domain.User](t, env)
		if u.FirstName != "Alicia" || u.Role != domain.RoleAdmin {
			t.Fatalf("user = %+v", u)
		}
	})

	t.Run("email and password are not patchable", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))

		env := r.Update(ctx, "alice@example.com", map[string]any{
			"email":        "evil@example.com",
			"passwordHash": "overwritten",
		})
		wantFailure(t, env, apperr.CodeValidation)
		if !strings.Contains(env.Error.Message, "no updatable fields") {
			t.Errorf("Message = %q", env.Error.Message)
		}

		// The record is untouched.
		got := r.GetByEmail(ctx, "alice@example.com")
		wantSuccess(t, got)
		if got.Data == nil {
			t.Fatal("original record gone")
		}
	})

	t.Run("disallowed keys are dropped, allowed ones still apply", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))

		env := r.Update(ctx, "alice@example.com", map[string]any{
			"email":    "evil@example.com",
			"lastName": "Stone",
		})
		wantSuccess(t, env)
		u := dataAs[domain.User](t, env)
		if u.LastName != "Stone" || u.Email != "alice@example.com" {
			t.Fatalf("user = %+v", u)
		}
	})

	t.Run("bad value type fails validation", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))
		wantFailure(t, r.Update(ctx, "alice@example.com", map[string]any{"isActive": "yes"}), apperr.CodeValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantFailure(t, r.Update(ctx, "nobody@example.com", map[string]any{"firstName": "X"}), apperr.CodeNotFound)
	})

	t.Run("reactivation clears deletedAt", func(t *testing.T) {
		r := newTestEnv(t).users()
		wantSuccess(t, r.Create(ctx, validUserInput()))
		wantSuccess(t, r.SoftDelete(ctx, "alice@example.com"))

		env := r.Update(ctx, "alice@example.com", map[string]any{"isActive": true})
		wantSuccess(t, env)
		u := dataAs[domain.User](t, env)
		if !u.IsActive || u.DeletedAt != nil {
			t.Fatalf("user = %+v", u)
		}
	})
}

func TestUserSoftDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()
	wantSuccess(t, r.Create(ctx, validUserInput()))

	env := r.SoftDelete(ctx, "alice@example.com")
	wantSuccess(t, env)
	u := dataAs[domain.User](t, env)
	if u.IsActive || u.DeletedAt == nil {
		t.Fatalf("user = %+v", u)
	}

	t.Run("record remains readable", func(t *testing.T) {
		env := r.GetByEmail(ctx, "alice@example.com")
		wantSuccess(t, env)
		if dataAs[domain.User](t, env).IsActive {
			t.Error("soft-deleted user still active")
		}
	})

	t.Run("repeat delete succeeds", func(t *testing.T) {
		wantSuccess(t, r.SoftDelete(ctx, "alice@example.com"))
	})

	t.Run("unknown user", func(t *testing.T) {
		wantFailure(t, r.SoftDelete(ctx, "nobody@example.com"), apperr.CodeNotFound)
	})
}

func TestUserHardDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()
	wantSuccess(t, r.Create(ctx, validUserInput()))

	wantSuccess(t, r.HardDelete(ctx, "alice@example.com"))

	env := r.GetByEmail(ctx, "alice@example.com")
	wantSuccess(t, env)
	if env.Data != nil {
		t.Error("hard-deleted record still present")
	}

	wantFailure(t, r.HardDelete(ctx, "alice@example.com"), apperr.CodeNotFound)
}

func TestUserStatistics(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()

	wantSuccess(t, r.Create(ctx, domain.CreateUserInput{Email: "a@x.com", Password: "secret123", FirstName: "A", LastName: "A", Role: domain.RoleAdmin}))
	wantSuccess(t, r.Create(ctx, domain.CreateUserInput{Email: "b@x.com", Password: "secret123", FirstName: "B", LastName: "B"}))
	wantSuccess(t, r.Create(ctx, domain.CreateUserInput{Email: "c@x.com", Password: "secret123", FirstName: "C", LastName: "C"}))
	wantSuccess(t, r.SoftDelete(ctx, "c@x.com"))

	// b logs in; that stamps lastLogin.
	wantSuccess(t, r.ValidateCredentials(ctx, "b@x.com", "secret123"))

	env := r.Statistics(ctx)
	wantSuccess(t, env)
	st := dataAs[domain.UserStats](t, env)
	if st.Total != 2 {
		t.Errorf("Total = %d, want 2 (inactive excluded)", st.Total)
	}
	if st.ByRole[domain.RoleAdmin] != 1 || st.ByRole[domain.RoleCustomer] != 1 {
		t.Errorf("ByRole = %v", st.ByRole)
	}
	if st.RecentlyActive != 1 {
		t.Errorf("RecentlyActive = %d, want 1", st.RecentlyActive)
	}
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()
	r := newTestEnv(t).users()
	wantSuccess(t, r.Create(ctx, validUserInput()))

	t.Run("valid login stamps lastLogin", func(t *testing.T) {
		env := r.ValidateCredentials(ctx, "alice@example.com", "secret123")
		wantSuccess(t, env)
		u := dataAs[domain.User](t, env)
		if u.LastLogin == nil {
			t.Error("lastLogin not stamped")
		}
		if u.PasswordHash != "" {
			t.Error("password hash leaked")
		}
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		unknown := r.ValidateCredentials(ctx, "nobody@example.com", "secret123")
		wrongPw := r.ValidateCredentials(ctx, "alice@example.com", "wrong")
		wantFailure(t, unknown, apperr.CodeAuthentication)
		wantFailure(t, wrongPw, apperr.CodeAuthentication)
		if unknown.Error.Message != wrongPw.Error.Message {
			t.Error("unknown-email and wrong-password failures must read the same")
		}

		wantSuccess(t, r.SoftDelete(ctx, "alice@example.com"))
		deactivated := r.ValidateCredentials(ctx, "alice@example.com", "secret123")
		wantFailure(t, deactivated, apperr.CodeAuthentication)
		if deactivated.Error.Message != unknown.Error.Message {
			t.Error("deactivated-account failure must read the same")
		}
	})
}
