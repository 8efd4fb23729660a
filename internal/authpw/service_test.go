package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sitesmith/api/internal/store"
)

type fakeUserStore struct {
	getUserByEmailFn             func(ctx context.Context, email string) (store.User, error)
	getUserByIDFn                func(ctx context.Context, id string) (store.User, error)
	createUserFn                 func(ctx context.Context, user store.User) error
	updateUserVerificationFn     func(ctx context.Context, userID, token string, expiresAt time.Time) error
	verifyUserEmailFn            func(ctx context.Context, token string) error
	updateUserPasswordFn         func(ctx context.Context, userID, passwordHash string) error
	createPasswordResetFn        func(ctx context.Context, userID, token string, expiresAt time.Time) error
	getPasswordResetFn           func(ctx context.Context, token string) (string, error)
	markPasswordResetUsedFn      func(ctx context.Context, token string) error
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, errors.New("not found")
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, errors.New("not found")
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.updateUserVerificationFn != nil {
		return f.updateUserVerificationFn(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if f.verifyUserEmailFn != nil {
		return f.verifyUserEmailFn(ctx, token)
	}
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if f.updateUserPasswordFn != nil {
		return f.updateUserPasswordFn(ctx, userID, passwordHash)
	}
	return nil
}

func (f *fakeUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.createPasswordResetFn != nil {
		return f.createPasswordResetFn(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if f.getPasswordResetFn != nil {
		return f.getPasswordResetFn(ctx, token)
	}
	return "", errors.New("not found")
}

func (f *fakeUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if f.markPasswordResetUsedFn != nil {
		return f.markPasswordResetUsedFn(ctx, token)
	}
	return nil
}

func TestSignUpCreatesUnverifiedUser(t *testing.T) {
	var created store.User
	fs := &fakeUserStore{
		createUserFn: func(ctx context.Context, user store.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(fs)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "asha@example.com",
		Password:    "longenough",
		DisplayName: "Asha",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !resp.RequiresEmailVerify {
		t.Error("new accounts should require email verification")
	}
	if resp.VerificationToken == "" {
		t.Error("verification token should be issued")
	}
	if created.IsEmailVerified {
		t.Error("user should start unverified")
	}
	if created.PasswordHash == "longenough" {
		t.Error("password must not be stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("longenough")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestSignUpRejectsBadInput(t *testing.T) {
	svc := NewService(&fakeUserStore{})

	cases := []SignUpRequest{
		{Email: "", Password: "longenough", DisplayName: "A"},
		{Email: "a@b.com", Password: "short", DisplayName: "A"},
		{Email: "not-an-email", Password: "longenough", DisplayName: "A"},
		{Email: "a@b.com", Password: "longenough", DisplayName: ""},
	}
	for i, req := range cases {
		if _, err := svc.SignUp(context.Background(), req); err == nil {
			t.Errorf("case %d: SignUp should fail", i)
		}
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fs := &fakeUserStore{
		getUserByEmailFn: func(ctx context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_existing"}, nil
		},
	}
	svc := NewService(fs)
	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "taken@example.com", Password: "longenough", DisplayName: "A",
	}); err == nil {
		t.Fatal("SignUp with registered email should fail")
	}
}

func TestSignIn(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.DefaultCost)
	verified := store.User{ID: "usr_1", Email: "asha@example.com", PasswordHash: string(hash), IsEmailVerified: true}

	fs := &fakeUserStore{
		getUserByEmailFn: func(ctx context.Context, email string) (store.User, error) {
			return verified, nil
		},
	}
	svc := NewService(fs)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "asha@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if resp.RequiresVerify {
		t.Error("verified user should not require verification")
	}
	if resp.User.ID != "usr_1" {
		t.Errorf("User.ID = %q", resp.User.ID)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "asha@example.com", Password: "wrongpass"}); err == nil {
		t.Error("wrong password should fail")
	}
}

func TestSignInUnverified(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.DefaultCost)
	fs := &fakeUserStore{
		getUserByEmailFn: func(ctx context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", PasswordHash: string(hash), IsEmailVerified: false}, nil
		},
	}
	svc := NewService(fs)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "a@b.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !resp.RequiresVerify {
		t.Error("unverified user should require verification")
	}

	// A wrong password on an unverified account must still be rejected.
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "a@b.com", Password: "wrongpass"}); err == nil {
		t.Error("wrong password should fail even when unverified")
	}
}

func TestRequestPasswordResetHidesUnknownEmail(t *testing.T) {
	svc := NewService(&fakeUserStore{})
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token != "" {
		t.Error("unknown email should yield no token")
	}
}

func TestResetPassword(t *testing.T) {
	var updatedHash string
	fs := &fakeUserStore{
		getPasswordResetFn: func(ctx context.Context, token string) (string, error) {
			if token != "tok" {
				return "", errors.New("not found")
			}
			return "usr_1", nil
		},
		updateUserPasswordFn: func(ctx context.Context, userID, passwordHash string) error {
			updatedHash = passwordHash
			return nil
		},
	}
	svc := NewService(fs)

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "tok", NewPassword: "newlongpass"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updatedHash), []byte("newlongpass")); err != nil {
		t.Errorf("updated hash does not match new password: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "bad", NewPassword: "newlongpass"}); err == nil {
		t.Error("unknown token should fail")
	}
}
