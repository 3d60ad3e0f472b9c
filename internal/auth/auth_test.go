package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

type welcomeRecorder struct {
	names []string
	err   error
}

func (w *welcomeRecorder) SendWelcome(ctx context.Context, userID, name string) error {
	w.names = append(w.names, name)
	return w.err
}

func setup(t *testing.T) (*UserService, *MemoryUserRepository, *clock.Fake, *welcomeRecorder) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC))
	repo := NewMemoryUserRepository(nil)
	w := &welcomeRecorder{}
	tokens := NewTokenIssuer([]byte("test-key"), time.Hour, clk)
	return NewUserService(repo, tokens, w, clk, apperr.NewValidator(), zap.NewNop()), repo, clk, w
}

func register(t *testing.T, s *UserService, name, email, role string) *User {
	t.Helper()
	u, err := s.RegisterUser(context.Background(), RegisterRequest{Name: name, Email: email, Password: "password123", Role: role})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	s, _, _, w := setup(t)
	ctx := context.Background()

	student := register(t, s, "Ana", "Ana@Example.com", "")
	assert.Equal(t, RoleStudent, student.Role)
	assert.Equal(t, "ana@example.com", student.Email)
	assert.Equal(t, apperr.Pending, student.PermissionState())
	assert.NotEqual(t, "password123", student.PasswordHash)

	admin := register(t, s, "Root", "root@example.com", RoleAdmin)
	assert.Equal(t, apperr.Approved, admin.PermissionState())
	assert.Equal(t, []string{"Ana", "Root"}, w.names)

	_, err := s.RegisterUser(ctx, RegisterRequest{Name: "Dup", Email: "ana@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.RegisterUser(ctx, RegisterRequest{Name: "Short", Email: "short@example.com", Password: "123"})
	var verr *apperr.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRegister_WelcomeFailureIsNotFatal(t *testing.T) {
	s, _, _, w := setup(t)
	w.err = errors.New("store down")
	u := register(t, s, "Ana", "ana@example.com", "")
	assert.NotEmpty(t, u.ID)
}

func TestAuthenticate(t *testing.T) {
	s, repo, clk, _ := setup(t)
	ctx := context.Background()
	register(t, s, "Ana", "ana@example.com", "")

	_, err := s.AuthenticateUser(ctx, Credential{Email: "ana@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	clk.Advance(time.Minute)
	res, err := s.AuthenticateUser(ctx, Credential{Email: "ANA@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, apperr.Pending, res.State)

	stored, err := repo.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(clk.Now()))

	claims, err := s.tokens.ValidateJWT(res.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, RoleStudent, claims.Role)

	clk.Advance(2 * time.Hour)
	_, err = s.tokens.ValidateJWT(res.Token)
	assert.Error(t, err)
}

func TestApproval(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()
	a := register(t, s, "Ana", "ana@example.com", "")
	b := register(t, s, "Ben", "ben@example.com", "")
	register(t, s, "Root", "root@example.com", RoleAdmin)

	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	approved, err := s.Approve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, apperr.Approved, approved.PermissionState())

	denied, err := s.Deny(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, denied.ApprovedAt)
	assert.Equal(t, apperr.Denied, denied.PermissionState())

	pending, err := s.PendingUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.AuthenticateUser(ctx, Credential{Email: "ben@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	state, err := s.PermissionState(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, apperr.Approved, state)

	_, err = s.Approve(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStudents(t *testing.T) {
	s, _, clk, _ := setup(t)
	ctx := context.Background()
	register(t, s, "Pending Pat", "pat@example.com", "")
	clk.Advance(time.Minute)

	created, err := s.CreateStudent(ctx, StudentRequest{Name: "Cara", Email: "cara@example.com", Course: "CS", Year: "2", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, apperr.Approved, created.PermissionState())

	students, err := s.Students(ctx)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Cara", students[0].Name)

	approved, err := s.ApprovedStudents(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, created.ID, approved[0].ID)

	updated, err := s.UpdateStudent(ctx, created.ID, StudentRequest{Name: "Cara B", Email: "cara@example.com", Status: "inactive"})
	require.NoError(t, err)
	assert.Equal(t, "Cara B", updated.Name)

	approved, err = s.ApprovedStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, s.DeleteStudent(ctx, created.ID))
	assert.ErrorIs(t, s.DeleteStudent(ctx, created.ID), apperr.ErrNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	s, repo, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureAdmin(ctx, "admin@example.com", "password123"))
	require.NoError(t, s.EnsureAdmin(ctx, "admin@example.com", "password123"))

	admins, err := repo.ListByRole(ctx, RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}
