package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byEmail map[string]Agent
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: make(map[string]Agent)}
}

func (f *fakeStore) Create(ctx context.Context, tenantID, name, email, passwordHash string) (Agent, error) {
	if _, taken := f.byEmail[email]; taken {
		return Agent{}, ErrEmailTaken
	}
	f.nextID++
	a := Agent{
		ID:           "agent-" + string(rune('0'+f.nextID)),
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}
	f.byEmail[email] = a
	return a, nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (Agent, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (Agent, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return Agent{}, ErrNotFound
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, "test-secret", time.Hour)

	agent, token, err := svc.Register(context.Background(), "t1", "Joana", "joana@clinic.com", "s3nh4forte")
	require.NoError(t, err)
	assert.Equal(t, "t1", agent.TenantID)
	assert.NotEmpty(t, token.Token)
	assert.NotEqual(t, "s3nh4forte", store.byEmail["joana@clinic.com"].PasswordHash,
		"passwords must be stored hashed")

	logged, token, err := svc.Login(context.Background(), "joana@clinic.com", "s3nh4forte")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, logged.ID)
	assert.NotEmpty(t, token.Token)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, "test-secret", time.Hour)

	_, _, err := svc.Register(context.Background(), "t1", "Joana", "joana@clinic.com", "s3nh4forte")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "joana@clinic.com", "errada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "ninguem@clinic.com", "s3nh4forte")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown email and wrong password are indistinguishable")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, "test-secret", time.Hour)

	_, _, err := svc.Register(context.Background(), "t1", "Joana", "joana@clinic.com", "s3nh4forte")
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), "t2", "Outra", "joana@clinic.com", "outr4senha")
	assert.ErrorIs(t, err, ErrEmailTaken)
}
