package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

type stubRepo struct {
	principals map[int64]Principal
	err        error
	calls      int
	block      bool
}

func (s *stubRepo) FindActive(ctx context.Context, id int64) (Principal, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return Principal{}, ctx.Err()
	}
	if s.err != nil {
		return Principal{}, s.err
	}
	p, ok := s.principals[id]
	if !ok {
		return Principal{}, ErrUnknownOrInactivePrincipal
	}
	return p, nil
}

func TestResolveActivePrincipal(t *testing.T) {
	repo := &stubRepo{principals: map[int64]Principal{
		42: {ID: 42, Email: "owner@elant.local", Name: "Owner", RoleID: 3, Role: "Owner"},
	}}
	svc := NewService(repo, time.Second)

	p, err := svc.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "owner@elant.local", p.Email)
	assert.Equal(t, "Owner", p.Role)
}

func TestResolveUnknownPrincipal(t *testing.T) {
	svc := NewService(&stubRepo{}, time.Second)

	_, err := svc.Resolve(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownOrInactivePrincipal)
	assert.NotErrorIs(t, err, shared.ErrStoreFailure)
}

func TestResolveSkipsStoreForInvalidID(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, time.Second)

	_, err := svc.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, ErrUnknownOrInactivePrincipal)
	assert.Zero(t, repo.calls)
}

func TestResolveWrapsStoreFailure(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("connection refused")}, time.Second)

	_, err := svc.Resolve(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrStoreFailure)
	assert.NotErrorIs(t, err, ErrUnknownOrInactivePrincipal)
}

func TestResolveTimesOut(t *testing.T) {
	svc := NewService(&stubRepo{block: true}, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Resolve(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrStoreFailure)
	assert.Less(t, time.Since(start), time.Second)
}
