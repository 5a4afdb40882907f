package auth

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainHasher avoids bcrypt cost in tests that don't exercise hashing itself.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error)  { return plain, nil }
func (plainHasher) Verify(plain, hashed string) bool   { return plain == hashed }

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(plainHasher{})
	require.NoError(t, svc.AddUser("trader1", "hunter2"))
	return svc
}

func TestAuthenticateAccepted(t *testing.T) {
	svc := newTestService(t)

	res := svc.Authenticate("trader1", "hunter2", "conn-1")
	assert.Equal(t, Accepted, res.Status)
	assert.True(t, svc.HasActiveSession("trader1"))
}

func TestAuthenticateRejected(t *testing.T) {
	svc := newTestService(t)

	res := svc.Authenticate("trader1", "wrong", "conn-1")
	assert.Equal(t, Rejected, res.Status)

	res = svc.Authenticate("nobody", "hunter2", "conn-1")
	assert.Equal(t, Rejected, res.Status)
	assert.False(t, svc.HasActiveSession("trader1"))
}

func TestAuthenticateSessionInUse(t *testing.T) {
	svc := newTestService(t)

	res := svc.Authenticate("trader1", "hunter2", "conn-1")
	require.Equal(t, Accepted, res.Status)

	// Second login from a different connection while the first is active.
	res = svc.Authenticate("trader1", "hunter2", "conn-2")
	assert.Equal(t, SessionInUse, res.Status)

	// The same connection re-authenticating is not a conflict.
	res = svc.Authenticate("trader1", "hunter2", "conn-1")
	assert.Equal(t, Accepted, res.Status)

	svc.EndSession("trader1")
	res = svc.Authenticate("trader1", "hunter2", "conn-2")
	assert.Equal(t, Accepted, res.Status)
}

func TestRemoveUserKeepsSession(t *testing.T) {
	svc := newTestService(t)

	require.Equal(t, Accepted, svc.Authenticate("trader1", "hunter2", "conn-1").Status)
	svc.RemoveUser("trader1")

	assert.True(t, svc.HasActiveSession("trader1"))
	assert.Equal(t, Rejected, svc.Authenticate("trader1", "hunter2", "conn-2").Status)
}

func TestConcurrentLoginsSingleWinner(t *testing.T) {
	svc := newTestService(t)

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]Result, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Authenticate("trader1", "hunter2", string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, res := range results {
		if res.Status == Accepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestStatusByte(t *testing.T) {
	assert.Equal(t, byte('A'), Accepted.StatusByte())
	assert.Equal(t, byte('R'), Rejected.StatusByte())
	assert.Equal(t, byte('S'), SessionInUse.StatusByte())
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hashed, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)
	assert.True(t, h.Verify("s3cret", hashed))
	assert.False(t, h.Verify("other", hashed))
}
