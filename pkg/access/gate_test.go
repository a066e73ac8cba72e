package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/ledger"
)

// countingLedger records calls so tests can assert the ledger was not touched.
type countingLedger struct {
	*ledger.MemoryLedger
	consumes int
	err      error
}

func (c *countingLedger) Consume(ctx context.Context, sessionID string, limit int) (ledger.Record, error) {
	c.consumes++
	if c.err != nil {
		return ledger.Record{}, c.err
	}
	return c.MemoryLedger.Consume(ctx, sessionID, limit)
}

func newLedger() *countingLedger {
	return &countingLedger{MemoryLedger: ledger.NewMemoryLedger()}
}

func TestGate_DemoSessionQuota(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	gate := NewGate(Config{AdminPassword: "s3cret"}, l)

	for n := 1; n <= DefaultDemoLimit; n++ {
		grant, err := gate.Authorize(ctx, Credentials{SessionID: "abc"})
		require.NoError(t, err, "request %d", n)
		assert.False(t, grant.Privileged)
		assert.Equal(t, DefaultDemoLimit-n, grant.Remaining)
		assert.Equal(t, "abc", grant.SessionID)
	}

	_, err := gate.Authorize(ctx, Credentials{SessionID: "abc"})
	require.Error(t, err)
	assert.True(t, mnerrors.IsRateLimited(err))
	assert.Contains(t, err.Error(), DefaultLimitMessage)

	rec, err := l.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, DefaultDemoLimit, rec.UsageCount)
}

func TestGate_PrivilegedCaller(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	gate := NewGate(Config{AdminPassword: "s3cret"}, l)

	// Exhaust the session first; the password must still win.
	for i := 0; i < DefaultDemoLimit; i++ {
		_, err := gate.Authorize(ctx, Credentials{SessionID: "abc"})
		require.NoError(t, err)
	}
	consumed := l.consumes

	grant, err := gate.Authorize(ctx, Credentials{Password: "s3cret", SessionID: "abc"})
	require.NoError(t, err)
	assert.True(t, grant.Privileged)
	assert.Equal(t, Unlimited, grant.Remaining)
	assert.Equal(t, consumed, l.consumes, "privileged callers never touch the ledger")
}

func TestGate_WrongPasswordTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	gate := NewGate(Config{AdminPassword: "s3cret"}, l)

	_, err := gate.Authorize(ctx, Credentials{Password: "guess", SessionID: "valid-session"})
	require.Error(t, err)
	assert.True(t, mnerrors.IsUnauthorized(err))
	assert.Contains(t, err.Error(), MsgInvalidPassword)
	assert.Equal(t, 0, l.consumes)
	assert.Equal(t, 0, l.Len())
}

func TestGate_MalformedPassword(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"alone", Credentials{MalformedPassword: true}},
		{"with session", Credentials{MalformedPassword: true, SessionID: "valid-session"}},
		{"with matching text", Credentials{MalformedPassword: true, Password: "s3cret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger()
			gate := NewGate(Config{AdminPassword: "s3cret"}, l)

			_, err := gate.Authorize(context.Background(), tt.creds)
			require.Error(t, err)
			assert.True(t, mnerrors.IsUnauthorized(err))
			assert.Contains(t, err.Error(), MsgInvalidPassword)
			assert.Equal(t, 0, l.consumes)
		})
	}
}

func TestGate_NoCredentials(t *testing.T) {
	gate := NewGate(Config{AdminPassword: "s3cret"}, newLedger())

	_, err := gate.Authorize(context.Background(), Credentials{})
	require.Error(t, err)
	assert.True(t, mnerrors.IsUnauthorized(err))
	assert.Contains(t, err.Error(), MsgAuthRequired)
}

func TestGate_NoSecretConfigured(t *testing.T) {
	gate := NewGate(Config{}, newLedger())

	_, err := gate.Authorize(context.Background(), Credentials{Password: "anything"})
	assert.True(t, mnerrors.IsUnauthorized(err))
}

func TestGate_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	gate := NewGate(Config{AdminPassword: "ignored", AdminPasswordHash: string(hash)}, newLedger())

	grant, err := gate.Authorize(context.Background(), Credentials{Password: "hashed-secret"})
	require.NoError(t, err)
	assert.True(t, grant.Privileged)

	_, err = gate.Authorize(context.Background(), Credentials{Password: "ignored"})
	assert.True(t, mnerrors.IsUnauthorized(err))
}

func TestGate_CustomLimitAndMessage(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(Config{DemoLimit: 2, LimitMessage: "out of transcriptions"}, newLedger())
	assert.Equal(t, 2, gate.DemoLimit())

	grant, err := gate.Authorize(ctx, Credentials{SessionID: "s"})
	require.NoError(t, err)
	assert.Equal(t, 1, grant.Remaining)

	_, err = gate.Authorize(ctx, Credentials{SessionID: "s"})
	require.NoError(t, err)

	_, err = gate.Authorize(ctx, Credentials{SessionID: "s"})
	ae, ok := mnerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "out of transcriptions", ae.Message)
}

func TestGate_LedgerFailure(t *testing.T) {
	l := newLedger()
	l.err = errors.New("connection refused")
	gate := NewGate(Config{}, l)

	_, err := gate.Authorize(context.Background(), Credentials{SessionID: "s"})
	require.Error(t, err)
	assert.Equal(t, mnerrors.ErrInternal, mnerrors.CodeOf(err))
}
