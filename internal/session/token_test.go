package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := NewManualClock(t0)
	issuer := NewTokenIssuer("secret", time.Hour, clock)

	raw, id, err := issuer.Issue(Binding{AttemptID: 7, ExamID: 3, StudentID: "stu-1", Deadline: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	claims, err := issuer.Verify(raw, 3, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AttemptID)
	assert.Equal(t, id, claims.ID)
}

func TestTokenIssuer_RotatesID(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, NewManualClock(t0))
	b := Binding{AttemptID: 1, ExamID: 1, StudentID: "s", Deadline: t0.Add(time.Hour)}

	_, first, err := issuer.Issue(b)
	require.NoError(t, err)
	_, second, err := issuer.Issue(b)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	clock := NewManualClock(t0)
	issuer := NewTokenIssuer("secret", time.Hour, clock)
	raw, _, err := issuer.Issue(Binding{AttemptID: 7, ExamID: 3, StudentID: "stu-1", Deadline: t0.Add(time.Hour)})
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := issuer.Parse("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other", time.Hour, clock)
		_, err := other.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other exam", func(t *testing.T) {
		_, err := issuer.Verify(raw, 4, "stu-1")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other student", func(t *testing.T) {
		_, err := issuer.Verify(raw, 3, "stu-2")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("valid past deadline within grace", func(t *testing.T) {
		clock.Set(t0.Add(90 * time.Minute))
		_, err := issuer.Parse(raw)
		assert.NoError(t, err)
	})

	t.Run("expired after grace", func(t *testing.T) {
		clock.Set(t0.Add(2 * time.Hour))
		_, err := issuer.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}
