package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const tokenIssuer = "exam-session-service"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

// Claims binds a session token to exactly one attempt. The subject is the
// student id and the token id is rotated on every start or resume.
type Claims struct {
	AttemptID uint `json:"aid"`
	ExamID    uint `json:"eid"`
	jwt.RegisteredClaims
}

// Binding is what the token issuer needs to know about an attempt.
type Binding struct {
	AttemptID uint
	ExamID    uint
	StudentID string
	Deadline  time.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	grace  time.Duration
	clock  Clock
}

// NewTokenIssuer creates an issuer. Tokens stay verifiable for grace after the
// attempt deadline so late calls can still be attributed and turned into a
// deadline submit.
func NewTokenIssuer(secret string, grace time.Duration, clock Clock) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		grace:  grace,
		clock:  clock,
	}
}

// Issue mints a new token for the attempt and returns it with its token id.
func (i *TokenIssuer) Issue(b Binding) (string, string, error) {
	now := i.clock.Now()
	tokenID := uuid.NewString()

	claims := Claims{
		AttemptID: b.AttemptID,
		ExamID:    b.ExamID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    tokenIssuer,
			Subject:   b.StudentID,
			Audience:  jwt.ClaimStrings{"exam:" + strconv.FormatUint(uint64(b.ExamID), 10)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(b.Deadline.Add(i.grace)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, tokenID, nil
}

// Parse verifies the signature and expiry against the issuer's clock.
func (i *TokenIssuer) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Issuer != tokenIssuer || claims.ID == "" || claims.AttemptID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !i.clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// Verify parses the token and checks it belongs to the exam and student.
func (i *TokenIssuer) Verify(raw string, examID uint, studentID string) (*Claims, error) {
	claims, err := i.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.ExamID != examID || claims.Subject != studentID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
