package identity

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestProvider(t *testing.T) *Local {
	t.Helper()
	p := NewLocal(NewMemoryAccounts(), testSecret, time.Hour)
	p.Cost = bcrypt.MinCost
	_, err := p.Register(context.Background(), Registration{
		Email:       "Ada@Example.com ",
		Password:    "correct horse",
		DisplayName: "Ada",
	})
	assert.Equal(t, nil, err)
	return p
}

func TestLocalSignInNotifiesListeners(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	seen := []*User{}
	cancel := p.OnChange(func(u *User) { seen = append(seen, u) })
	// initial notification reports the signed-out state
	assert.Equal(t, 1, len(seen))
	assert.Equal(t, true, seen[0] == nil)

	user, err := p.SignIn(ctx, StaticPrompter{Email: "ada@example.com", Password: "correct horse"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "ada@example.com", *user.Email)
	assert.Equal(t, "Ada", *user.DisplayName)
	assert.Equal(t, true, user.PhotoURL == nil)
	assert.NotEqual(t, "", user.Token)
	assert.Equal(t, 2, len(seen))
	assert.Equal(t, user.UID, seen[1].UID)

	verified, err := p.Verify(ctx, user.Token)
	assert.Equal(t, nil, err)
	assert.Equal(t, user.UID, verified.UID)

	assert.Equal(t, nil, p.SignOut(ctx))
	assert.Equal(t, 3, len(seen))
	assert.Equal(t, true, seen[2] == nil)
	assert.Equal(t, true, p.Current() == nil)

	_, err = p.Verify(ctx, user.Token)
	assert.Equal(t, true, errors.Is(err, ErrInvalidToken))

	cancel()
	p.SignIn(ctx, StaticPrompter{Email: "ada@example.com", Password: "correct horse"})
	assert.Equal(t, 3, len(seen))
}

func TestLocalSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, err := p.SignIn(ctx, StaticPrompter{Email: "ada@example.com", Password: "wrong password"})
	assert.Equal(t, ErrInvalidCredentials, err)

	_, err = p.SignIn(ctx, StaticPrompter{Email: "nobody@example.com", Password: "correct horse"})
	assert.Equal(t, ErrInvalidCredentials, err)

	assert.Equal(t, true, p.Current() == nil)
}

func TestLocalRegisterRejectsDuplicates(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Register(context.Background(), Registration{Email: "ada@example.com", Password: "another password"})
	assert.Equal(t, ErrEmailTaken, err)

	_, err = p.Register(context.Background(), Registration{Email: "short@example.com", Password: "short"})
	assert.Equal(t, ErrWeakRegistration, err)
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := IssueToken([]byte(testSecret), "u1", "a@b.c", now, time.Minute)
	assert.Equal(t, nil, err)

	claims, err := ParseToken([]byte(testSecret), token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@b.c", claims.Email)

	_, err = ParseToken([]byte("other"), token)
	assert.Equal(t, true, errors.Is(err, ErrInvalidToken))

	expired, _ := IssueToken([]byte(testSecret), "u1", "", now.Add(-time.Hour), time.Minute)
	_, err = ParseToken([]byte(testSecret), expired)
	assert.Equal(t, true, errors.Is(err, ErrInvalidToken))
}

func TestTerminalPrompterReadsLines(t *testing.T) {
	out := &bytes.Buffer{}
	p := &TerminalPrompter{
		In:  bufio.NewReader(strings.NewReader("ada@example.com\nsecret pw\n")),
		Out: out,
		Fd:  -1,
	}

	creds, err := p.Credentials(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Credentials{Email: "ada@example.com", Password: "secret pw"}, creds)
	assert.Equal(t, "Email: Password: ", out.String())

	empty := &TerminalPrompter{In: bufio.NewReader(strings.NewReader("")), Out: out, Fd: -1}
	_, err = empty.Credentials(context.Background())
	assert.Equal(t, ErrSignInAborted, err)
}
