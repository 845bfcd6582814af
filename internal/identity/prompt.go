package identity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter asks for credentials on a terminal. The password is read without
// echo when Fd is a terminal and as a plain line otherwise.
type TerminalPrompter struct {
	In  *bufio.Reader
	Out io.Writer
	Fd  int
	// Email skips the email question when set.
	Email string
}

func (p *TerminalPrompter) Credentials(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	email := strings.TrimSpace(p.Email)
	if email == "" {
		fmt.Fprint(p.Out, "Email: ")
		line, err := p.readLine()
		if err != nil {
			return Credentials{}, err
		}
		email = line
	}
	if email == "" {
		return Credentials{}, ErrSignInAborted
	}

	fmt.Fprint(p.Out, "Password: ")
	var password string
	if term.IsTerminal(p.Fd) {
		raw, err := term.ReadPassword(p.Fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	} else {
		line, err := p.readLine()
		if err != nil {
			return Credentials{}, err
		}
		password = line
	}

	return Credentials{Email: email, Password: password}, nil
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.In.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrSignInAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
