package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/auth"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/backend"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/console"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/database"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/logging"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/docopt/docopt-go"
)

const PostctlVersion = "0.1.0"

func main() {
	usage := `Postboard terminal client.

Configuration is read from the environment and an optional .env file, the same
variables the server uses.

Usage:
    postctl console [--email=<email>]
    postctl register --email=<email> --name=<name> [--photo=<url>]
    postctl posts [--json]
    postctl -h | --help
    postctl --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --email=<email>    Account email; asked for when omitted.
    --name=<name>      Display name shown on posts.
    --photo=<url>      Avatar URL.
    --json             Print the post list as JSON.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], PostctlVersion)
	if err != nil {
		panic(err)
	}

	// Keep the terminal for the console; only warnings and errors are logged.
	base := logging.SetupWriter(os.Stderr, slog.LevelWarn)

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second interrupt kills a console blocked on input
		<-ctx.Done()
		stop()
	}()

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer b.Close()
	if database.DB != nil {
		pg := logging.AttachPostgres(base, database.DB)
		defer pg.Stop()
	}

	if console_, _ := opts.Bool("console"); console_ {
		err = runConsole(ctx, b, opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		err = register(ctx, b, opts)
	} else if posts_, _ := opts.Bool("posts"); posts_ {
		err = listPosts(ctx, b, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fail(err)
	}
}

func runConsole(ctx context.Context, b *backend.Backend, opts docopt.Opts) error {
	sess, err := session.Open(ctx, b.Provider, b.Docs)
	if err != nil {
		return err
	}
	defer sess.Close()

	in := bufio.NewReader(os.Stdin)
	email, _ := opts.String("--email")
	prompter := &identity.TerminalPrompter{
		In:    in,
		Out:   os.Stdout,
		Fd:    int(os.Stdin.Fd()),
		Email: email,
	}
	return console.New(sess, in, os.Stdout, prompter).Run(ctx)
}

func register(ctx context.Context, b *backend.Backend, opts docopt.Opts) error {
	email, _ := opts.String("--email")
	name, _ := opts.String("--name")
	photo, _ := opts.String("--photo")

	prompter := &identity.TerminalPrompter{
		In:    bufio.NewReader(os.Stdin),
		Out:   os.Stdout,
		Fd:    int(os.Stdin.Fd()),
		Email: email,
	}
	creds, err := prompter.Credentials(ctx)
	if err != nil {
		return err
	}

	user, err := b.Provider.Register(ctx, identity.Registration{
		Email:       creds.Email,
		Password:    creds.Password,
		DisplayName: name,
		PhotoURL:    photo,
	})
	if err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", *user.Email, user.UID)
	return nil
}

// listPosts loads the list once; it needs no sign-in.
func listPosts(ctx context.Context, b *backend.Backend, opts docopt.Opts) error {
	store := posts.NewStore(b.Docs, auth.NewStore(b.Provider))
	if err := store.FetchPosts(ctx); err != nil {
		return err
	}

	if asJSON, _ := opts.Bool("--json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.State().Posts)
	}
	console.Render(os.Stdout, store.State(), "")
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
