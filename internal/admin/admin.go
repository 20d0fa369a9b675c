// Package admin implements the authctl commands: creating accounts and roles
// without going through the HTTP API.
package admin

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const usage = `usage:
  authctl register -u <username> -e <email>
  authctl role <name>
  authctl grant -u <username> <role>`

var ErrUsage = errors.New(usage)

// Store is the part of *identity.Store the role commands need.
type Store interface {
	FindByName(ctx context.Context, userName string) (*models.User, error)
	CreateRole(ctx context.Context, name string) (*models.Role, error)
	AddUserToRole(ctx context.Context, userID, roleName string) error
}

// Registrar creates accounts with the same validation and bucket handling as
// the HTTP API. *services.AuthService implements it.
type Registrar interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
}

type App struct {
	store Store
	users Registrar
	out   io.Writer
}

func NewApp(store Store, users Registrar, out io.Writer) *App {
	return &App{store: store, users: users, out: out}
}

// Run dispatches args (without the program name) to a command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "register":
		return a.register(ctx, args[1:])
	case "role":
		return a.role(ctx, args[1:])
	case "grant":
		return a.grant(ctx, args[1:])
	default:
		return ErrUsage
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("u", "", "user name")
	email := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil || *username == "" || *email == "" {
		return ErrUsage
	}

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	user, err := a.users.Register(ctx, *username, *email, string(pw))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDuplicateIdentity):
			return fmt.Errorf("user %q or email %q: %w", *username, *email, err)
		case errors.Is(err, common.ErrInvalidInput):
			return fmt.Errorf("register %q: %w", *username, err)
		}
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(a.out, "created user %s (%s)\n", user.UserName, user.ID)
	return nil
}

func (a *App) role(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return ErrUsage
	}

	role, err := a.store.CreateRole(ctx, args[0])
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("role %q: %w", args[0], common.ErrDuplicateIdentity)
		}
		return fmt.Errorf("create role: %w", err)
	}

	fmt.Fprintf(a.out, "created role %s (%s)\n", role.Name, role.ID)
	return nil
}

func (a *App) grant(ctx context.Context, args []string) error {
	fs := newFlagSet("grant")
	username := fs.String("u", "", "user name")
	if err := fs.Parse(args); err != nil || *username == "" || fs.NArg() != 1 {
		return ErrUsage
	}
	roleName := fs.Arg(0)

	user, err := a.store.FindByName(ctx, *username)
	if err != nil {
		return fmt.Errorf("find user %q: %w", *username, err)
	}

	if err := a.store.AddUserToRole(ctx, user.ID, roleName); err != nil {
		return fmt.Errorf("add %q to role %q: %w", *username, roleName, err)
	}

	fmt.Fprintf(a.out, "granted %s to %s\n", roleName, user.UserName)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
