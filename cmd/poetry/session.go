package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/auth"
	"github.com/sakif/poetry-studio/internal/config"
	"github.com/sakif/poetry-studio/internal/notify"
)

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in to the server and remember the session token",
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the stored session token",
		Action: r.Logout,
	}
}

func hashPasswordCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "hash-password",
		Usage:  "Print a bcrypt hash for auth.password_hash in the server config",
		Action: r.HashPassword,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the example configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "Where to write it (default: user config dir)"},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "path",
				Usage:  "Print the default configuration path",
				Action: r.ConfigPath,
			},
		},
	}
}

// Login reads the password from the first line of stdin.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	r.printf("Password: ")
	password, err := r.readLine()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	api, err := r.client(ctx)
	if err != nil {
		return err
	}
	token, err := api.Login(ctx, strings.TrimSpace(password))
	if err != nil {
		r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Login failed", Message: err.Error()})
		return reported(err)
	}

	state, err := r.stateStore(ctx)
	if err != nil {
		return err
	}
	if err := state.Set(ctx, sessionKey, []byte(token)); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	r.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Logged in"})
	return nil
}

func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	state, err := r.stateStore(ctx)
	if err != nil {
		return err
	}
	if err := state.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("removing session token: %w", err)
	}
	r.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Logged out"})
	return nil
}

func (r *Runner) HashPassword(ctx context.Context, cmd *cli.Command) error {
	r.printf("Password: ")
	password, err := r.readLine()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	hash, err := auth.NewPasswordService().Hash(strings.TrimSpace(password))
	if err != nil {
		return err
	}
	r.printf("\n%s\n", hash)
	return nil
}

func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	r.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Config written", Message: path})
	return nil
}

func (r *Runner) ConfigPath(ctx context.Context, cmd *cli.Command) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	r.println(path)
	return nil
}
