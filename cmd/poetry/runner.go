package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/client"
	"github.com/sakif/poetry-studio/internal/config"
	"github.com/sakif/poetry-studio/internal/kv"
	"github.com/sakif/poetry-studio/internal/notify"
)

// sessionKey is where login stores the token in the state store.
const sessionKey = "session-token"

// errReported marks failures the user has already seen as a notification.
var errReported = errors.New("already reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

// Runner holds the dependencies of every command. Config, state store and
// API client are created on first use, so `poetry config init` works before
// any of them could.
type Runner struct {
	config   *config.Config
	logger   *slog.Logger
	notifier notify.Notifier
	input    io.Reader
	output   io.Writer

	state      kv.Store
	closeState func() error
	api        *client.Client
	apiURL     string

	lines *bufio.Reader
}

// RunnerOpts lets tests inject everything; zero values are filled in by before.
type RunnerOpts struct {
	Config *config.Config
	Logger *slog.Logger
	State  kv.Store
	Input  io.Reader
	Output io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = newLogger(os.Stderr, "info")
	}
	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		notifier: notify.NewWriter(opts.Output),
		input:    opts.Input,
		output:   opts.Output,
		state:    opts.State,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		writeCommand, historyCommand, showCommand, editCommand, deleteCommand,
		enhanceCommand, backgroundsCommand, loginCommand, logoutCommand,
		hashPasswordCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// before loads the configuration unless one was injected.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.apiURL = cmd.String("api")
	if r.config != nil {
		return ctx, nil
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	r.config = cfg
	r.logger = newLogger(os.Stderr, cfg.Log.Level)
	return ctx, nil
}

func (r *Runner) after(context.Context, *cli.Command) error {
	if r.closeState != nil {
		return r.closeState()
	}
	return nil
}

// stateStore opens the configured local store (drafts, background, session).
func (r *Runner) stateStore(ctx context.Context) (kv.Store, error) {
	if r.state != nil {
		return r.state, nil
	}

	dir, err := r.config.StateDir()
	if err != nil {
		return nil, err
	}
	store, closeFn, err := kv.Open(ctx, kv.Options{
		Backend:       r.config.Draft.Backend,
		Dir:           dir,
		RedisAddr:     r.config.Draft.RedisAddr,
		RedisPassword: r.config.Draft.RedisPassword,
		RedisPrefix:   r.config.Draft.RedisPrefix,
	})
	if err != nil {
		return nil, err
	}
	r.state = store
	r.closeState = closeFn
	return store, nil
}

// client builds the API client, authenticated when a session token is stored.
func (r *Runner) client(ctx context.Context) (*client.Client, error) {
	if r.api != nil {
		return r.api, nil
	}

	state, err := r.stateStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithTimeout(r.config.Client.Timeout),
		client.WithLogger(r.logger),
	}
	token, err := state.Get(ctx, sessionKey)
	switch {
	case err == nil && len(token) > 0:
		opts = append(opts, client.WithToken(string(token)))
	case err != nil && !errors.Is(err, kv.ErrNotFound):
		r.logger.Warn("reading session token", slog.String("error", err.Error()))
	}

	base := r.config.Client.APIURL
	if r.apiURL != "" {
		base = r.apiURL
	}
	api, err := client.New(base, opts...)
	if err != nil {
		return nil, err
	}
	r.api = api
	return api, nil
}

// readLine reads one line of input without the trailing newline.
// io.EOF is returned only when nothing was read.
func (r *Runner) readLine() (string, error) {
	if r.lines == nil {
		r.lines = bufio.NewReader(r.input)
	}
	line, err := r.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}

func (r *Runner) println(args ...any) {
	fmt.Fprintln(r.output, args...)
}
