package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/mattn/go-isatty"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/adotask/internal/ado"
	"github.com/kazz187/adotask/internal/config"
	"github.com/kazz187/adotask/internal/server"
	"github.com/kazz187/adotask/internal/session"
	"github.com/kazz187/adotask/internal/task"
	"github.com/kazz187/adotask/internal/tool"
	"github.com/kazz187/adotask/pkg/clog"
	"github.com/kazz187/adotask/pkg/storage"
)

var version = "dev"

var (
	app = kingpin.New("mcp-adotask", "MCP server for Azure DevOps stories and tasks")

	serveCmd  = app.Command("serve", "Serve the MCP tools (stdio unless --http)").Default()
	serveHTTP = serveCmd.Flag("http", "Serve streamable HTTP on ADO_HTTP_HOST:ADO_HTTP_PORT instead of stdio").Bool()

	sessionCmd     = app.Command("session", "Inspect the saved session")
	sessionShowCmd = sessionCmd.Command("show", "Print the saved session")

	toolsCmd = app.Command("tools", "Print the tool catalog")
)

func main() {
	app.Version(version)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	setupLogger(env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := newStorage(ctx, &env.SessionEnv)
	if err != nil {
		slog.Error("failed to create session storage", "error", err)
		os.Exit(1)
	}
	sessions := session.NewStore(store)

	switch command {
	case serveCmd.FullCommand():
		err = serve(ctx, env, sessions, *serveHTTP)
	case sessionShowCmd.FullCommand():
		err = showSession(ctx, sessions)
	case toolsCmd.FullCommand():
		err = printTools(newRouter(env, sessions))
	}
	if err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// Logs go to stderr: stdout carries the MCP stream in stdio mode.
func setupLogger(env *config.Env) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr,
			clog.WithLevel(level),
			clog.WithColor(isatty.IsTerminal(os.Stderr.Fd())),
			clog.WithColumns("method", "path", "status", clog.ToolAttributeKey, clog.RequestIDAttributeKey),
		)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func newStorage(ctx context.Context, env *config.SessionEnv) (storage.Storage, error) {
	switch env.Storage {
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
	case "local", "":
		return storage.NewLocalStorage(env.Dir)
	default:
		return nil, fmt.Errorf("unknown session storage %q (use local or s3)", env.Storage)
	}
}

func newRouter(env *config.Env, sessions *session.Store) *tool.Router {
	client := ado.NewClient(&env.ADOEnv)
	return tool.NewRouter(task.NewService(client, sessions), sessions)
}

func serve(ctx context.Context, env *config.Env, sessions *session.Store, useHTTP bool) error {
	mcpServer := tool.NewMCPServer(newRouter(env, sessions), version)
	if !useHTTP {
		slog.Info("serving MCP over stdio", "org", env.Org, "project", env.Project)
		return mcpServer.Run(ctx, &mcp.StdioTransport{})
	}

	srv := server.NewServer(&env.HTTPEnv, mcpServer, func(ctx context.Context) error {
		_, err := sessions.Load(ctx)
		return err
	})
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func showSession(ctx context.Context, sessions *session.Store) error {
	saved, err := sessions.Saved(ctx)
	if err != nil {
		return err
	}
	if !saved {
		fmt.Fprintln(os.Stderr, "no session saved")
		return nil
	}
	sess, err := sessions.Load(ctx)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(sess)
}

type toolEntry struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Required    []string `yaml:"required,omitempty"`
}

func printTools(r *tool.Router) error {
	tools := r.Tools()
	entries := make([]toolEntry, len(tools))
	for i, t := range tools {
		entries[i] = toolEntry{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			Required:    t.Required(),
		}
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(entries)
}
