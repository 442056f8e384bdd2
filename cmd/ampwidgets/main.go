package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/ampwidgets/internal/config"
	"github.com/alexjbarnes/ampwidgets/internal/logging"
	"github.com/alexjbarnes/ampwidgets/internal/mcpserver"
	"github.com/alexjbarnes/ampwidgets/internal/oauth"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"github.com/alexjbarnes/ampwidgets/internal/widget"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command needs once config is loaded.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      session.Store
	closeStore func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries rendered widgets and MCP frames.
	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel, os.Stderr)

	store, closeStore, err := session.Open(cfg.SessionBackend, cfg.SessionDBPath, cfg.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	logger.Debug("ampwidgets starting",
		slog.String("version", Version),
		slog.String("session_backend", cfg.SessionBackend),
		slog.String("graph", cfg.GraphAPIBaseURL),
	)

	return &app{cfg: cfg, logger: logger, store: store, closeStore: closeStore}, nil
}

func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("closing session store", slog.String("error", err.Error()))
	}
}

// deps wires the widgets to the configured provider. Page is filled in
// per page load.
func (a *app) deps() widget.Deps {
	return widget.Deps{
		Store:         a.store,
		GraphBaseURL:  a.cfg.GraphAPIBaseURL,
		AuthURL:       a.cfg.OAuthDialogURL,
		ClientID:      a.cfg.OAuthClientID,
		LikeScope:     a.cfg.LikeScope,
		CommentsScope: a.cfg.CommentsScope,
		Preconnector:  widget.NewHTTPPreconnector(nil, a.logger),
		Logger:        a.logger,
	}
}

// withApp loads config for the duration of fn.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, args, a)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ampwidgets",
		Short:         "Render Facebook like, comment and Google Doc widgets from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLikeCmd(),
		newCommentsCmd(),
		newDocCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newMCPCmd(),
	)

	return root
}

func newLikeCmd() *cobra.Command {
	var (
		buttonText string
		click      bool
	)

	cmd := &cobra.Command{
		Use:   "like <url>",
		Short: "Show the like button for a URL, optionally clicking it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			attrs := widget.Attributes{"src": args[0]}
			if cmd.Flags().Changed("button-text") {
				attrs["button-text"] = buttonText
			}

			var action func(context.Context, widget.Element) error
			if click {
				action = func(ctx context.Context, el widget.Element) error {
					return el.(*widget.Like).Click(ctx)
				}
			}

			return runPage(cmd.Context(), a, cmd.OutOrStdout(), widget.LikeElementName, attrs, action)
		}),
	}

	cmd.Flags().StringVar(&buttonText, "button-text", "Like", "button label")
	cmd.Flags().BoolVar(&click, "click", false, "click the button, signing in first if needed")

	return cmd
}

func newCommentsCmd() *cobra.Command {
	var (
		login bool
		pages int
	)

	cmd := &cobra.Command{
		Use:   "comments <url>",
		Short: "Show the comment stream for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			action := func(ctx context.Context, el widget.Element) error {
				c := el.(*widget.Comments)

				if c.View().LoginButton != "" {
					if !login {
						a.logger.Info("not signed in, rerun with --login to view comments")
						return nil
					}

					return c.Login(ctx)
				}

				for i := 1; i < pages; i++ {
					if err := c.Render(cmd.OutOrStdout()); err != nil {
						return err
					}

					fmt.Fprintln(cmd.OutOrStdout())

					if err := c.FollowLink(ctx, widget.Next); err != nil {
						return err
					}

					c.Wait()
				}

				return nil
			}

			return runPage(cmd.Context(), a, cmd.OutOrStdout(), widget.CommentsElementName, widget.Attributes{"object-id": args[0]}, action)
		}),
	}

	cmd.Flags().BoolVar(&login, "login", false, "sign in when no token is held")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to show, following next links")

	return cmd
}

func newDocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doc <url>",
		Short: "Render the iframe embed for a published Google Doc",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			return runPage(cmd.Context(), a, cmd.OutOrStdout(), widget.GoogleDocElementName, widget.Attributes{"src": args[0]}, nil)
		}),
	}
}

func newLoginCmd() *cobra.Command {
	var (
		target string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store the access token",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			scope := a.cfg.LikeScope

			switch target {
			case "like":
			case "comments":
				scope = a.cfg.CommentsScope
			default:
				return fmt.Errorf("unknown widget %q, want like or comments", target)
			}

			if a.store.IsGranted() && !force {
				fmt.Fprintln(cmd.OutOrStdout(), "already signed in, use --force to sign in again")
				return nil
			}

			return runLogin(cmd.Context(), a, oauth.Config{
				AuthURL:       a.cfg.OAuthDialogURL,
				ClientID:      a.cfg.OAuthClientID,
				Scope:         scope,
				StripFragment: true,
			})
		}),
	}

	cmd.Flags().StringVar(&target, "widget", "like", "scope to request: like or comments")
	cmd.Flags().BoolVar(&force, "force", false, "sign in even when a token is held")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.store.Clear(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "signed out")

			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an access token is held",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if a.store.IsGranted() {
				fmt.Fprintln(cmd.OutOrStdout(), oauth.Authenticated)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), oauth.Unauthenticated)
			}

			return nil
		}),
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the widgets as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			tools, err := mcpserver.NewTools(a.deps(), config.CallbackURL(a.cfg.CallbackPort))
			if err != nil {
				return err
			}

			server := mcp.NewServer(
				&mcp.Implementation{Name: "ampwidgets", Version: Version},
				nil,
			)
			mcpserver.RegisterTools(server, tools)

			a.logger.Info("serving MCP over stdio")

			if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}

			return nil
		}),
	}
}
