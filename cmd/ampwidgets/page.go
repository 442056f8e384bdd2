package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alexjbarnes/ampwidgets/internal/oauth"
	"github.com/alexjbarnes/ampwidgets/internal/page"
	"github.com/alexjbarnes/ampwidgets/internal/widget"
	"golang.org/x/sync/errgroup"
)

// maxPageLoads bounds sign-in round trips in one run. A provider that
// keeps rejecting fresh tokens would otherwise loop forever.
const maxPageLoads = 3

var errTooManyLoads = errors.New("page kept navigating away, giving up")

// pageAction runs once against the element after the first layout.
type pageAction func(ctx context.Context, el widget.Element) error

// runPage hosts one element on the loopback page. Each browser load is a
// fresh page: the element is mounted, laid out and, on the first load,
// given action. When the element leaves the page for sign-in, the run
// waits for the browser to come back and loads again. The element is
// rendered to out once a load finishes without navigating.
func runPage(ctx context.Context, a *app, out io.Writer, name string, attrs widget.Attributes, action pageAction) error {
	lb, err := page.NewLoopback(a.cfg.CallbackPort,
		page.WithSkipBrowser(a.cfg.SkipBrowser),
		page.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	pageCtx, stopPage := context.WithCancel(gctx)

	g.Go(func() error {
		return lb.Serve(pageCtx)
	})

	g.Go(func() error {
		defer stopPage()

		deps := a.deps()
		deps.Page = lb

		for load := 0; ; load++ {
			host := widget.NewHost(widget.DefaultRegistry(), deps)

			el, err := host.Mount(name, attrs)
			if err != nil {
				return err
			}

			if err := host.LayoutAll(gctx); err != nil {
				return err
			}

			host.Wait()

			if _, left := lb.Navigated(); !left && load == 0 && action != nil {
				if err := action(gctx, el); err != nil {
					return err
				}

				host.Wait()
			}

			if _, left := lb.Navigated(); !left {
				return host.Render(out)
			}

			if load+1 >= maxPageLoads {
				return errTooManyLoads
			}

			a.logger.Info("waiting for the browser to return to the page",
				slog.String("page", lb.BaseURL().String()),
			)

			if _, err := lb.WaitForLoad(gctx); err != nil {
				return err
			}
		}
	})

	return g.Wait()
}

// runLogin signs in through the loopback page and stores the token that
// comes back.
func runLogin(ctx context.Context, a *app, cfg oauth.Config) error {
	lb, err := page.NewLoopback(a.cfg.CallbackPort,
		page.WithSkipBrowser(a.cfg.SkipBrowser),
		page.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	ctrl := oauth.NewController(a.store, lb, cfg, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	pageCtx, stopPage := context.WithCancel(gctx)

	g.Go(func() error {
		return lb.Serve(pageCtx)
	})

	g.Go(func() error {
		defer stopPage()

		if err := ctrl.SignIn(gctx); err != nil {
			return err
		}

		if _, err := lb.WaitForLoad(gctx); err != nil {
			return err
		}

		act, err := ctrl.Activate()
		if err != nil {
			return err
		}

		if !act.Arrived {
			return fmt.Errorf("sign-in did not return an access token")
		}

		a.logger.Info("signed in", slog.String("state", act.State.String()))

		return nil
	})

	return g.Wait()
}
