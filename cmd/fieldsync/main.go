package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"fieldsync"
	"fieldsync/internal/config"
	"fieldsync/internal/field"
	"fieldsync/internal/logger"
	"fieldsync/internal/loop"
	"fieldsync/internal/mirror"
	"fieldsync/internal/remote"
	"fieldsync/internal/router"
	"fieldsync/internal/term"
)

const dialTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $FIELDSYNC_CONFIG or fieldsync.yaml)")
	doc := flag.String("doc", "", "document to edit (overrides config)")
	flag.Parse()

	if err := run(*configPath, *doc); err != nil {
		fmt.Fprintln(os.Stderr, "fieldsync:", err)
		os.Exit(1)
	}
}

func run(configPath, doc string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if doc != "" {
		conf.Client.Doc = doc
		if err := conf.Validate(); err != nil {
			return err
		}
	}

	// The terminal owns stdout.
	var logOut io.Writer = io.Discard
	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	if err := logger.Configure(logOut, conf.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l := loop.New()
	d, err := dial(ctx, conf.Client, l)
	if err != nil {
		return err
	}
	defer d.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()
	screen.EnablePaste()
	screen.EnableFocus()

	f := field.New("", field.Options{CRLF: conf.Client.CRLF(), Focused: true})
	mir := mirror.New("", conf.Client.History)
	status := func() string {
		return fmt.Sprintf("site %s  v%d  ^Q quit", d.SiteID(), d.Version())
	}
	view := term.New(screen, f, term.SystemClipboard, conf.Client.Doc, status)

	// The loop is not running yet, so nothing else touches d or f here.
	b, err := fieldsync.Attach(f, d, fieldsync.Options{Name: conf.Client.Doc, Scheduler: l, Mirror: mir})
	if err != nil {
		return err
	}
	defer b.Detach()

	l.OnIdle(view.Draw)
	l.Post(view.Draw)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			l.Post(func() {
				if view.HandleEvent(ev) {
					cancel()
				}
			})
		}
	}()
	go func() {
		select {
		case <-d.Done():
			logger.Log.Warn("relay_disconnected", "doc_id", conf.Client.Doc)
			cancel()
		case <-ctx.Done():
		}
	}()

	err = l.Run(ctx)
	logger.Log.Info("session_end", "doc_id", conf.Client.Doc, "revisions", len(mir.History()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// dial joins the document on the first relay that accepts, in the order
// the router prefers for this document.
func dial(ctx context.Context, c config.Client, l *loop.Loop) (*remote.Doc, error) {
	sel := router.NewSelector(c.Endpoints())
	var errs []error
	for _, url := range sel.Rank(c.Doc) {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		d, err := remote.Dial(dctx, url, c.Doc, l, remote.Options{SiteID: c.Site})
		cancel()
		if err == nil {
			return d, nil
		}
		logger.Log.Warn("dial_failed", "relay", url, "error", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("no relay for %s: %w", c.Doc, errors.Join(errs...))
}
