package logger

import (
	"io"
	"log/slog"
	"os"
)

var Log *slog.Logger

func init() {
	Log = New(os.Stdout, slog.LevelInfo)
}

// New returns a JSON logger writing to w at the given level.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return a
		},
	}))
}

// Configure replaces Log with a logger writing to w at the named level
// ("debug", "info", "warn", "error").
func Configure(w io.Writer, level string) error {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return err
		}
	}
	Log = New(w, lvl)
	return nil
}

func WithConn(connID uint64) *slog.Logger {
	return Log.With("conn_id", connID)
}

func WithDoc(docID string) *slog.Logger {
	return Log.With("doc_id", docID)
}

func WithConnAndDoc(connID uint64, docID string) *slog.Logger {
	return Log.With("conn_id", connID, "doc_id", docID)
}

func WithSite(docID, siteID string) *slog.Logger {
	return Log.With("doc_id", docID, "site_id", siteID)
}

func WithField(name string) *slog.Logger {
	return Log.With("field", name)
}
