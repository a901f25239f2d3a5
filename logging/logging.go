package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Options struct {
	Level  slog.Level
	Writer io.Writer

	// colorize the level column, ignored when the writer is not a terminal
	Color bool
}

func New(opts Options) *slog.Logger {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	return slog.New(&consoleHandler{
		out:   opts.Writer,
		level: opts.Level,
		color: opts.Color && !color.NoColor,
		mu:    &sync.Mutex{},
	})
}

func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unable to parse log level %q: %s", s, err.Error())
	}
	return l, nil
}

// consoleHandler writes "time LEVEL msg k=v ..." lines
type consoleHandler struct {
	out   io.Writer
	level slog.Level
	color bool

	attrs  []slog.Attr
	groups []string

	mu *sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {

	var sb strings.Builder

	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteByte(' ')
	sb.WriteString(h.levelLabel(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")

	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, prefix, a)
		return true
	})

	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr{}, h.attrs...)

	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *consoleHandler) levelLabel(l slog.Level) string {
	label := fmt.Sprintf("%-5s", l.String())
	if !h.color {
		return label
	}

	switch {
	case l >= slog.LevelError:
		return color.RedString(label)
	case l >= slog.LevelWarn:
		return color.YellowString(label)
	case l >= slog.LevelInfo:
		return color.GreenString(label)
	default:
		return color.CyanString(label)
	}
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(sb, key, ga)
		}
		return
	}

	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(fmt.Sprintf("%v", a.Value.Any()))
}
