// Package prettylog is a colored slog handler for reading logs in a terminal
// during development.
package prettylog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const (
	timeFormat = "15:04:05.000"
)

const (
	reset = "\033[0m"

	darkGray  = 90
	lightRed  = 91
	cyan      = 36
	yellow    = 33
	white     = 97
)

func colorize(colorCode int, v string) string {
	return fmt.Sprintf("\033[%sm%s%s", strconv.Itoa(colorCode), v, reset)
}

type handler struct {
	level  slog.Leveler
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Leveler) slog.Handler {
	return NewHandlerWithWriter(level, os.Stderr)
}

func NewHandlerWithWriter(level slog.Leveler, out io.Writer) slog.Handler {
	return &handler{
		level: level,
		out:   out,
		mu:    &sync.Mutex{},
	}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *handler) clone() *handler {
	return &handler{
		level:  h.level,
		out:    h.out,
		mu:     h.mu,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

// qualify prefixes the key with the open groups, "a.b.key".
func (h *handler) qualify(a slog.Attr) slog.Attr {
	for i := len(h.groups) - 1; i >= 0; i-- {
		a.Key = h.groups[i] + "." + a.Key
	}
	return a
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = colorize(darkGray, level)
	case slog.LevelInfo:
		level = colorize(cyan, level)
	case slog.LevelWarn:
		level = colorize(yellow, level)
	case slog.LevelError:
		level = colorize(lightRed, level)
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(attrs, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.qualify(a))
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(colorize(darkGray, r.Time.Format(timeFormat)))
	buf.WriteString(" ")
	buf.WriteString(level)
	buf.WriteString(" ")
	buf.WriteString(colorize(white, r.Message))
	if len(attrs) > 0 {
		buf.WriteString(" ")
		buf.WriteString(colorize(darkGray, attributesToString(attrs)))
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func addAttr(attrs map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			if a.Key != "" {
				ga.Key = a.Key + "." + ga.Key
			}
			addAttr(attrs, ga)
		}
		return
	}
	attrs[a.Key] = convert(a.Value.Any())
}

func attributesToString(attrs map[string]any) string {
	asJson, err := json.MarshalIndent(attrs, "  ", "  ")
	if err != nil {
		return fmt.Sprintf("%v", attrs)
	}
	return string(asJson)
}

// convert makes a value JSON friendly.
func convert(value any) any {
	switch v := value.(type) {
	case nil:
		return "nil"
	case error:
		return v.Error()
	case []byte:
		return fmt.Sprintf("%v", v)
	case fmt.Stringer:
		return v.String()
	}
	if _, err := json.Marshal(value); err != nil {
		return fmt.Sprintf("%v", value)
	}
	return value
}
