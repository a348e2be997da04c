// based on https://dusted.codes/creating-a-pretty-console-logger-using-gos-slog-package
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

	cyan     = 36
	yellow   = 33
	darkGray = 90
	lightRed = 91
	white    = 97
)

func colorize(colorCode int, v string) string {
	return fmt.Sprintf("\033[%sm%s%s", strconv.Itoa(colorCode), v, reset)
}

type handler struct {
	level  slog.Leveler
	out    io.Writer
	mux    *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Leveler) slog.Handler {
	return NewHandlerWithWriter(os.Stderr, level)
}

func NewHandlerWithWriter(w io.Writer, level slog.Leveler) slog.Handler {
	return &handler{
		level: level,
		out:   w,
		mux:   &sync.Mutex{},
	}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		for _, f := range flatten(a) {
			h2.attrs = append(h2.attrs, h.qualify(f))
		}
	}
	return &h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}

func (h *handler) qualify(a slog.Attr) slog.Attr {
	for i := len(h.groups) - 1; i >= 0; i-- {
		a.Key = h.groups[i] + "." + a.Key
	}
	return a
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch {
	case r.Level >= slog.LevelError:
		level = colorize(lightRed, level)
	case r.Level >= slog.LevelWarn:
		level = colorize(yellow, level)
	case r.Level >= slog.LevelInfo:
		level = colorize(cyan, level)
	default:
		level = colorize(darkGray, level)
	}

	var buf bytes.Buffer
	if !r.Time.IsZero() {
		buf.WriteString(colorize(darkGray, r.Time.Format(timeFormat)))
		buf.WriteString(" ")
	}
	buf.WriteString(level)
	buf.WriteString(" ")
	buf.WriteString(colorize(white, r.Message))

	attrs := append([]slog.Attr{}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range flatten(a) {
			attrs = append(attrs, h.qualify(f))
		}
		return true
	})
	for _, a := range attrs {
		buf.WriteString(" ")
		buf.WriteString(colorize(darkGray, a.Key+"="+formatValue(a.Value)))
	}
	buf.WriteString("\n")

	h.mux.Lock()
	defer h.mux.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// flatten expands group values into attributes with dotted keys. Empty
// attributes and empty groups are dropped.
func flatten(a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup {
		if a.Equal(slog.Attr{}) {
			return nil
		}
		return []slog.Attr{a}
	}

	var attrs []slog.Attr
	for _, member := range a.Value.Group() {
		if a.Key != "" {
			member.Key = a.Key + "." + member.Key
		}
		attrs = append(attrs, flatten(member)...)
	}
	return attrs
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return strconv.Quote(v.String())
	case slog.KindAny:
		switch value := v.Any().(type) {
		case nil:
			return "nil"
		case error:
			return strconv.Quote(value.Error())
		case []byte:
			return strconv.Quote(string(value))
		case fmt.Stringer:
			return strconv.Quote(value.String())
		default:
			asJson, err := json.Marshal(value)
			if err != nil {
				return fmt.Sprintf("%v", value)
			}
			return string(asJson)
		}
	default:
		return v.String()
	}
}
