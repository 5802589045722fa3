package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelCaser = cases.Title(language.English)

// consoleSink serialises writes from every handler derived from one root.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *consoleSink) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

type field struct {
	key string
	val slog.Value
}

// consoleHandler renders one header line per record followed by indented
// fields. At info and above the marker, origin and component move into the
// header and field keys are shown as labels; debug records list raw keys.
type consoleHandler struct {
	sink   *consoleSink
	level  slog.Leveler
	source bool
	prefix string
	preset []field
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	return &consoleHandler{sink: &consoleSink{w: w}, level: level, source: source}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = appendFields(slices.Clone(h.preset), h.prefix, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})
	fields = lastValueWins(fields)

	verbose := record.Level < slog.LevelInfo
	var component, marker, origin string
	body := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = attrString(f.val)
		case FieldMarker:
			marker = attrString(f.val)
		case FieldOrigin:
			origin = attrString(f.val)
		}
		if !verbose && isHeaderKey(f.key) {
			continue
		}
		body = append(body, f)
	}

	var b strings.Builder
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(formatTimestamp(ts))
	b.WriteString(" " + levelName(record.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := subjectOf(marker, origin); subject != "" {
		b.WriteString(" " + subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" – " + msg)
	if h.source {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')

	for _, f := range body {
		if verbose {
			fmt.Fprintf(&b, "    %s: %s\n", f.key, formatValue(f.val))
		} else {
			fmt.Fprintf(&b, "    - %s: %s\n", fieldLabel(f.key), formatValue(f.val))
		}
	}
	return h.sink.write([]byte(b.String()))
}

func isHeaderKey(key string) bool {
	switch key {
	case FieldComponent, FieldMarker, FieldOrigin, FieldEventID, FieldSessionID:
		return true
	}
	return false
}

// subjectOf shortens the marker to "<run dir>/<file>" and appends the origin.
func subjectOf(marker, origin string) string {
	marker = strings.TrimSpace(marker)
	origin = strings.TrimSpace(origin)
	if marker != "" {
		marker = filepath.Join(filepath.Base(filepath.Dir(marker)), filepath.Base(marker))
	}
	switch {
	case marker == "":
		return origin
	case origin == "":
		return marker
	default:
		return marker + " (" + origin + ")"
	}
}

func fieldLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	}
	return labelCaser.String(strings.NewReplacer("_", " ", ".", " ").Replace(key))
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// appendFields flattens groups into dotted keys under prefix.
func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		val := attr.Value.Resolve()
		if val.Kind() == slog.KindGroup {
			dst = appendFields(dst, joinKey(prefix, attr.Key), val.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: joinKey(prefix, attr.Key), val: val})
	}
	return dst
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// lastValueWins drops repeated keys, keeping the first position and the last
// value.
func lastValueWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].val = f.val
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}
