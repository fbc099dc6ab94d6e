package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *lineQueue
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one kv or JSON line with a stable key order:
// keys listed in keyOrder first, the rest alphabetically.
type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	e := newEntry(8 + len(h.attrs) + r.NumAttrs())
	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	e.set("level", normalizeLevel(r.Level.String()))
	if isJSON {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		e.add(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(prefix, a)
		return true
	})
	e.fromContext(ctx)

	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if isJSON {
				e.setDefault("rid_full", rid)
			}
			e.set("rid", short)
		}
	}
	if e.str("event") == "" {
		e.set("event", cmp.Or(r.Message, "unknown"))
	}
	if e.str("component") == "" {
		e.set("component", "app")
	}
	if s := e.str("status"); s != "" {
		norm, _ := normalizeStatus(s)
		e.set("status", norm)
	}
	if o := e.str("outcome"); o != "" {
		norm, ok := normalizeOutcome(o)
		if !ok {
			norm = ""
		}
		e.set("outcome", norm)
	}

	out, err := h.render(e.sorted(h.rank, len(h.cfg.keyOrder)))
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(r.Level, append(out, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clip(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

func (h *structuredHandler) render(fields []field) ([]byte, error) {
	var b strings.Builder
	if h.cfg.format == formatJSON {
		b.WriteByte('{')
		for i, f := range fields {
			data, err := json.Marshal(f.val)
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f.key))
			b.WriteByte(':')
			b.Write(data)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(kvValue(f.val))
	}
	return []byte(b.String()), nil
}

type field struct {
	key string
	val any
}

// entry is an insertion-ordered field set; later writes to a key replace earlier ones.
type entry struct {
	index  map[string]int
	fields []field
}

func newEntry(n int) *entry {
	return &entry{index: make(map[string]int, n), fields: make([]field, 0, n)}
}

func (e *entry) set(key string, val any) {
	if i, ok := e.index[key]; ok {
		e.fields[i].val = val
		return
	}
	e.index[key] = len(e.fields)
	e.fields = append(e.fields, field{key: key, val: val})
}

func (e *entry) setDefault(key string, val any) {
	if _, ok := e.index[key]; !ok {
		e.set(key, val)
	}
}

func (e *entry) str(key string) string {
	i, ok := e.index[key]
	if !ok || e.fields[i].val == nil {
		return ""
	}
	if s, ok := e.fields[i].val.(string); ok {
		return s
	}
	return fmt.Sprint(e.fields[i].val)
}

// add flattens groups into dotted keys.
func (e *entry) add(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := attrValue(key, v); ok {
		e.set(k, val)
	}
}

func (e *entry) fromContext(ctx context.Context) {
	m := metaFrom(ctx)
	if m.rid != "" {
		e.setDefault("rid", m.rid)
	}
	if m.scope != "" {
		e.setDefault("scope", m.scope)
	}
	if m.userID != 0 {
		e.setDefault("user_id", m.userID)
	}
	if m.updateID != 0 {
		e.setDefault("update_id", m.updateID)
	}
	if m.chatID != 0 {
		e.setDefault("chat_id", m.chatID)
	}
	if m.handler != "" {
		e.setDefault("handler", m.handler)
	}
}

// sorted drops empty values and orders the rest by rank, then by key.
func (e *entry) sorted(rank map[string]int, unranked int) []field {
	out := make([]field, 0, len(e.fields))
	for _, f := range e.fields {
		switch v := f.val.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
		}
		out = append(out, f)
	}
	pos := func(k string) int {
		if r, ok := rank[k]; ok {
			return r
		}
		return unranked
	}
	slices.SortFunc(out, func(a, b field) int {
		return cmp.Or(cmp.Compare(pos(a.key), pos(b.key)), strings.Compare(a.key, b.key))
	})
	return out
}

func attrValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps duration attrs onto *_ms keys so sinks never see raw nanoseconds.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
