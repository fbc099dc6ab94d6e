package poll

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/internal/order"
)

// DefaultName is used when a poll is opened without a name.
const DefaultName = "default"

// GlobalScope is the single scope key used when polls are not isolated per conversation.
const GlobalScope = "global"

// Participant identifies who submitted or owns something. ID is the stable
// key; Name is only for display.
type Participant struct {
	ID   string
	Name string
}

// ClosePolicy decides who may end an active poll.
type ClosePolicy string

const (
	// CloseOwner restricts closing to the participant who opened the poll.
	CloseOwner ClosePolicy = "owner"
	// CloseAnyone lets any participant close the poll.
	CloseAnyone ClosePolicy = "anyone"
)

// Options configures a Manager.
type Options struct {
	Menu        order.Menu
	DefaultName string
	ClosePolicy ClosePolicy
	// Admins may close any poll regardless of ClosePolicy. Keys are participant IDs.
	Admins map[string]struct{}
	// IdleExpiry closes polls without activity for this long. Zero disables expiry.
	IdleExpiry time.Duration
	Now        func() time.Time
}

// Info is a read-only view of the active poll in a scope.
type Info struct {
	Name         string
	Owner        Participant
	OpenedAt     time.Time
	LastActivity time.Time
	Orders       int
}

// Recorded describes the effect of a Record call.
type Recorded struct {
	Poll        string
	Participant Participant
	Order       order.Order
	// Stored is false when the order was empty and nothing changed.
	Stored bool
	// Replaced is true when an earlier order by the same participant was overwritten.
	Replaced bool
}

// Expired is a poll closed by the idle policy.
type Expired struct {
	Scope   string
	Summary Summary
}

type entry struct {
	participant Participant
	order       order.Order
}

// pollState is the slot of one scope. An inactive slot is the NoPoll state.
type pollState struct {
	name         string
	active       bool
	owner        Participant
	openedAt     time.Time
	lastActivity time.Time
	orders       map[string]*entry
	seq          []string
}

type scope struct {
	mu   sync.Mutex
	poll pollState
}

// Manager owns the poll slots of every scope. Transitions on one scope are
// serialized by that scope's mutex; scopes never block each other.
type Manager struct {
	opts   Options
	mu     sync.Mutex
	scopes map[string]*scope
}

// NewManager applies defaults to opts and returns an empty manager.
func NewManager(opts Options) *Manager {
	if len(opts.Menu) == 0 {
		opts.Menu = order.DefaultMenu()
	}
	opts.DefaultName = normalizeName(opts.DefaultName)
	if opts.DefaultName == "" {
		opts.DefaultName = DefaultName
	}
	if opts.ClosePolicy != CloseAnyone {
		opts.ClosePolicy = CloseOwner
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{opts: opts, scopes: make(map[string]*scope)}
}

// Menu returns the categories polls aggregate over.
func (m *Manager) Menu() order.Menu {
	return m.opts.Menu
}

// DefaultName returns the name used for polls opened without one.
func (m *Manager) DefaultName() string {
	return m.opts.DefaultName
}

// ClosePolicy returns the effective close policy.
func (m *Manager) ClosePolicy() ClosePolicy {
	return m.opts.ClosePolicy
}

func (m *Manager) scope(key string) *scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scopes[key]
	if !ok {
		s = &scope{}
		m.scopes[key] = s
	}
	return s
}

// Active returns the running poll of a scope.
func (m *Manager) Active(scopeKey string) (Info, bool) {
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.poll.active {
		return Info{}, false
	}
	return s.poll.info(), true
}

// Open starts a poll. It fails with KindAlreadyActive while any poll runs in the scope.
func (m *Manager) Open(ctx context.Context, scopeKey string, requester Participant, name string) (Info, error) {
	name = normalizeName(name)
	if name == "" {
		name = m.opts.DefaultName
	}
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll.active {
		return Info{}, &Error{Kind: KindAlreadyActive, Poll: s.poll.name, Owner: s.poll.owner}
	}
	now := m.opts.Now()
	s.poll = pollState{
		name:         name,
		active:       true,
		owner:        requester,
		openedAt:     now,
		lastActivity: now,
		orders:       make(map[string]*entry),
	}
	logger.Info(ctx, "poll", "poll.open",
		slog.String("scope", scopeKey),
		slog.String("poll", name),
		slog.String("participant", requester.ID),
	)
	return s.poll.info(), nil
}

// Record stores o as the requester's full order, replacing any earlier one.
// Quantities above order.MaxQuantity are dropped. An empty order is a no-op
// and reports Stored=false.
func (m *Manager) Record(ctx context.Context, scopeKey string, requester Participant, o order.Order) (Recorded, error) {
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poll.active {
		return Recorded{}, &Error{Kind: KindNoActivePoll}
	}
	rec := Recorded{Poll: s.poll.name, Participant: requester, Order: o.Usable()}
	if rec.Order.IsZero() {
		return rec, nil
	}
	if e, ok := s.poll.orders[requester.ID]; ok {
		e.order = rec.Order.Clone()
		e.participant = requester
		rec.Replaced = true
	} else {
		s.poll.orders[requester.ID] = &entry{participant: requester, order: rec.Order.Clone()}
		s.poll.seq = append(s.poll.seq, requester.ID)
	}
	s.poll.lastActivity = m.opts.Now()
	rec.Stored = true
	logger.Debug(ctx, "poll", "order.record",
		slog.String("scope", scopeKey),
		slog.String("poll", s.poll.name),
		slog.String("participant", requester.ID),
		slog.Bool("replaced", rec.Replaced),
		slog.Int("orders", len(s.poll.seq)),
	)
	return rec, nil
}

// Cancel removes the requester's order from the active poll and returns the poll name.
func (m *Manager) Cancel(ctx context.Context, scopeKey string, requester Participant) (string, error) {
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poll.active {
		return "", &Error{Kind: KindNoActivePoll}
	}
	if _, ok := s.poll.orders[requester.ID]; !ok {
		return s.poll.name, &Error{Kind: KindNoSuchOrder, Poll: s.poll.name, Owner: s.poll.owner}
	}
	delete(s.poll.orders, requester.ID)
	for i, id := range s.poll.seq {
		if id == requester.ID {
			s.poll.seq = append(s.poll.seq[:i], s.poll.seq[i+1:]...)
			break
		}
	}
	s.poll.lastActivity = m.opts.Now()
	logger.Debug(ctx, "poll", "order.cancel",
		slog.String("scope", scopeKey),
		slog.String("poll", s.poll.name),
		slog.String("participant", requester.ID),
		slog.Int("orders", len(s.poll.seq)),
	)
	return s.poll.name, nil
}

// Close ends the active poll and returns its final summary. An empty name
// targets the current poll.
func (m *Manager) Close(ctx context.Context, scopeKey string, requester Participant, name string) (Summary, error) {
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.poll.match(normalizeName(name)); err != nil {
		return Summary{}, err
	}
	if !m.mayClose(requester, s.poll.owner) {
		return Summary{}, &Error{Kind: KindNotOwner, Poll: s.poll.name, Owner: s.poll.owner}
	}
	sum := s.poll.finish(m.opts.Menu)
	logger.Info(ctx, "poll", "poll.close",
		slog.String("scope", scopeKey),
		slog.String("poll", sum.Poll),
		slog.String("participant", requester.ID),
		slog.Int("orders", len(sum.Entries)),
	)
	return sum, nil
}

// Show summarizes the active poll without changing it.
func (m *Manager) Show(_ context.Context, scopeKey, name string) (Summary, error) {
	s := m.scope(scopeKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.poll.match(normalizeName(name)); err != nil {
		return Summary{}, err
	}
	return s.poll.summary(m.opts.Menu), nil
}

// Expire closes polls idle for longer than Options.IdleExpiry. Scopes are
// returned sorted so announcements are deterministic.
func (m *Manager) Expire(ctx context.Context) []Expired {
	if m.opts.IdleExpiry <= 0 {
		return nil
	}
	m.mu.Lock()
	keys := make([]string, 0, len(m.scopes))
	for k := range m.scopes {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)

	now := m.opts.Now()
	var out []Expired
	for _, k := range keys {
		s := m.scope(k)
		s.mu.Lock()
		if s.poll.active && now.Sub(s.poll.lastActivity) >= m.opts.IdleExpiry {
			sum := s.poll.finish(m.opts.Menu)
			out = append(out, Expired{Scope: k, Summary: sum})
			logger.Info(ctx, "poll", "poll.expire",
				slog.String("scope", k),
				slog.String("poll", sum.Poll),
				slog.Int("orders", len(sum.Entries)),
			)
		}
		s.mu.Unlock()
	}
	return out
}

func (m *Manager) mayClose(requester, owner Participant) bool {
	if m.opts.ClosePolicy == CloseAnyone {
		return true
	}
	if requester.ID == owner.ID {
		return true
	}
	_, admin := m.opts.Admins[requester.ID]
	return admin
}

func (p *pollState) match(name string) error {
	if !p.active {
		return &Error{Kind: KindNoActivePoll, Poll: name}
	}
	if name != "" && name != p.name {
		return &Error{Kind: KindNoActivePoll, Poll: name}
	}
	return nil
}

func (p *pollState) info() Info {
	return Info{
		Name:         p.name,
		Owner:        p.owner,
		OpenedAt:     p.openedAt,
		LastActivity: p.lastActivity,
		Orders:       len(p.seq),
	}
}

func (p *pollState) summary(menu order.Menu) Summary {
	entries := make([]Entry, 0, len(p.seq))
	for _, id := range p.seq {
		e := p.orders[id]
		entries = append(entries, Entry{Participant: e.participant, Order: e.order})
	}
	sum := Summarize(p.name, p.owner, menu, entries)
	sum.OpenedAt = p.openedAt
	return sum
}

// finish snapshots the summary, then clears the slot back to NoPoll.
func (p *pollState) finish(menu order.Menu) Summary {
	sum := p.summary(menu)
	*p = pollState{name: p.name}
	return sum
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
