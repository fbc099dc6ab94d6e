package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/core/metrics"
	"github.com/m3rciful/tiffinbot/internal/order"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

// Event is one inbound text message as seen by the router.
type Event struct {
	SenderID       string
	SenderName     string
	ConversationID string
	Text           string
	// FromSelf marks messages authored by the bot account itself.
	FromSelf bool
}

// Sender delivers a reply into a conversation.
type Sender interface {
	SendText(ctx context.Context, conversationID, text string) error
}

// Archiver keeps closed poll summaries.
type Archiver interface {
	Archive(ctx context.Context, scope string, sum poll.Summary) error
}

// UnrecognizedPolicy decides how non-command text without a usable order is answered.
type UnrecognizedPolicy string

const (
	// UnrecognizedIgnore drops it silently.
	UnrecognizedIgnore UnrecognizedPolicy = "ignore"
	// UnrecognizedHint replies with the format hint when a menu keyword was used without a quantity.
	UnrecognizedHint UnrecognizedPolicy = "hint"
	// UnrecognizedAlways replies with the format hint to every such message.
	UnrecognizedAlways UnrecognizedPolicy = "always"
)

// ScopeMode selects how conversations map to poll scopes.
type ScopeMode string

const (
	// ScopeConversation gives each conversation its own poll slot.
	ScopeConversation ScopeMode = "conversation"
	// ScopeGlobal shares one poll slot across all conversations.
	ScopeGlobal ScopeMode = "global"
)

// Reply statuses, also used as the summary log status.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusIgnored  = "ignored"
)

// Handler names reported for non-command text.
const (
	HandlerOrder   = "order"
	HandlerChatter = "chatter"
	HandlerSelf    = "self"
	HandlerUnknown = "unknown_command"
)

// Reply is the routing decision for one event. Text is empty when nothing is sent.
type Reply struct {
	ConversationID string
	Text           string
	Command        string
	Status         string
	// Code is the poll error code when the request was rejected.
	Code string
}

// Options configures a Router.
type Options struct {
	Manager      *poll.Manager
	Parser       *order.Parser
	Sender       Sender
	Archiver     Archiver
	Metrics      *metrics.Registry
	Unrecognized UnrecognizedPolicy
	Scope        ScopeMode
}

// Router maps chat text onto poll transitions and renders the replies.
type Router struct {
	polls        *poll.Manager
	parser       *order.Parser
	sender       Sender
	archiver     Archiver
	metrics      *metrics.Registry
	unrecognized UnrecognizedPolicy
	scopeMode    ScopeMode

	mu sync.Mutex
	// origin remembers where each scope's poll was opened, for expiry notices.
	origin map[string]pollOrigin
}

type pollOrigin struct {
	conversation string
	openedAt     time.Time
}

// NewRouter validates opts and applies defaults.
func NewRouter(opts Options) (*Router, error) {
	if opts.Manager == nil {
		return nil, errors.New("bot: poll manager is required")
	}
	parser := opts.Parser
	if parser == nil {
		parser = order.NewParser(opts.Manager.Menu())
	}
	switch opts.Unrecognized {
	case UnrecognizedHint, UnrecognizedAlways:
	default:
		opts.Unrecognized = UnrecognizedIgnore
	}
	if opts.Scope != ScopeGlobal {
		opts.Scope = ScopeConversation
	}
	return &Router{
		polls:        opts.Manager,
		parser:       parser,
		sender:       opts.Sender,
		archiver:     opts.Archiver,
		metrics:      opts.Metrics,
		unrecognized: opts.Unrecognized,
		scopeMode:    opts.Scope,
		origin:       make(map[string]pollOrigin),
	}, nil
}

// ScopeOf returns the poll scope an event belongs to.
func (r *Router) ScopeOf(ev Event) string {
	if r.scopeMode == ScopeGlobal {
		return poll.GlobalScope
	}
	return ev.ConversationID
}

// Handle routes ev, then sends the reply. State is committed before sending
// and a failed send is only logged.
func (r *Router) Handle(ctx context.Context, ev Event) Reply {
	reply, ok := r.Route(ctx, ev)
	if ok {
		r.send(ctx, reply.ConversationID, reply.Text)
	}
	return reply
}

// Route applies ev to the poll state and returns the reply to send, if any.
func (r *Router) Route(ctx context.Context, ev Event) (Reply, bool) {
	reply := Reply{ConversationID: ev.ConversationID, Status: StatusOK}
	if ev.FromSelf {
		reply.Command, reply.Status = HandlerSelf, StatusIgnored
		return reply, false
	}

	scope := r.ScopeOf(ev)
	ctx = logger.WithScope(ctx, scope)
	who := participant(ev)
	text := strings.ToLower(strings.TrimSpace(ev.Text))

	cmd, isCommand := parseCommand(text)
	if !isCommand {
		return r.routeText(ctx, scope, who, text, reply)
	}

	reply.Command = cmd.name
	switch cmd.name {
	case CmdPing:
		reply.Text = textPong
	case CmdHelp:
		reply.Text = helpText(r.polls.Menu())
	case CmdStartPoll:
		r.startPoll(ctx, scope, who, cmd.arg, &reply)
	case CmdEndPoll:
		r.endPoll(ctx, scope, who, cmd.arg, &reply)
	case CmdShowPoll:
		r.showPoll(ctx, scope, cmd.arg, &reply)
	case CmdCancel:
		r.cancel(ctx, scope, who, &reply)
	default:
		reply.Command = HandlerUnknown
		reply.Status = StatusRejected
		reply.Text = textUnknown
	}
	return reply, reply.Text != ""
}

func (r *Router) startPoll(ctx context.Context, scope string, who poll.Participant, name string, reply *Reply) {
	info, err := r.polls.Open(ctx, scope, who, name)
	if err != nil {
		var pe *poll.Error
		if errors.As(err, &pe) {
			reply.Text = alreadyActiveText(pe)
		}
		reject(reply, err)
		return
	}
	r.mu.Lock()
	r.origin[scope] = pollOrigin{conversation: reply.ConversationID, openedAt: info.OpenedAt}
	r.mu.Unlock()
	r.metrics.PollEvent("open")
	reply.Text = startedText(info, r.polls.Menu())
}

func (r *Router) endPoll(ctx context.Context, scope string, who poll.Participant, name string, reply *Reply) {
	sum, err := r.polls.Close(ctx, scope, who, name)
	if err != nil {
		var pe *poll.Error
		if errors.As(err, &pe) && pe.Kind == poll.KindNotOwner {
			reply.Text = notOwnerText(pe)
		} else {
			reply.Text = textEndNoPoll
		}
		reject(reply, err)
		return
	}
	r.metrics.PollEvent("close")
	reply.Text = endedText(sum)
	r.finished(ctx, scope, sum)
}

func (r *Router) showPoll(ctx context.Context, scope, name string, reply *Reply) {
	sum, err := r.polls.Show(ctx, scope, name)
	if err != nil {
		reply.Text = textShowNoPoll
		reject(reply, err)
		return
	}
	if sum.Empty() {
		reply.Text = textShowEmpty
		return
	}
	reply.Text = currentText(sum)
}

func (r *Router) cancel(ctx context.Context, scope string, who poll.Participant, reply *Reply) {
	_, err := r.polls.Cancel(ctx, scope, who)
	switch {
	case err == nil:
		r.metrics.OrderEvent("cancelled")
		reply.Text = textCancelled
	case errors.Is(err, poll.ErrNoSuchOrder):
		reply.Text = textCancelNoOrder
		reject(reply, err)
	default:
		reply.Text = textCancelNoPoll
		reject(reply, err)
	}
}

// routeText handles non-command text: an order while a poll runs, chatter otherwise.
func (r *Router) routeText(ctx context.Context, scope string, who poll.Participant, text string, reply Reply) (Reply, bool) {
	reply.Command = HandlerChatter
	if _, active := r.polls.Active(scope); !active {
		reply.Status = StatusIgnored
		return reply, false
	}

	parsed := r.parser.Parse(text)
	if parsed.Order.IsZero() {
		reply.Status = StatusIgnored
		r.metrics.OrderEvent("ignored")
		if r.wantsHint(parsed) {
			reply.Text = hintText(r.polls.Menu())
			return reply, true
		}
		return reply, false
	}

	reply.Command = HandlerOrder
	rec, err := r.polls.Record(ctx, scope, who, parsed.Order)
	if err != nil {
		// The poll closed between the Active check and Record.
		reply.Status = StatusIgnored
		return reply, false
	}
	if rec.Replaced {
		r.metrics.OrderEvent("replaced")
	} else {
		r.metrics.OrderEvent("stored")
	}
	reply.Text = orderNotedText(rec, r.polls.Menu())
	return reply, true
}

func (r *Router) wantsHint(res order.Result) bool {
	switch r.unrecognized {
	case UnrecognizedAlways:
		return true
	case UnrecognizedHint:
		return len(res.Mentioned) > 0
	default:
		return false
	}
}

// Expire closes idle polls and announces each in the conversation that opened it.
// It returns the number of polls closed.
func (r *Router) Expire(ctx context.Context) int {
	expired := r.polls.Expire(ctx)
	for _, e := range expired {
		r.metrics.PollEvent("expire")
		sctx := logger.WithScope(ctx, e.Scope)
		r.mu.Lock()
		conv := e.Scope
		if o, ok := r.origin[e.Scope]; ok {
			conv = o.conversation
		}
		r.mu.Unlock()
		r.finished(sctx, e.Scope, e.Summary)
		r.send(sctx, conv, expiredText(e.Summary))
	}
	return len(expired)
}

// finished archives a closed poll and forgets its origin unless a newer poll
// has already replaced it.
func (r *Router) finished(ctx context.Context, scope string, sum poll.Summary) {
	r.mu.Lock()
	if o, ok := r.origin[scope]; ok && o.openedAt.Equal(sum.OpenedAt) {
		delete(r.origin, scope)
	}
	r.mu.Unlock()
	if r.archiver == nil {
		return
	}
	if err := r.archiver.Archive(ctx, scope, sum); err != nil {
		r.metrics.Archived("fail")
		logger.Warn(ctx, "bot", "archive.fail",
			slog.String("poll", sum.Poll),
			slog.String("err", err.Error()),
		)
		return
	}
	r.metrics.Archived("ok")
}

func (r *Router) send(ctx context.Context, conversationID, text string) {
	if r.sender == nil || text == "" {
		return
	}
	if err := r.sender.SendText(ctx, conversationID, text); err != nil {
		r.metrics.Send("fail")
		logger.Warn(ctx, "bot", "reply.fail",
			slog.String("conversation", conversationID),
			slog.String("err", err.Error()),
		)
	}
}

func reject(reply *Reply, err error) {
	reply.Status = StatusRejected
	var pe *poll.Error
	if errors.As(err, &pe) {
		reply.Code = pe.Code()
	}
}

func participant(ev Event) poll.Participant {
	name := strings.TrimSpace(ev.SenderName)
	if name == "" {
		name = "User"
	}
	return poll.Participant{ID: ev.SenderID, Name: name}
}
