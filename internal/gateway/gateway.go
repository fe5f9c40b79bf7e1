// Package gateway relays events posted over HTTP to every websocket subscriber.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"rebase/internal/journal"
	"rebase/internal/metrics"
	"rebase/pkg/apperror"
	"rebase/pkg/logger"
)

// otherEventLabel groups every event name outside the allow-list in metrics.
const otherEventLabel = "other"

// LoadGraphEvent carries the base workflow template on reset.
const LoadGraphEvent = "load_graph"

// DefaultAllowedEvents is the allow-list applied when enforcement is on.
var DefaultAllowedEvents = []string{
	"prompt_replace",
	"generate",
	LoadGraphEvent,
	"set_prompt",
	"prepare",
	"reset_graph",
}

// Broadcaster pushes a named event to all live subscribers.
type Broadcaster interface {
	Send(ctx context.Context, event string, data json.RawMessage) error
}

// Template is the base workflow document, read once at startup.
type Template struct {
	path string
	text string
}

func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow template: %w", err)
	}
	return &Template{path: path, text: string(data)}, nil
}

func NewTemplate(text string) *Template {
	return &Template{text: text}
}

func (t *Template) Path() string { return t.path }

func (t *Template) Text() string { return t.text }

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Options struct {
	EnforceAllowlist bool
	// Allowed overrides DefaultAllowedEvents when non-empty.
	Allowed []string
}

type Gateway struct {
	broadcaster Broadcaster
	journal     journal.Journal
	template    *Template
	enforce     bool
	allowed     map[string]bool
}

// New builds a gateway. tmpl may be nil, in which case ResetToTemplate always
// fails; j may be nil to skip journaling.
func New(b Broadcaster, j journal.Journal, tmpl *Template, opts Options) *Gateway {
	if j == nil {
		j = journal.Nop{}
	}
	names := opts.Allowed
	if len(names) == 0 {
		names = DefaultAllowedEvents
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return &Gateway{
		broadcaster: b,
		journal:     j,
		template:    tmpl,
		enforce:     opts.EnforceAllowlist,
		allowed:     allowed,
	}
}

// Forward validates env and relays it verbatim. A missing data field is sent
// as an empty object.
func (g *Gateway) Forward(ctx context.Context, env Envelope) error {
	if env.Event == "" {
		metrics.ForwardedEvents.WithLabelValues(otherEventLabel, "rejected").Inc()
		return apperror.Invalid("Event field is required")
	}
	if g.enforce && !g.allowed[env.Event] {
		metrics.ForwardedEvents.WithLabelValues(g.eventLabel(env.Event), "rejected").Inc()
		return apperror.Invalid("Unsupported event: %s", env.Event)
	}

	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return g.relay(ctx, env.Event, data)
}

// ResetToTemplate relays the cached template text as a JSON string under
// LoadGraphEvent.
func (g *Gateway) ResetToTemplate(ctx context.Context) error {
	if g.template == nil {
		return apperror.Internalf("Workflow template is not loaded")
	}
	data, err := json.Marshal(g.template.text)
	if err != nil {
		return apperror.Wrap(err, "Failed to encode workflow template")
	}
	return g.relay(ctx, LoadGraphEvent, data)
}

func (g *Gateway) relay(ctx context.Context, event string, data json.RawMessage) error {
	label := g.eventLabel(event)
	if err := g.broadcaster.Send(ctx, event, data); err != nil {
		metrics.ForwardedEvents.WithLabelValues(label, "error").Inc()
		return apperror.Wrap(err, "Failed to forward message")
	}
	metrics.ForwardedEvents.WithLabelValues(label, "ok").Inc()

	if err := g.journal.Record(ctx, event, data); err != nil {
		logger.Sugar.Warnf("Failed to journal event %s: %v", event, err)
	}
	return nil
}

// eventLabel keeps the metric label set bounded whether or not the
// allow-list is enforced.
func (g *Gateway) eventLabel(event string) string {
	if g.allowed[event] {
		return event
	}
	return otherEventLabel
}
