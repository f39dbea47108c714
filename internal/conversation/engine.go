package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-autoresponder/internal/events"
	"github.com/wolfman30/clinic-autoresponder/internal/locking"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/internal/settings"
	"github.com/wolfman30/clinic-autoresponder/internal/turns"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

var engineTracer = otel.Tracer("clinic.internal.conversation.engine")

// DedupeProvider namespaces message ids in the deduper.
const DedupeProvider = "whatsapp"

// ErrDispatchFailed means a reply could not be delivered. The patient state
// was not advanced and remaining replies stay unsent.
var ErrDispatchFailed = errors.New("conversation: dispatch failed")

// ErrStaleState means a concurrent handler advanced the patient first.
var ErrStaleState = patients.ErrStaleState

// Dispatcher delivers one reply and returns the provider message id.
type Dispatcher interface {
	Send(ctx context.Context, to string, reply Reply) (string, error)
}

// ScriptMatcher scores a message against the script library.
type ScriptMatcher interface {
	Match(ctx context.Context, in scripts.MatchInput) (scripts.MatchResult, error)
}

// ScriptSource lists the scripts eligible for matching.
type ScriptSource interface {
	ListActive(ctx context.Context) ([]*scripts.Script, error)
}

// SettingsSource returns the current clinic settings.
type SettingsSource interface {
	GetOrInit(ctx context.Context) (settings.Settings, error)
}

// Observer records per-message outcomes.
type Observer interface {
	ObserveInbound(kind, result string)
	ObserveTransition(from, to string)
}

// Deps wires an Engine. Locker, Deduper and Observer are optional.
type Deps struct {
	Patients   patients.Repository
	Scripts    ScriptSource
	Settings   SettingsSource
	Turns      turns.Store
	Matcher    ScriptMatcher
	Dispatcher Dispatcher
	Locker     locking.Locker
	Deduper    events.Deduper
	Observer   Observer
	Logger     *logging.Logger
	Clock      func() time.Time
}

// Outcome summarizes how one inbound message was handled. Resumed means a
// turn recorded by an earlier attempt was completed; Superseded means it was
// dropped because the patient moved past the state it was decided in.
type Outcome struct {
	Duplicate  bool
	Created    bool
	Resumed    bool
	Superseded bool
	Patient    *patients.Patient
	From       patients.State
	To         patients.State
	Turn       *turns.Turn
	Match      *scripts.MatchResult
}

// Engine runs the per-patient conversation flow.
type Engine struct {
	patients   patients.Repository
	scripts    ScriptSource
	settings   SettingsSource
	turns      turns.Store
	matcher    ScriptMatcher
	dispatcher Dispatcher
	locker     locking.Locker
	deduper    events.Deduper
	observer   Observer
	logger     *logging.Logger
	now        func() time.Time
}

func NewEngine(deps Deps) *Engine {
	if deps.Patients == nil || deps.Turns == nil || deps.Settings == nil {
		panic("conversation: patients, turns and settings stores are required")
	}
	if deps.Scripts == nil || deps.Matcher == nil {
		panic("conversation: script source and matcher are required")
	}
	if deps.Dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		patients:   deps.Patients,
		scripts:    deps.Scripts,
		settings:   deps.Settings,
		turns:      deps.Turns,
		matcher:    deps.Matcher,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		deduper:    deps.Deduper,
		observer:   deps.Observer,
		logger:     logger.WithComponent("conversation"),
		now:        clock,
	}
}

// Handle processes one inbound message: dedupe, lock the phone, decide the
// replies, persist the turn, send, then commit the patient transition.
func (e *Engine) Handle(ctx context.Context, in Inbound) (Outcome, error) {
	ctx, span := engineTracer.Start(ctx, "conversation.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.message_id", in.MessageID),
		attribute.String("clinic.from", in.From),
		attribute.String("clinic.kind", KindLabel(in.Kind)),
	)
	kind := KindLabel(in.Kind)

	if strings.TrimSpace(in.From) == "" {
		err := errors.New("conversation: sender phone required")
		span.RecordError(err)
		return Outcome{}, err
	}

	marked := false
	if e.deduper != nil && in.MessageID != "" {
		fresh, err := e.deduper.MarkProcessed(ctx, DedupeProvider, in.MessageID)
		if err != nil {
			e.observeInbound(kind, "error")
			span.RecordError(err)
			return Outcome{}, fmt.Errorf("conversation: dedupe: %w", err)
		}
		if !fresh {
			e.logger.Info("duplicate inbound message skipped", "message_id", in.MessageID, "phone", in.From)
			e.observeInbound(kind, "duplicate")
			span.SetAttributes(attribute.Bool("clinic.duplicate", true))
			return Outcome{Duplicate: true}, nil
		}
		marked = true
	}

	out, err := e.handleLocked(ctx, in)
	if err != nil {
		if marked && !errors.Is(err, ErrStaleState) {
			// Let the provider's redelivery run the message again.
			if ferr := e.deduper.Forget(context.WithoutCancel(ctx), DedupeProvider, in.MessageID); ferr != nil {
				e.logger.Error("failed to clear dedupe mark", "error", ferr, "message_id", in.MessageID)
			}
		}
		e.observeInbound(kind, "error")
		span.RecordError(err)
		return out, err
	}
	if out.Superseded {
		e.observeInbound(kind, "superseded")
		span.SetAttributes(attribute.Bool("clinic.superseded", true))
		return out, nil
	}
	e.observeInbound(kind, "handled")
	if out.From != out.To {
		e.observeTransition(out.From, out.To)
	}
	span.SetAttributes(
		attribute.String("clinic.state_from", string(out.From)),
		attribute.String("clinic.state_to", string(out.To)),
	)
	return out, nil
}

func (e *Engine) handleLocked(ctx context.Context, in Inbound) (Outcome, error) {
	if e.locker != nil {
		unlock, err := e.locker.Acquire(ctx, in.From)
		if err != nil {
			return Outcome{}, fmt.Errorf("conversation: lock %s: %w", in.From, err)
		}
		defer unlock()
	}

	patient, created, err := e.resolvePatient(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	recorded, err := e.recordedTurn(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	if recorded != nil && recorded.StateFrom != "" && recorded.StateFrom != patient.State {
		// Replies decided for an earlier state can no longer be answered.
		e.logger.Warn("recorded turn superseded, unsent replies dropped",
			"turn_id", recorded.ID,
			"message_id", in.MessageID,
			"phone", patient.Phone,
			"turn_state", recorded.StateFrom,
			"patient_state", patient.State,
		)
		return Outcome{
			Superseded: true,
			Patient:    patient,
			From:       patient.State,
			To:         patient.State,
			Turn:       recorded,
		}, nil
	}

	cfg, err := e.settings.GetOrInit(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("conversation: load settings: %w", err)
	}

	next := patient.Clone()
	if next.Name == "" && strings.TrimSpace(in.Name) != "" {
		next.Name = strings.TrimSpace(in.Name)
	}
	var p plan
	// Recorded match turns are resent as stored, without scoring again.
	if recorded == nil || recorded.Kind != turns.KindMatch {
		p, err = e.decide(ctx, patient, next, created, in, cfg)
		if err != nil {
			return Outcome{}, err
		}
	}

	turn := recorded
	if turn != nil {
		e.logger.Info("resuming recorded turn", "turn_id", turn.ID, "message_id", in.MessageID, "phone", next.Phone)
		if turn.StateTo != "" {
			next.State = turn.StateTo
		}
	} else {
		turn, err = e.recordTurn(ctx, in, patient, next, p)
		if err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{
		Created: created,
		Resumed: recorded != nil,
		Patient: next,
		From:    patient.State,
		To:      next.State,
		Turn:    turn,
		Match:   p.match,
	}
	return out, e.commit(ctx, in, next, turn)
}

func (e *Engine) resolvePatient(ctx context.Context, in Inbound) (*patients.Patient, bool, error) {
	p, err := e.patients.FindByPhone(ctx, in.From)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, patients.ErrPatientNotFound) {
		return nil, false, fmt.Errorf("conversation: find patient: %w", err)
	}
	p, created, err := e.patients.Create(ctx, in.From, strings.TrimSpace(in.Name))
	if err != nil {
		return nil, false, fmt.Errorf("conversation: create patient: %w", err)
	}
	if created {
		e.logger.Info("patient created", "patient_id", p.ID, "phone", p.Phone)
	}
	return p, created, nil
}

// commit sends each unsent response of turn in order, marks it sent and
// finally saves the patient with a version check.
func (e *Engine) commit(ctx context.Context, in Inbound, next *patients.Patient, turn *turns.Turn) error {
	for i := range turn.Responses {
		resp := &turn.Responses[i]
		if resp.Sent() {
			continue
		}
		reply := Reply{Text: resp.Content, Buttons: resp.Buttons}
		providerID, err := e.dispatcher.Send(ctx, next.Phone, reply)
		if err != nil {
			e.logger.Error("reply dispatch failed",
				"error", err,
				"phone", next.Phone,
				"message_id", in.MessageID,
				"position", resp.Position,
			)
			return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
		}
		sentAt := e.now()
		resp.SentAt = &sentAt
		resp.ProviderMessageID = providerID
		if err := e.turns.MarkSent(ctx, resp.ID, providerID, sentAt); err != nil {
			// The message is out; failing here would only trigger a resend.
			e.logger.Error("failed to mark response sent", "error", err, "response_id", resp.ID, "phone", next.Phone)
		}
	}

	now := e.now()
	next.LastInteractedAt = &now
	if err := e.patients.Update(ctx, next); err != nil {
		if errors.Is(err, patients.ErrStaleState) {
			e.logger.Warn("patient advanced concurrently", "patient_id", next.ID, "phone", next.Phone, "message_id", in.MessageID)
			return fmt.Errorf("conversation: commit patient %s: %w", next.ID, err)
		}
		return fmt.Errorf("conversation: update patient: %w", err)
	}
	return nil
}

// recordedTurn returns the turn already stored for the message id, if any.
func (e *Engine) recordedTurn(ctx context.Context, in Inbound) (*turns.Turn, error) {
	if in.MessageID == "" {
		return nil, nil
	}
	existing, err := e.turns.FindByMessageID(ctx, in.MessageID)
	if errors.Is(err, turns.ErrTurnNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find turn: %w", err)
	}
	return existing, nil
}

// recordTurn persists the plan with its responses pending.
func (e *Engine) recordTurn(ctx context.Context, in Inbound, current, next *patients.Patient, p plan) (*turns.Turn, error) {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	turn := &turns.Turn{
		PatientID:  next.ID,
		MessageID:  in.MessageID,
		Content:    contentOf(in.Kind),
		Language:   next.Language,
		Matched:    p.matched,
		Similarity: p.similarity,
		ScriptID:   p.scriptID,
		Kind:       p.kind,
		StateFrom:  current.State,
		StateTo:    next.State,
		Timestamp:  ts,
		Responses:  make([]turns.Response, 0, len(p.replies)),
	}
	for _, r := range p.replies {
		turn.Responses = append(turn.Responses, turns.Response{Content: r.Text, Buttons: r.Buttons, Source: turns.SourceAuto})
	}
	if err := e.turns.Create(ctx, turn); err != nil {
		return nil, fmt.Errorf("conversation: save turn: %w", err)
	}
	return turn, nil
}

func (e *Engine) observeInbound(kind, result string) {
	if e.observer != nil {
		e.observer.ObserveInbound(kind, result)
	}
}

func (e *Engine) observeTransition(from, to patients.State) {
	if e.observer != nil {
		e.observer.ObserveTransition(string(from), string(to))
	}
}

func contentOf(k Kind) string {
	switch v := k.(type) {
	case TextMessage:
		return v.Body
	case ButtonReply:
		if strings.TrimSpace(v.Title) != "" {
			return v.Title
		}
		return v.ID
	case Unsupported:
		return "[" + v.Type + "]"
	default:
		return ""
	}
}
