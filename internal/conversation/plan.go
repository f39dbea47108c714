package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/internal/settings"
	"github.com/wolfman30/clinic-autoresponder/internal/turns"
)

// plan is the decision for one inbound message, applied by commit.
type plan struct {
	kind       turns.Kind
	replies    []Reply
	matched    bool
	similarity *float64
	scriptID   string
	match      *scripts.MatchResult
}

// decide picks the replies for in and mutates next into the target patient
// state. current is left untouched.
func (e *Engine) decide(ctx context.Context, current, next *patients.Patient, created bool, in Inbound, cfg settings.Settings) (plan, error) {
	if created {
		return welcomePlan(cfg), nil
	}

	switch k := in.Kind.(type) {
	case ButtonReply:
		if lang, ok := catalog.LanguageForButton(k.ID); ok {
			return languagePlan(current, next, lang), nil
		}
		switch k.ID {
		case catalog.ButtonAppointmentYes, catalog.ButtonAppointmentNo:
			return appointmentPlan(current, next, k.ID == catalog.ButtonAppointmentYes), nil
		}
		// Unknown buttons are read as the text of their label.
		return e.textPlan(ctx, current, next, buttonText(k), cfg)
	case TextMessage:
		return e.textPlan(ctx, current, next, k.Body, cfg)
	default:
		if current.State == patients.StateWelcome || !current.HasLanguage() {
			return welcomePlan(cfg), nil
		}
		return plan{
			kind:    turns.KindMatch,
			replies: []Reply{{Text: catalog.Fallback(languageOf(current))}},
		}, nil
	}
}

func welcomePlan(cfg settings.Settings) plan {
	return plan{
		kind: turns.KindWelcome,
		replies: []Reply{{
			Text:    catalog.WelcomePrompt(cfg.WelcomeMessageFr, cfg.WelcomeMessageAr),
			Buttons: catalog.LanguageButtons(),
		}},
	}
}

// languagePlan handles a language button. Past WELCOME the click is a
// duplicate: the language is updated, the state holds and nothing is sent.
func languagePlan(current, next *patients.Patient, lang patients.Language) plan {
	next.Language = lang
	if current.State != patients.StateWelcome {
		return plan{kind: turns.KindLanguage}
	}
	next.State = patients.StateServiceSelection
	return plan{
		kind:    turns.KindLanguage,
		replies: []Reply{{Text: catalog.ServiceMenu(lang)}},
	}
}

// appointmentPlan answers the yes/no prompt. Stale clicks are recorded and ignored.
func appointmentPlan(current, next *patients.Patient, accepted bool) plan {
	if current.State != patients.StateAppointmentConfirmation {
		return plan{kind: turns.KindAppointment}
	}
	lang := languageOf(current)
	text := catalog.AppointmentDeclined(lang)
	if accepted {
		text = catalog.AppointmentAccepted(lang)
	}
	next.State = patients.StateGeneralConversation
	return plan{
		kind:    turns.KindAppointment,
		replies: []Reply{{Text: text}},
	}
}

func (e *Engine) textPlan(ctx context.Context, current, next *patients.Patient, body string, cfg settings.Settings) (plan, error) {
	switch current.State {
	case patients.StateWelcome:
		// No scoring until a language is picked.
		return welcomePlan(cfg), nil
	case patients.StateServiceSelection:
		if svc, ok := catalog.Lookup(body); ok {
			lang := languageOf(current)
			next.LastServiceID = svc.ID
			next.State = patients.StateAppointmentConfirmation
			return plan{
				kind: turns.KindService,
				replies: []Reply{
					{Text: svc.Response(lang)},
					{Text: catalog.AppointmentQuestion(lang), Buttons: catalog.AppointmentButtons(lang)},
				},
			}, nil
		}
	}
	next.State = patients.StateGeneralConversation
	return e.matchPlan(ctx, current, body, cfg)
}

func (e *Engine) matchPlan(ctx context.Context, current *patients.Patient, body string, cfg settings.Settings) (plan, error) {
	list, err := e.scripts.ListActive(ctx)
	if err != nil {
		return plan{}, fmt.Errorf("conversation: list scripts: %w", err)
	}
	result, err := e.matcher.Match(ctx, scripts.MatchInput{
		Message:          body,
		Language:         languageOf(current),
		Scripts:          list,
		Threshold:        cfg.MatchThreshold,
		AutoReplyEnabled: cfg.AutoReplyEnabled,
	})
	if err != nil {
		return plan{}, fmt.Errorf("conversation: match: %w", err)
	}
	p := plan{
		kind:    turns.KindMatch,
		matched: result.Matched,
		replies: []Reply{{Text: result.Reply}},
		match:   &result,
	}
	if result.Script != nil {
		score := result.Score
		p.similarity = &score
		if result.Matched {
			p.scriptID = result.Script.ID
		}
	}
	return p, nil
}

// languageOf falls back to French for patients that never picked a language.
func languageOf(p *patients.Patient) patients.Language {
	if p.HasLanguage() {
		return p.Language
	}
	return patients.LanguageFrench
}

func buttonText(b ButtonReply) string {
	if strings.TrimSpace(b.Title) != "" {
		return b.Title
	}
	return b.ID
}
