package turns

import (
	"encoding/json"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func patientsLanguage(s string) patients.Language {
	if l, ok := patients.ParseLanguage(s); ok {
		return l
	}
	return ""
}

func patientsState(s *string) patients.State {
	if s == nil {
		return ""
	}
	return patients.State(*s)
}

// encodeButtons returns nil for plain text responses so the column stays NULL.
func encodeButtons(buttons []catalog.Button) ([]byte, error) {
	if len(buttons) == 0 {
		return nil, nil
	}
	return json.Marshal(buttons)
}

func decodeButtons(raw []byte) ([]catalog.Button, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var buttons []catalog.Button
	if err := json.Unmarshal(raw, &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}
