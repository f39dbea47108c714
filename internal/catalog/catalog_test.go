package catalog

import (
	"strings"
	"testing"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

func TestServicesOrder(t *testing.T) {
	want := []string{"teeth_whitening", "dental_implant", "composite", "root_canal", "extraction", "crown", "denture"}
	got := Services()
	if len(got) != len(want) {
		t.Fatalf("expected %d services, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestLookup(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{"keycap glyph", "3️⃣", "composite", true},
		{"keycap inside text", "je veux 6️⃣ svp", "crown", true},
		{"plain digit", " 2 ", "dental_implant", true},
		{"digit out of range", "8", "", false},
		{"two digits", "12", "", false},
		{"french name substring", "IMPLANT", "dental_implant", true},
		{"arabic name substring", "علاج العصب", "root_canal", true},
		{"empty", "   ", "", false},
		{"unrelated", "horaires d'ouverture", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, ok := Lookup(tc.input)
			if ok != tc.found {
				t.Fatalf("Lookup(%q) found=%v, want %v", tc.input, ok, tc.found)
			}
			if ok && svc.ID != tc.want {
				t.Fatalf("Lookup(%q) = %s, want %s", tc.input, svc.ID, tc.want)
			}
		})
	}
}

func TestLocalizedTexts(t *testing.T) {
	if !strings.Contains(ServiceMenu(patients.LanguageFrench), "Blanchiment dentaire") {
		t.Fatalf("expected french menu")
	}
	if !strings.Contains(ServiceMenu(patients.LanguageArabic), "تبييض الأسنان") {
		t.Fatalf("expected arabic menu")
	}
	if !IsFallback(Fallback(patients.LanguageArabic)) || !IsFallback(Fallback(patients.LanguageFrench)) {
		t.Fatalf("expected fallback texts to be recognized")
	}
	if IsFallback(AppointmentAccepted(patients.LanguageFrench)) {
		t.Fatalf("appointment text is not a fallback")
	}
	buttons := AppointmentButtons(patients.LanguageArabic)
	if buttons[0].ID != ButtonAppointmentYes || buttons[0].Title != "نعم" {
		t.Fatalf("unexpected arabic buttons %+v", buttons)
	}
}

func TestWelcomePrompt(t *testing.T) {
	got := WelcomePrompt("Bienvenue", " ")
	if got != "Bienvenue" {
		t.Fatalf("expected blank text dropped, got %q", got)
	}
	got = WelcomePrompt("Bienvenue", "مرحبا")
	if got != "Bienvenue\n\nمرحبا" {
		t.Fatalf("unexpected prompt %q", got)
	}
}

func TestLanguageForButton(t *testing.T) {
	if l, ok := LanguageForButton(ButtonArabic); !ok || l != patients.LanguageArabic {
		t.Fatalf("expected arabic")
	}
	if _, ok := LanguageForButton(ButtonAppointmentYes); ok {
		t.Fatalf("appointment button is not a language")
	}
}
