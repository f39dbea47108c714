// Package catalog holds the clinic's fixed service list and the localized
// texts of the scripted conversation flow.
package catalog

import (
	"strings"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

// Service is one selectable treatment.
type Service struct {
	ID         string `json:"id"`
	NameAr     string `json:"name_ar"`
	NameFr     string `json:"name_fr"`
	ResponseAr string `json:"response_ar"`
	ResponseFr string `json:"response_fr"`
}

// Name returns the service name in lang.
func (s Service) Name(lang patients.Language) string {
	if lang == patients.LanguageArabic {
		return s.NameAr
	}
	return s.NameFr
}

// Response returns the service description in lang.
func (s Service) Response(lang patients.Language) string {
	if lang == patients.LanguageArabic {
		return s.ResponseAr
	}
	return s.ResponseFr
}

const (
	addressAr = "📍 العنوان: أيت عميرة، فوق قيسارية آسفي، الطابق الأول\n📞 الهاتف: 0783 74 52 47"
	addressFr = "📍 Adresse : Ait Amira, au-dessus de Qissariat Assafi, 1er étage\n📞 Téléphone : 0783 74 52 47"
)

var services = []Service{
	{
		ID:         "teeth_whitening",
		NameAr:     "تبييض الأسنان",
		NameFr:     "Blanchiment dentaire",
		ResponseAr: "✅ نعم، نقوم بـتبييض الأسنان في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons le blanchiment dentaire au cabinet.\n" + addressFr,
	},
	{
		ID:         "dental_implant",
		NameAr:     "زراعة الأسنان",
		NameFr:     "Implant dentaire",
		ResponseAr: "✅ نعم، نقوم بـزراعة الأسنان في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons les implants dentaires au cabinet.\n" + addressFr,
	},
	{
		ID:         "composite",
		NameAr:     "حشو الأسنان (كومبوزيت)",
		NameFr:     "Composite / Carie",
		ResponseAr: "✅ نعم، نقوم بـحشو الأسنان (كومبوزيت) في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons les composites et traitements des caries au cabinet.\n" + addressFr,
	},
	{
		ID:         "root_canal",
		NameAr:     "علاج العصب",
		NameFr:     "Traitement canalaire",
		ResponseAr: "✅ نعم، نقوم بـعلاج العصب في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons le traitement canalaire au cabinet.\n" + addressFr,
	},
	{
		ID:         "extraction",
		NameAr:     "قلع الأسنان",
		NameFr:     "Extraction de dent",
		ResponseAr: "✅ نعم، نقوم بـقلع الأسنان في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons les extractions dentaires au cabinet.\n" + addressFr,
	},
	{
		ID:         "crown",
		NameAr:     "تركيب الأسنان الثابتة",
		NameFr:     "Couronne CCM/Zircon",
		ResponseAr: "✅ نعم، نقوم بـتركيب الأسنان الثابتة في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons les couronnes CCM et Zircon au cabinet.\n" + addressFr,
	},
	{
		ID:         "denture",
		NameAr:     "تركيبات متحركة",
		NameFr:     "Prothèse amovible",
		ResponseAr: "✅ نعم، نقوم بـتركيبات متحركة في العيادة.\n" + addressAr,
		ResponseFr: "✅ Oui, nous faisons les prothèses amovibles au cabinet.\n" + addressFr,
	},
}

var keycaps = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣"}

// Services returns the catalog in menu order.
func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// ByID returns the service with the given id.
func ByID(id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Lookup resolves a patient's menu reply to a service. Keycap glyphs are
// checked first, then a bare menu digit, then a substring of either name.
func Lookup(text string) (Service, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return Service{}, false
	}
	for i, glyph := range keycaps {
		if strings.Contains(cleaned, glyph) {
			return services[i], true
		}
	}
	if len(cleaned) == 1 && cleaned[0] >= '1' && cleaned[0] <= '7' {
		return services[cleaned[0]-'1'], true
	}
	lower := strings.ToLower(cleaned)
	for _, s := range services {
		if strings.Contains(s.NameAr, cleaned) || strings.Contains(strings.ToLower(s.NameFr), lower) {
			return s, true
		}
	}
	return Service{}, false
}
