package catalog

import (
	"strings"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

// Button ids carried by interactive replies.
const (
	ButtonFrench         = "lang_fr"
	ButtonArabic         = "lang_ar"
	ButtonAppointmentYes = "appointment_yes"
	ButtonAppointmentNo  = "appointment_no"
)

// Button is one reply option of an interactive message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type localized struct {
	ar string
	fr string
}

func (l localized) in(lang patients.Language) string {
	if lang == patients.LanguageArabic {
		return l.ar
	}
	return l.fr
}

var (
	serviceMenu = localized{
		fr: "Quel acte souhaitez-vous faire ? Choisissez une option ci-dessous 👇\n1️⃣ Blanchiment dentaire\n2️⃣ Implant dentaire\n3️⃣ Composite / Carie\n4️⃣ Traitement canalaire\n5️⃣ Extraction de dent\n6️⃣ Couronne CCM/Zircon\n7️⃣ Prothèse amovible",
		ar: "ما نوع الخدمة التي تحتاجها؟ اختر واحدة 👇\n1️⃣ تبييض الأسنان\n2️⃣ زراعة الأسنان\n3️⃣ حشو الأسنان (كومبوزيت)\n4️⃣ علاج العصب\n5️⃣ قلع الأسنان\n6️⃣ تركيب الأسنان الثابتة\n7️⃣ تركيبات متحركة",
	}
	appointmentQuestion = localized{
		fr: "📆 Souhaitez-vous réserver un rendez-vous ?",
		ar: "📆 هل ترغب في حجز موعد؟",
	}
	appointmentYes = localized{
		fr: "🕒 Parfait !\nNous allons vous appeler le plus tôt possible 📞\nVous pouvez aussi venir directement :\n🗓 Du lundi au vendredi de 9h à 19h\n🗓 Le samedi de 9h à 14h\n📍 Adresse : Ait Amira, 1er étage au-dessus de Qissariat Assafi\n📞 Téléphone : 0783 74 52 47",
		ar: "🕒 ممتاز!\nسنتصل بك في أقرب وقت ممكن 📞\nيمكنك أيضًا الحضور مباشرة:\n🗓 من الإثنين إلى الجمعة من 9 صباحًا إلى 7 مساءً\n🗓 السبت من 9 صباحًا إلى 2 ظهرًا\n" + addressAr,
	}
	appointmentNo = localized{
		fr: "Pas de souci 😊\nSi vous avez des questions, n'hésitez pas à nous écrire ici à tout moment.\n📍 Centre Dentaire Ait Amira\n📞 0783 74 52 47\n🕒 Lundi–Vendredi: 9h–19h, Samedi: 9h–14h",
		ar: "لا بأس 😊\nإذا كانت لديك أسئلة، لا تتردد في مراسلتنا هنا في أي وقت.\n📍 مركز أيت عميرة لطب الأسنان\n📞 0783 74 52 47\n🕒 الإثنين-الجمعة: 9 صباحًا-7 مساءً، السبت: 9 صباحًا-2 ظهرًا",
	}
	fallback = localized{
		fr: "Désolé, je n'ai pas compris votre question. Pouvez-vous la reformuler?",
		ar: "عذرًا، لم أفهم سؤالك. هل يمكنك إعادة صياغته؟",
	}
	yesLabel = localized{fr: "Oui", ar: "نعم"}
	noLabel  = localized{fr: "Non", ar: "لا"}
)

// ServiceMenu is the numbered list sent after a language is chosen.
func ServiceMenu(lang patients.Language) string { return serviceMenu.in(lang) }

// AppointmentQuestion asks whether the patient wants to book.
func AppointmentQuestion(lang patients.Language) string { return appointmentQuestion.in(lang) }

// AppointmentAccepted is sent after appointment_yes.
func AppointmentAccepted(lang patients.Language) string { return appointmentYes.in(lang) }

// AppointmentDeclined is sent after appointment_no.
func AppointmentDeclined(lang patients.Language) string { return appointmentNo.in(lang) }

// Fallback is the reply when no script matched.
func Fallback(lang patients.Language) string { return fallback.in(lang) }

// IsFallback reports whether text is one of the fallback replies.
func IsFallback(text string) bool {
	return text == fallback.ar || text == fallback.fr
}

// LanguageButtons are offered with the welcome prompt.
func LanguageButtons() []Button {
	return []Button{
		{ID: ButtonFrench, Title: "Français"},
		{ID: ButtonArabic, Title: "العربية"},
	}
}

// AppointmentButtons are offered with the appointment question.
func AppointmentButtons(lang patients.Language) []Button {
	return []Button{
		{ID: ButtonAppointmentYes, Title: yesLabel.in(lang)},
		{ID: ButtonAppointmentNo, Title: noLabel.in(lang)},
	}
}

// WelcomePrompt combines both configured welcome texts into one body.
func WelcomePrompt(welcomeFr, welcomeAr string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(welcomeFr); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(welcomeAr); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// LanguageForButton maps a language button id to its language.
func LanguageForButton(id string) (patients.Language, bool) {
	switch id {
	case ButtonFrench:
		return patients.LanguageFrench, true
	case ButtonArabic:
		return patients.LanguageArabic, true
	default:
		return "", false
	}
}
