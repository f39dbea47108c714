package scripts

import (
	"context"
	"fmt"
)

// DemoScripts is the starter library loaded by cmd/seed.
func DemoScripts() []Input {
	return []Input{
		{
			QuestionAr: "ما هي ساعات عمل العيادة؟",
			QuestionFr: "Quelles sont les heures d'ouverture de la clinique?",
			ResponseAr: "ساعات عملنا هي من الاثنين إلى الجمعة من الساعة 9 صباحًا حتى 6 مساءً، والسبت من الساعة 10 صباحًا حتى 4 مساءً، والأحد مغلق.",
			ResponseFr: "Nos heures d'ouverture sont du lundi au vendredi de 9h à 18h, le samedi de 10h à 16h, et fermé le dimanche.",
			Keywords:   []string{"heures", "ouverture", "horaires", "ساعات", "العمل", "مفتوح"},
			Category:   "General",
		},
		{
			QuestionAr: "كم تكلفة تنظيف الأسنان؟",
			QuestionFr: "Quel est le coût d'un nettoyage dentaire?",
			ResponseAr: "تكلفة تنظيف الأسنان الأساسي تبدأ من 80 دولارًا. يمكن أن تختلف التكلفة بناءً على متطلباتك الفردية. يرجى الاتصال بنا أو زيارتنا لمزيد من المعلومات.",
			ResponseFr: "Le coût d'un nettoyage dentaire de base commence à 80€. Le coût peut varier en fonction de vos besoins individuels. Veuillez nous appeler ou nous visiter pour plus d'informations.",
			Keywords:   []string{"coût", "prix", "nettoyage", "تكلفة", "سعر", "تنظيف"},
			Category:   "Pricing",
		},
		{
			QuestionAr: "هل تقبلون التأمين الصحي؟",
			QuestionFr: "Acceptez-vous l'assurance maladie?",
			ResponseAr: "نعم، نقبل معظم شركات التأمين الصحي الرئيسية. يرجى إحضار بطاقة التأمين الخاصة بك في زيارتك الأولى.",
			ResponseFr: "Oui, nous acceptons la plupart des assurances maladies principales. Veuillez apporter votre carte d'assurance lors de votre première visite.",
			Keywords:   []string{"assurance", "couverture", "تأمين", "تغطية"},
			Category:   "Insurance",
		},
		{
			QuestionAr: "كيف يمكنني حجز موعد؟",
			QuestionFr: "Comment puis-je prendre rendez-vous?",
			ResponseAr: "يمكنك حجز موعد عن طريق الاتصال بنا على الرقم 123-456-789 أو عبر موقعنا الإلكتروني.",
			ResponseFr: "Vous pouvez prendre rendez-vous en nous appelant au 123-456-789 ou via notre site web.",
			Keywords:   []string{"rendez-vous", "réserver", "موعد", "حجز"},
			Category:   "Appointments",
		},
	}
}

// SeedDemo creates the demo library when no script exists yet and returns
// the number of scripts created.
func (s *Service) SeedDemo(ctx context.Context) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("scripts: seed: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("script library already populated; skipping seed", "count", len(existing))
		return 0, nil
	}
	created := 0
	for _, in := range DemoScripts() {
		if _, err := s.Create(ctx, in); err != nil {
			return created, fmt.Errorf("scripts: seed %q: %w", in.Category, err)
		}
		created++
	}
	return created, nil
}
