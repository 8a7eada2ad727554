package nlp

import "strings"

// Classification labels understood by the workflow router.
const (
	LabelUrgent         = "urgent"
	LabelPaymentRequest = "payment_request"
	LabelGeneral        = "general"
)

type Classification struct {
	Label      string
	Confidence float64
}

// Classify assigns a coarse label from keyword matches.  The confidences
// are fixed per label; this is a routing hint, not a model.
func Classify(text string) Classification {
	t := strings.ToLower(text)

	switch {
	case strings.Contains(t, "urgent"):
		return Classification{Label: LabelUrgent, Confidence: 0.92}
	case strings.Contains(t, "payment"):
		return Classification{Label: LabelPaymentRequest, Confidence: 0.87}
	default:
		return Classification{Label: LabelGeneral, Confidence: 0.55}
	}
}
