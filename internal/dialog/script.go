package dialog

import (
	"fmt"
	"strings"
)

// Phrase tables for the two supported prompt languages. Scripts are built by
// composing these fragments so the audio cache can pre-resolve them.

var hindiPhrases = map[string]string{
	"greeting_prefix":     "नमस्ते",
	"service_intro":       "यह आपकी डिलीवरी सेवा से कॉल है",
	"new_order":           "आपके लिए एक नया ऑर्डर आया है",
	"order_number":        "ऑर्डर नंबर",
	"total_amount":        "कुल राशि",
	"rupees":              "रुपये",
	"accept_prompt":       "ऑर्डर स्वीकार करने के लिए 1 दबाएं",
	"reject_prompt":       "रद्द करने के लिए 0 दबाएं",
	"thank_you":           "धन्यवाद",
	"order_accepted":      "ऑर्डर स्वीकार हो गया",
	"prep_time_prompt":    "खाना तैयार करने में कितने मिनट लगेंगे",
	"fifteen_minutes":     "15 मिनट के लिए 1 दबाएं",
	"thirty_minutes":      "30 मिनट के लिए 2 दबाएं",
	"fortyfive_minutes":   "45 मिनट के लिए 3 दबाएं",
	"custom_time":         "या अपना समय डालें और हैश दबाएं",
	"rider_arrive":        "राइडर",
	"minutes_in":          "मिनट में पहुंचेगा",
	"good_day":            "शुभ दिन",
	"rejection_ack":       "हम किसी और को यह ऑर्डर देंगे",
	"pieces":              "पीस",
	"no_input":            "कोई इनपुट नहीं मिला",
	"new_delivery":        "एक नई डिलीवरी आपके लिए है",
	"delivery_accept":     "स्वीकार करने के लिए 1 दबाएं",
	"delivery_accepted":   "डिलीवरी स्वीकार कर ली गई है",
	"apology":             "माफ़ कीजिए, हमें आपका इनपुट नहीं मिला। हम बाद में दोबारा कॉल करेंगे",
}

var englishPhrases = map[string]string{
	"greeting_prefix":     "Hello",
	"service_intro":       "this is a call from your delivery service",
	"new_order":           "You have a new order",
	"order_number":        "Order number",
	"total_amount":        "Total amount",
	"rupees":              "rupees",
	"accept_prompt":       "Press 1 to accept the order",
	"reject_prompt":       "Press 0 to reject",
	"thank_you":           "Thank you",
	"order_accepted":      "Order accepted",
	"prep_time_prompt":    "How many minutes to prepare",
	"fifteen_minutes":     "Press 1 for 15 minutes",
	"thirty_minutes":      "Press 2 for 30 minutes",
	"fortyfive_minutes":   "Press 3 for 45 minutes",
	"custom_time":         "Or enter your time and press hash",
	"rider_arrive":        "Rider will arrive in",
	"minutes_in":          "minutes",
	"good_day":            "Have a good day",
	"rejection_ack":       "We will assign this order to another vendor",
	"pieces":              "pieces",
	"no_input":            "No input received",
	"new_delivery":        "A new delivery is waiting for you",
	"delivery_accept":     "Press 1 to accept",
	"delivery_accepted":   "The delivery has been accepted",
	"apology":             "Sorry, we could not get your input. We will call again later",
}

func phrases(lang string) map[string]string {
	if lang == "en" {
		return englishPhrases
	}
	return hindiPhrases
}

// PhraseLibrary returns every fragment for a language, for cache preloading.
func PhraseLibrary(lang string) []string {
	p := phrases(lang)
	out := make([]string, 0, len(p))
	for _, v := range p {
		out = append(out, v)
	}
	return out
}

func sentenceSep(lang string) string {
	if lang == "en" {
		return ". "
	}
	return "। "
}

// GreetingScript reads out the order (or delivery) and the keypad options.
func GreetingScript(bc BusinessContext) string {
	lang := bc.Lang()
	p := phrases(lang)
	sep := sentenceSep(lang)

	if bc.CallKind == KindRiderAssignment {
		parts := []string{
			fmt.Sprintf("%s %s, %s", p["greeting_prefix"], strings.TrimSpace(bc.RiderName), p["service_intro"]),
			p["new_delivery"],
			fmt.Sprintf("%s %d", p["order_number"], bc.OrderID),
			p["delivery_accept"],
		}
		return strings.Join(parts, sep) + strings.TrimSpace(sep)
	}

	var items []string
	for _, it := range bc.OrderItems {
		if it.Quantity > 1 {
			items = append(items, fmt.Sprintf("%s (%d %s)", it.Name, it.Quantity, p["pieces"]))
		} else {
			items = append(items, it.Name)
		}
	}

	parts := []string{
		fmt.Sprintf("%s %s, %s", p["greeting_prefix"], strings.TrimSpace(bc.VendorName), p["service_intro"]),
		p["new_order"],
	}
	if len(items) > 0 {
		parts = append(parts, fmt.Sprintf("%s %d: %s", p["order_number"], bc.OrderID, strings.Join(items, ", ")))
	} else {
		parts = append(parts, fmt.Sprintf("%s %d", p["order_number"], bc.OrderID))
	}
	parts = append(parts,
		fmt.Sprintf("%s: %d %s", p["total_amount"], int(bc.OrderAmount), p["rupees"]),
		p["accept_prompt"],
		p["reject_prompt"],
	)
	return strings.Join(parts, sep) + strings.TrimSpace(sep)
}

// DurationMenuScript is the prep-time menu after the vendor accepts.
func DurationMenuScript(bc BusinessContext) string {
	lang := bc.Lang()
	p := phrases(lang)
	sep := sentenceSep(lang)
	return fmt.Sprintf("%s! %s%s%s? %s, %s, %s, %s%s",
		p["thank_you"], p["order_accepted"], sep,
		p["prep_time_prompt"],
		p["fifteen_minutes"], p["thirty_minutes"], p["fortyfive_minutes"], p["custom_time"],
		strings.TrimSpace(sep),
	)
}

// AcceptedGoodbyeScript closes an accepted order with the chosen prep time.
func AcceptedGoodbyeScript(bc BusinessContext, prepMinutes int) string {
	lang := bc.Lang()
	p := phrases(lang)
	sep := sentenceSep(lang)
	return fmt.Sprintf("%s! %s %d %s%s%s!",
		p["thank_you"], p["rider_arrive"], prepMinutes, p["minutes_in"], sep, p["good_day"])
}

// RejectedGoodbyeScript closes a rejected order.
func RejectedGoodbyeScript(bc BusinessContext) string {
	lang := bc.Lang()
	p := phrases(lang)
	sep := sentenceSep(lang)
	return fmt.Sprintf("%s, %s%s%s!", p["thank_you"], p["rejection_ack"], sep, p["good_day"])
}

// RiderGoodbyeScript closes an accepted rider assignment.
func RiderGoodbyeScript(bc BusinessContext) string {
	lang := bc.Lang()
	p := phrases(lang)
	sep := sentenceSep(lang)
	return fmt.Sprintf("%s! %s%s%s!", p["thank_you"], p["delivery_accepted"], sep, p["good_day"])
}

// ClosedScript is the neutral goodbye for callbacks arriving after the call
// already closed.
func ClosedScript(bc BusinessContext) string {
	lang := bc.Lang()
	p := phrases(lang)
	return fmt.Sprintf("%s! %s!", p["thank_you"], p["good_day"])
}

// ApologyScript closes a call after the retry budget is exhausted.
func ApologyScript(bc BusinessContext) string {
	p := phrases(bc.Lang())
	return p["apology"] + "."
}

// RepeatPrefix prepends the no-input notice to a repeated prompt.
func RepeatPrefix(bc BusinessContext, prompt string) string {
	p := phrases(bc.Lang())
	return p["no_input"] + sentenceSep(bc.Lang()) + prompt
}
