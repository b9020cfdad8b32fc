package triage

// Canned replies for turns that must not reach the directory. Kept as
// constants so tests and the engine agree byte for byte.
const (
	replyGreeting    = "Hi — tell me what's going on and I'll point you to the right doctor."
	replyHowAreYou   = "I'm doing well and here to help with your health."
	replyAbuse       = "Let's keep it respectful. I'm here to help with your health or the Pandoc platform."
	replyScope       = "I can help with your health or the Pandoc platform. Any health concern I can help with?"
	replyBooking     = "Sorry, I can't do that; you have to do it yourself. You can open a clinician's profile and book from there."
	replyHelp        = "In Pandoc: Appointments → select your visit → reschedule or cancel, or upload reports from the Records tab."
	replyUnknown     = "I didn't catch that—could you rephrase, or say \"show doctors\"?"
	replyNoContext   = "Tell me the symptom or specialty first, then I can apply filters like gender, fees, or experience."
	replyMorePage    = "Here are more options."
	replyNoMore      = "No more results."
	replyCompareWhat = "Tell me what to compare: cheapest, most experienced, or most expensive."

	redFlagCaution = "Some of what you describe can be urgent. If symptoms are severe or getting worse, please seek emergency care now. "
	showOfferTail  = " Want me to show suitable doctors here?"
)

// GateOutcome is the result of the policy gate. Handled means the turn ends
// here with Reply and an empty clinician list.
type GateOutcome struct {
	Reply   string
	Intent  Intent
	Handled bool
}

// ApplyPolicy resolves the conversational intents that never query the
// directory. Safety intents win even when the decision carries entities.
func ApplyPolicy(d Decision) GateOutcome {
	if d.Abusive || d.Intent == IntentAbusive {
		return GateOutcome{Reply: replyAbuse, Intent: IntentAbusive, Handled: true}
	}

	switch d.Intent {
	case IntentOutOfScope:
		return GateOutcome{Reply: replyScope, Intent: IntentOutOfScope, Handled: true}
	case IntentBooking:
		return GateOutcome{Reply: replyBooking, Intent: IntentBooking, Handled: true}
	case IntentPlatformHelp:
		return GateOutcome{Reply: replyHelp, Intent: IntentPlatformHelp, Handled: true}
	case IntentGreeting:
		return GateOutcome{Reply: replyGreeting, Intent: IntentGreeting, Handled: true}
	case IntentHowAreYou:
		return GateOutcome{Reply: replyHowAreYou, Intent: IntentHowAreYou, Handled: true}
	}

	if d.WantsBooking {
		return GateOutcome{Reply: replyBooking, Intent: IntentBooking, Handled: true}
	}
	return GateOutcome{Intent: d.Intent}
}
