package model

// Badge tones used by every screen that renders an order status.
const (
	ToneWarning = "warning"
	ToneInfo    = "info"
	ToneAccent  = "accent"
	ToneSuccess = "success"
	ToneNeutral = "neutral"
)

// DisplayState maps an offer's stored state pair to the single human-facing
// status string. Accepted orders surface their shipping sub-state, defaulting
// to En preparación until the pharmacy sets one; everything else renders the
// offer state verbatim.
func DisplayState(o Offer) string {
	if o.State == OfferStateAceptada {
		if o.EnvioState == "" {
			return EnvioEnPreparacion
		}
		return o.EnvioState
	}
	return o.State
}

// BadgeTone returns the badge tone for a display state.
func BadgeTone(displayState string) string {
	switch displayState {
	case EnvioEnPreparacion:
		return ToneWarning
	case EnvioListoParaEnvio:
		return ToneInfo
	case EnvioEnviando:
		return ToneAccent
	case EnvioEntregado:
		return ToneSuccess
	default:
		return ToneNeutral
	}
}
