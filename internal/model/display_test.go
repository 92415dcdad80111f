package model

import "testing"

func TestDisplayState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		offer Offer
		want  string
	}{
		{"accepted without envio defaults", Offer{State: OfferStateAceptada}, EnvioEnPreparacion},
		{"accepted with envio", Offer{State: OfferStateAceptada, EnvioState: EnvioEnviando}, EnvioEnviando},
		{"accepted delivered", Offer{State: OfferStateAceptada, EnvioState: EnvioEntregado}, EnvioEntregado},
		{"rejected verbatim", Offer{State: OfferStateRechazada}, OfferStateRechazada},
		{"pending verbatim", Offer{State: OfferStatePendiente}, OfferStatePendiente},
	}
	for _, tc := range cases {
		if got := DisplayState(tc.offer); got != tc.want {
			t.Errorf("%s: DisplayState = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBadgeTone(t *testing.T) {
	t.Parallel()

	want := map[string]string{
		EnvioEnPreparacion:  ToneWarning,
		EnvioListoParaEnvio: ToneInfo,
		EnvioEnviando:       ToneAccent,
		EnvioEntregado:      ToneSuccess,
		OfferStatePendiente: ToneNeutral,
		OfferStateRechazada: ToneNeutral,
	}
	for state, tone := range want {
		if got := BadgeTone(state); got != tone {
			t.Errorf("BadgeTone(%q) = %q, want %q", state, got, tone)
		}
	}
}

func TestUserDisplayName(t *testing.T) {
	t.Parallel()

	if got := (User{Nombre: "Ana", Apellido: "Gómez"}).DisplayName(); got != "Ana Gómez" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := (User{Nombre: "Ana"}).DisplayName(); got != "Ana" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := (User{Apellido: "Gómez"}).DisplayName(); got != "Gómez" {
		t.Fatalf("DisplayName = %q", got)
	}
}
