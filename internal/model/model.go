// Package model defines the documents exchanged with the store and the
// client-only entities derived from them.
package model

import "time"

// User roles as stored in the users collection.
const (
	RoleUsuario  = "usuario"
	RoleFarmacia = "farmacia"
)

// Request lifecycle states.
const (
	RequestStateOpen = "Abierta"
)

// Offer lifecycle states. Pendiente is the only non-terminal state; the
// transition out of it is owned by the requesting user (or by the acceptance
// protocol purging siblings).
const (
	OfferStatePendiente = "Pendiente"
	OfferStateAceptada  = "Aceptada"
	OfferStateRechazada = "Rechazada"
)

// Shipping sub-states of an accepted offer, in order.
const (
	EnvioEnPreparacion  = "En preparación"
	EnvioListoParaEnvio = "Listo para envío"
	EnvioEnviando       = "Enviando"
	EnvioEntregado      = "Entregado"
)

// Notification types.
const (
	NotifNuevaOferta     = "nueva_oferta"
	NotifPedidoEntregado = "pedido_entregado"
	NotifRechazo         = "rechazo"
	NotifInfo            = "info"
)

// User is a profile document in users/{uid}. Identity itself (sign-in, uid
// issuance) belongs to the external auth collaborator.
type User struct {
	ID        string    `json:"id" firestore:"-"`
	Role      string    `json:"role" firestore:"role"`
	Nombre    string    `json:"nombre" firestore:"nombre"`
	Apellido  string    `json:"apellido" firestore:"apellido"`
	DNI       string    `json:"dni" firestore:"dni"`
	Telefono  string    `json:"telefono" firestore:"telefono"`
	Direccion string    `json:"direccion" firestore:"direccion"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// DisplayName returns the profile's human-facing name.
func (u User) DisplayName() string {
	switch {
	case u.Nombre != "" && u.Apellido != "":
		return u.Nombre + " " + u.Apellido
	case u.Nombre != "":
		return u.Nombre
	default:
		return u.Apellido
	}
}

// Request is a prescription submission in requests/{requestId}. The address is
// a snapshot of the user's profile at submission time, not a live reference.
type Request struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	Images    []string  `json:"images" firestore:"images"`
	Direccion string    `json:"direccion" firestore:"direccion"`
	Notes     string    `json:"notes" firestore:"notes"`
	State     string    `json:"state" firestore:"state"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" firestore:"expiresAt"`
}

// InboxPointer is a per-pharmacy denormalized reference to a Request, stored in
// inbox/{pharmacyId}/requests/{requestId}. A pointer whose target Request no
// longer exists is stale and must be ignored by readers.
type InboxPointer struct {
	RequestID string    `json:"requestId" firestore:"requestId"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	Thumb     string    `json:"thumb" firestore:"thumb"`
	UserName  string    `json:"userName" firestore:"userName"`
	Direccion string    `json:"direccion" firestore:"direccion"`
	UserID    string    `json:"userId" firestore:"userId"`
}

// Medication is one line item of an offer.
type Medication struct {
	Nombre   string  `json:"nombre" firestore:"nombre"`
	Cantidad int     `json:"cantidad" firestore:"cantidad"`
	Subtotal float64 `json:"subtotal" firestore:"subtotal"`
}

// Offer is a pharmacy's priced response in offers/{offerId}. Accepted offers
// outlive their Request and persist as the order record.
type Offer struct {
	ID           string       `json:"id" firestore:"-"`
	UserID       string       `json:"userId" firestore:"userId"`
	RequestID    string       `json:"requestId" firestore:"requestId"`
	Farmacia     string       `json:"farmacia" firestore:"farmacia"`
	Direccion    string       `json:"direccion" firestore:"direccion"`
	PrecioTotal  float64      `json:"preciototal" firestore:"preciototal"`
	TiempoEspera int          `json:"tiempoEspera" firestore:"tiempoEspera"`
	Medicamentos []Medication `json:"medicamentos" firestore:"medicamentos"`
	State        string       `json:"state" firestore:"state"`
	EnvioState   string       `json:"envioState,omitempty" firestore:"envioState,omitempty"`
	Detalle      string       `json:"detalle,omitempty" firestore:"detalle,omitempty"`
	TimeStamp    time.Time    `json:"timeStamp" firestore:"timeStamp"`
}

// Notification is a client-only entity derived from the offer stream. It is
// never written back to the store; read state lives with the reconciler.
type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	FarmaciaNombre string    `json:"farmaciaNombre"`
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	Priority       int       `json:"priority"`
	OfferID        string    `json:"offerId"`
}
