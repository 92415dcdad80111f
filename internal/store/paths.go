package store

// Collection layout shared by every backend.
const (
	UsersCollection    = "users"
	RequestsCollection = "requests"
	OffersCollection   = "offers"
)

// UserPath returns users/{uid}.
func UserPath(uid string) string { return UsersCollection + "/" + uid }

// RequestPath returns requests/{requestId}.
func RequestPath(id string) string { return RequestsCollection + "/" + id }

// OfferPath returns offers/{offerId}.
func OfferPath(id string) string { return OffersCollection + "/" + id }

// InboxCollection returns the per-pharmacy inbox collection
// inbox/{pharmacyId}/requests.
func InboxCollection(pharmacyID string) string {
	return "inbox/" + pharmacyID + "/requests"
}

// InboxPointerPath returns inbox/{pharmacyId}/requests/{requestId}.
func InboxPointerPath(pharmacyID, requestID string) string {
	return InboxCollection(pharmacyID) + "/" + requestID
}
