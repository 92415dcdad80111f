// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service layers.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict indicates a conditional update failed because the
	// document's guarded field no longer holds the expected value.
	ErrStateConflict = errors.New("state conflict")

	// ErrNotAuthenticated indicates the caller has no authenticated identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMissingAddress indicates the caller's profile has no delivery address.
	ErrMissingAddress = errors.New("missing address")

	// ErrNoPharmaciesAvailable indicates no pharmacy accounts exist to fan out to.
	ErrNoPharmaciesAvailable = errors.New("no pharmacies available")

	// ErrUploadFailed indicates a prescription image could not be uploaded.
	ErrUploadFailed = errors.New("upload failed")

	// ErrProfileNotFound indicates the caller's profile document is absent.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrAcceptFailed indicates the offer acceptance transition did not commit.
	ErrAcceptFailed = errors.New("accept failed")

	// ErrRejectFailed indicates the offer rejection did not commit.
	ErrRejectFailed = errors.New("reject failed")

	// ErrStoreUnavailable indicates a live subscription terminated with an error.
	ErrStoreUnavailable = errors.New("store unavailable")
)
