package interfaces

import "errors"

// Provisioning failure taxonomy. The first four are user errors surfaced as
// HTTP 400 with the message verbatim; ErrExternalService covers collaborator
// and storage failures and maps to HTTP 500. The messages for missing
// fields, invalid signature and reused addresses are part of the public API
// contract and must not be reworded.
var (
	// ErrInvalidRequest is returned when any of the four request fields is
	// missing.
	ErrInvalidRequest = errors.New("Username, address, message, and signature are required")

	// ErrSignatureInvalid is returned when the Bitcoin message signature
	// does not verify against the claimed address.
	ErrSignatureInvalid = errors.New("Invalid signature")

	// ErrAddressAlreadyUsed is returned when the address was consumed by an
	// earlier provisioning request.
	ErrAddressAlreadyUsed = errors.New("This BTC address has already been used to create an account")

	// ErrNoMachine is returned when ownership enforcement is enabled and the
	// address does not own a BTC machine.
	ErrNoMachine = errors.New("No Bitcoin Machine")

	// ErrExternalService wraps failures of the machine-ownership lookup, the
	// Hive broadcast API, or durable ledger storage.
	ErrExternalService = errors.New("external service error")
)

// IsUserError reports whether err belongs to the 400 class of the taxonomy.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrAddressAlreadyUsed) ||
		errors.Is(err, ErrNoMachine)
}
