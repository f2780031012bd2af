package interfaces

import (
	"context"
	"encoding/json"
)

// SignatureVerifier validates that a message/signature pair was produced by
// the holder of the claimed address's private key.
type SignatureVerifier interface {
	// Verify returns true iff signature is a valid signed-message signature
	// for address over message. Malformed encodings are a verification
	// failure, not an error: Verify never panics and has no side effects.
	Verify(address, message, signature string) bool
}

// AddressLedger is the durable set of already-consumed addresses. It is the
// only shared mutable state the gateway owns; all mutation goes through
// Reserve.
type AddressLedger interface {
	// Reserve atomically records the address as used. It returns true if
	// this call consumed the address, false if it was already present.
	// Exactly one concurrent caller for the same address observes true.
	// A true result is durable before Reserve returns. Addresses are never
	// released: a reservation followed by a downstream failure stays in
	// the set.
	Reserve(ctx context.Context, address BTCAddress) (bool, error)

	// Contains reports whether the address is in the set.
	Contains(ctx context.Context, address BTCAddress) (bool, error)

	// Close releases any resources held by the backing store.
	Close() error
}

// CredentialGenerator derives the four role-scoped key pairs for a username.
// Generation is deterministic and side-effect free: the same username always
// yields the same keys.
type CredentialGenerator interface {
	Generate(username AccountName) (AccountCredentials, error)
}

// AccountCreator submits a create-account operation for a pre-claimed slot
// to the external ledger, authorized by the gateway's creator account. It
// returns the broadcast receipt verbatim.
type AccountCreator interface {
	CreateClaimedAccount(ctx context.Context, username AccountName, keys AccountKeys) (json.RawMessage, error)
}

// MachineChecker is the external ownership-lookup collaborator: does this
// address own a BTC machine.
type MachineChecker interface {
	OwnsMachine(ctx context.Context, address BTCAddress) (bool, error)
}

// Provisioner runs the full signature-gated provisioning workflow for one
// request. Implemented by provision.Service; consumed by the HTTP handler.
type Provisioner interface {
	Provision(ctx context.Context, req ProvisioningRequest) (*ProvisioningResult, error)
}
