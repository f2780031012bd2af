// Package interfaces defines the core contracts and shared types for the
// account provisioning gateway. It provides the contract between components
// without implementation details.
package interfaces

import (
	"encoding/json"
	"strings"
)

// BTCAddress is an opaque Bitcoin address string as presented by a client.
// The gateway never interprets it beyond signature verification; it is the
// one-shot resource consumed by a successful provisioning request.
type BTCAddress string

// String returns the address as a plain string.
func (a BTCAddress) String() string {
	return string(a)
}

// AccountName is the name of the Hive account to create.
type AccountName string

// String returns the account name as a plain string.
func (n AccountName) String() string {
	return string(n)
}

// KeyRole identifies one of the four authority roles on a Hive account.
type KeyRole string

// The four roles every account carries. Each authorizes a different class
// of operations on the created account.
const (
	RoleOwner   KeyRole = "owner"
	RoleActive  KeyRole = "active"
	RolePosting KeyRole = "posting"
	RoleMemo    KeyRole = "memo"
)

// KeyRoles lists all roles in their canonical order.
func KeyRoles() []KeyRole {
	return []KeyRole{RoleOwner, RoleActive, RolePosting, RoleMemo}
}

// ProvisioningRequest is the payload of a create-account call. All four
// fields are required; validation happens in the provisioning workflow.
type ProvisioningRequest struct {
	Username  string `json:"username"`
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Complete reports whether all required fields are present.
func (r ProvisioningRequest) Complete() bool {
	return strings.TrimSpace(r.Address) != "" &&
		r.Username != "" && r.Message != "" && r.Signature != ""
}

// RoleKeyPair is a single role-scoped key pair in its wire encodings:
// the private key as WIF, the public key in STM base58 form.
type RoleKeyPair struct {
	PrivateWIF string
	PublicKey  string
}

// AccountKeys holds one string-encoded key per role. It is used both for
// the private WIFs returned to the caller and for the public keys carried
// in the account creation operation.
type AccountKeys struct {
	Owner   string `json:"owner"`
	Active  string `json:"active"`
	Posting string `json:"posting"`
	Memo    string `json:"memo"`
}

// AccountCredentials is the full set of role-scoped key pairs derived for a
// new account. It is generated once per successful provisioning request and
// never persisted by this service; the HTTP response is the only copy.
type AccountCredentials struct {
	Owner   RoleKeyPair
	Active  RoleKeyPair
	Posting RoleKeyPair
	Memo    RoleKeyPair
}

// PrivateKeys returns the four private keys in WIF encoding.
func (c AccountCredentials) PrivateKeys() AccountKeys {
	return AccountKeys{
		Owner:   c.Owner.PrivateWIF,
		Active:  c.Active.PrivateWIF,
		Posting: c.Posting.PrivateWIF,
		Memo:    c.Memo.PrivateWIF,
	}
}

// PublicKeys returns the four public keys in STM encoding.
func (c AccountCredentials) PublicKeys() AccountKeys {
	return AccountKeys{
		Owner:   c.Owner.PublicKey,
		Active:  c.Active.PublicKey,
		Posting: c.Posting.PublicKey,
		Memo:    c.Memo.PublicKey,
	}
}

// ProvisioningResult is the outcome of a successful provisioning request:
// the broadcast receipt from the ledger and the freshly derived credentials.
type ProvisioningResult struct {
	Receipt     json.RawMessage
	Credentials AccountCredentials
}
