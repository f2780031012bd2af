// Package hive implements the small slice of the Hive protocol this service
// needs: graphene key handling (passphrase derivation, WIF and STM
// encodings), binary serialization and canonical signing of
// create_claimed_account transactions, and a condenser-API JSON-RPC client
// to broadcast them.
//
// # Key derivation
//
// Role keys for new accounts are derived deterministically from the
// username with sha256 passphrase derivation, matching the chain's
// long-standing bootstrap convention. This is reproducible on purpose:
// wallets and recovery tooling recompute the same keys from the login.
// The flip side is that the derivation carries no secret entropy, so the
// HTTP response returning the keys is the only secret in the system.
//
// # Broadcasting
//
// Client anchors transactions to the node's reported head block (TaPoS),
// signs the sha256 digest of chain id plus serialized transaction with the
// creator's active key, and submits through
// condenser_api.broadcast_transaction_synchronous so the receipt carries
// the block the transaction landed in.
package hive
