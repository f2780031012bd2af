// Package storage provides durable backends for the used-address ledger,
// the set of BTC addresses already consumed by a provisioning request.
//
// Three backends implement interfaces.AddressLedger, selected by URI scheme
// through the Factory:
//
//   - file://   - a flat JSON array of addresses, loaded fully at startup
//     and rewritten atomically on each reservation. Matches the layout of
//     the legacy address file, so an existing deployment can keep its data.
//   - sqlite:// - an embedded SQLite database reserving through a unique
//     constraint. Preferred for anything beyond toy volume.
//   - s3://     - one object per address in a bucket, for deployments that
//     want the set to outlive the host.
//
// All backends share the same semantics: Reserve is an atomic check-and-set
// that is durable before it returns, membership is monotonic (addresses are
// never removed), and a missing store on startup means an empty set.
package storage
