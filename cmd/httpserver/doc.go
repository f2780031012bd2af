// Command httpserver runs the account provisioning gateway: it verifies
// Bitcoin signed messages, reserves the signing address in a durable ledger,
// derives the new account's role keys and broadcasts the account creation to
// Hive. Configuration is flag- or environment-driven; the creator account's
// active key may be passed directly or resolved from Vault.
package main
