// Package interfaces defines core interfaces and types for the gatekeeper
// network client, separating interface definitions from implementations.
//
// # Ledger Gateway
//
// LedgerGateway is the contract-bound connection to the ledger. It reads views
// (Call), submits mutating calls (Submit) and waits for confirmations
// (AwaitConfirmations). The ledger package implements it over a go-ethereum
// backend and the memledger package implements it in memory.
//
// # Identifiers
//
// A NetworkName is encoded into a 32-byte NetworkIdentifier, right-padded with
// zero bytes. The ledger maps the identifier to a NetworkKey which is used for
// all later lookups. Keys are never computed locally.
//
//	id, err := interfaces.EncodeNetworkName("Test Network")
//	name, err := interfaces.DecodeNetworkIdentifier(id[:])
//
// # Errors
//
// Local validation fails with ErrInvalidName or ErrInvalidIdentifier. Failures
// reported by the ledger are returned as *LedgerError, whose Kind is one of
// ErrNetworkNotFound, ErrNoPendingClaim, ErrUnauthorized,
// ErrInvalidStateTransition, ErrLedgerRejected, ErrTransport,
// ErrSubmissionRejected or ErrTimeout. Use errors.Is to match a kind and
// ClassifyOutcome to decide whether a write may be retried.
package interfaces
