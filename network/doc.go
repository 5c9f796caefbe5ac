// Package network administers gatekeeper networks.
//
// A Directory resolves network names into ledger keys and reads network
// records. Updates are signed with the credential bound by WithTransactOpts
// and return a pending.Operation that must be awaited before its outcome is
// known. The ledger enforces every authorization rule. The directory performs
// no local checks and surfaces ledger rejections as interfaces errors:
//
//	op, err := dir.WithTransactOpts(auth).AddGatekeeper(ctx, "Test Network", gk, nil)
//	if err != nil {
//		return err // errors.Is(err, interfaces.ErrUnauthorized) for a non-authority caller
//	}
//	receipt, err := op.Wait(ctx, 1)
//
// Primary authority handover is two-phase: UpdatePrimaryAuthority only
// proposes a new authority, which takes over once it calls
// ClaimPrimaryAuthority with its own credential.
package network
