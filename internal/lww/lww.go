// Package lww implements the Last-Write-Wins merge policy. It is a pure
// decision layer with no I/O: the client applies it when absorbing a pull,
// the server when applying a push batch. Both enforcement points share the
// exact same rules; only the tie-break side differs.
package lww

import "github.com/closetapp/closet-sync/internal/syncwire"

// Decision is the outcome of comparing an existing record against an
// incoming one.
type Decision struct {
	// Accept means the incoming record replaces the existing one wholly.
	Accept bool
	// Conflict means both sides carry the same timestamp with differing
	// content. The tie is resolved deterministically (server side wins)
	// but counted for observability.
	Conflict bool
}

// Merge resolves one record pair. A nil existing record accepts the
// incoming one unconditionally (not a conflict). Strictly newer incoming
// timestamps win; strictly older ones lose. Equal timestamps with differing
// content are a conflict: serverIsIncoming selects the winner — true on the
// client pull path (the pulled/server copy wins), false on the server push
// path (the stored/server copy wins).
func Merge(existing, incoming *syncwire.Record, serverIsIncoming bool) Decision {
	if existing == nil {
		return Decision{Accept: true}
	}
	ec, ic := existing.Clock(), incoming.Clock()
	switch {
	case ic > ec:
		return Decision{Accept: true}
	case ic < ec:
		return Decision{}
	}
	if existing.SameContent(incoming) {
		// The same write seen twice; applying it again is a no-op.
		return Decision{Accept: serverIsIncoming}
	}
	return Decision{Accept: serverIsIncoming, Conflict: true}
}
