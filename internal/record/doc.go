// Package record provides the shared value types for the catchup pipeline.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import record; record imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every derived record kind (Title, Offer, Asset) exposes its natural
//     key explicitly; upserts match on those keys, never on surrogate ids.
//   - Provider enumerations (show type, offer type, quality, service id,
//     asset kind) stay open strings so catalog growth never hard-fails.
//   - Run is a plain value object passed through the worker loop; there is
//     no shared mutable run state.
package record
