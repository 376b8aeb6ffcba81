// Package core contains the canonical brokerage domain contracts, entities,
// configuration, and error envelopes. Lower-level adapters must depend on
// this package; core must not depend on transport or store adapters.
package core
