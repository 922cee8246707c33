// Package transport frames request/response messages for a hardware signing
// device over a fixed-size report link.
//
// A Framer splits a message into reports; packet 0 carries the 2-byte total
// length. A Link writes and reads whole messages over a Device, and a
// Session serializes requests so that at most one is in flight per device.
// Nothing in this package retries: ErrProtocol leaves the session failed
// and the caller must reconnect.
package transport
