// Package middleware provides message middleware for gateway connectors.
//
// SessionLength tracks how long sessions between a connector and an address
// last. On a session start it records the start time in a shared key/value
// store; on a session close it reads the start time back, deletes the record
// and annotates the message with both timestamps. Records of sessions that
// never close are removed by the store's key expiry.
//
// Stack chains middleware in order for inbound traffic and in reverse order
// for outbound traffic.
package middleware
