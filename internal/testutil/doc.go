// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages and controlling time. These helpers
// are not intended for production usage.
package testutil
