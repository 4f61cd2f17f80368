// Package service carries the in-process event bus the application layer
// publishes its lifecycle and verification events on. The status server
// bridges these events onto the SSE stream.
package service
