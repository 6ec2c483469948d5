// Package gateway is the chat-facing boundary of the service.
//
// It turns raw chat messages (a fenced code block with a language tag,
// plus optional [[key=value]] request options) into execution
// submissions, and renders execution results back into replies a chat
// user can read. It knows nothing about any particular chat platform's
// transport.
package gateway
