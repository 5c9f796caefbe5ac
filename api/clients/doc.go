// Package clients provides an HTTP client for the explorer API.
//
// ExplorerClient implements api.ExplorerProvider. Error responses are mapped
// back onto the interfaces sentinel errors, so callers can test them with
// errors.Is exactly as they would against a local network.Directory.
package clients
