// Package packages answers single-package requests: port metadata with
// upstream repository details and an optional score, and README content with
// extracted usage examples.
//
// Results that were served from a stale snapshot are returned with Stale set
// and are not cached, so the next request retries the registry.
package packages
