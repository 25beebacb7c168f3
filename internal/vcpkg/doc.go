// Package vcpkg reads port metadata from a vcpkg registry hosted on GitHub.
//
// A port lives under ports/<name>/ and carries a vcpkg.json manifest, a
// portfile.cmake build recipe and sometimes a usage file. The Registry
// fetches these through the GitHub contents API, follows the portfile's
// vcpkg_from_github call to the upstream repository, and searches manifests
// with code search.
//
// When a storage.Storage is configured every successful fetch is recorded,
// and upstream failures are answered from the last snapshot (Port.Stale and
// Readme.Stale report this). Not found responses are never masked.
package vcpkg
