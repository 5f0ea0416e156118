// Package internal holds build information shared by the binaries.
package internal

// Version is the build version, set at build time with
// -ldflags "-X github.com/vocdoni/bonsai-local/internal.Version=v1.2.3"
var Version = "dev"
