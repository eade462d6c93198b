// Package services implements the engine on top of the repositories and the
// remote client: the caller-facing write API, the connectivity monitor, the
// conflict resolver, the sync orchestrator and the attachment cache.
//
// Services never reach into each other's storage; all state flows through
// the repository contracts in client.Repositories.
package services
