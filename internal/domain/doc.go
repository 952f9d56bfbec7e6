// Package domain holds the value types shared by the import API, the
// repositories and the staging worker: imports and their status lifecycle,
// column mappings, staged rows and canonical schemas.
//
// The package imports nothing from internal/. Types carry JSON and DB tags
// and small pure helpers, never clients or request state.
package domain
