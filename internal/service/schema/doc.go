// Package schema resolves the canonical field schema an import is mapped
// against and builds the alias index used for column suggestions.
//
// Schemas are versioned per (tenant class, import type). Only one version
// per pair is active; publishing a new version deactivates the others.
// Repository implementations live in repository/postgres/ and
// repository/dynamo/.
package schema
