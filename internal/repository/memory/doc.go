// Package memory provides in-memory repositories for tests and local runs.
// They follow the same semantics as the Postgres repositories, including the
// status rules of analyze and commit.
package memory
