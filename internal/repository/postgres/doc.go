// Package postgres implements the import record store and schema registry
// repositories on PostgreSQL through database/sql and lib/pq.
//
// Table layout is defined by migrations/.
package postgres
