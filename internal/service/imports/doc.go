// Package imports implements the synchronous half of the spreadsheet import
// pipeline: issuing upload slots, analyzing uploaded files against the
// active schema and committing the operator's column mapping.
//
// Materialization of staged rows happens asynchronously in worker/. The two
// sides meet only through the record store and the processing queue.
package imports
