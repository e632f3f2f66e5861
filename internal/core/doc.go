// Package core provides the business logic for bulk hospital imports.
//
// It turns an uploaded CSV into a sequence of Hospital Directory API calls and
// a [BatchReport]. Nothing here knows about HTTP requests or the command line;
// the web server and hospitalctl both drive an [Importer].
//
// # Batch Flow
//
//  1. [ParseUpload] decodes the bytes as UTF-8 (a leading BOM is dropped),
//     checks the name and address headers and enforces the row cap.
//  2. A fresh batch id is generated and every row is sent, one at a time in
//     CSV order, as a create call tagged with that id.
//  3. Only when no row failed is the batch activated with a single call, and
//     created rows are then reported as created_and_activated.
//
// Problems with the upload itself come back as [*InputError] before any call
// is made. Row failures and activation failures are never returned as
// errors; they are recorded in the report.
//
// # Concurrency
//
// Batches run under an [ImportLimiter] so a burst of uploads cannot fan out
// into unbounded outbound traffic. Rows within a batch are never parallel.
//
// # Error Handling
//
// Errors shown to users are mapped with [MapError]. Each category has a code
// for support reference:
//
//   - FILE001-FILE005: upload and encoding problems
//   - VAL004: required header missing
//   - IMP001-IMP003: row count and import capacity
//   - HIST001-HIST002: import history lookups
package core
