// Package core provides the business logic for test-evidence reports.
//
// This package holds all domain logic independent of any transport or
// storage engine. The web server, the CLI and the tests all drive the same
// [Service]; persistence, evidence blobs and document rendering are reached
// through the [Store], [BlobStore] and [DocumentRenderer] interfaces.
//
// # Import
//
// [Service.Import] turns one spreadsheet (.xlsx or .csv) into one report:
//
//  1. [ParseDataset] reads the file; the header row must carry the
//     columns ID, Case Title, Steps and Expected Result (Portuguese
//     aliases accepted), checked once by [CheckColumns]
//  2. Each data row is judged by [RowValidator.ValidateRow]; rejected rows
//     are reported as "Row N: reason" and the batch continues
//  3. The report and all accepted test cases are written in one transaction
//
// [Service.ValidateImport] runs the same checks as a dry run.
//
// # Status Normalization
//
// Status cells are mapped onto PASS, FAIL, BLOCKED or PENDING by a
// [StatusTable]. Matching ignores case and accents; unknown values become
// PENDING. Extra synonyms can be loaded from YAML with [LoadStatusTable].
//
// # Queries and Access
//
// [BuildReportQuery] validates raw filters and pins non-admin callers to
// their own reports before anything reaches the store. Operations on a
// report owned by someone else fail with [ErrForbidden], which callers at
// the edge present exactly like [ErrNotFound].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes
// by [MapError]; see error_messages.go for the code reference.
package core
