// Package core provides the normalization engine for flatsheet.
//
// The package turns one uploaded JSON or delimited-text document into a flat,
// paginated table and exports it as a workbook or CSV. It has no knowledge of
// HTTP or templates and is shared by the web server and the CLI.
//
// # Pipeline
//
// An upload flows through four stages, each usable on its own:
//
//  1. [Parser] reads the text as JSON, falling back to delimited text for
//     plain-text uploads ([Parse])
//  2. [Extract] locates the record array, unwrapping {"Payload":{"Data":[...]}}
//  3. [Flattener] reduces every nested record to a [FlatRecord] of dotted
//     paths ([Flatten])
//  4. [BuildDataset] collects the records into a [Dataset] with its column
//     union and page views
//
//	doc, err := core.Parse(raw, core.DeclaredJSON)
//	records, err := core.Extract(doc)
//	ds, err := core.BuildDataset(records)
//	rows := ds.Page(1, core.DefaultPageSize)
//
// # Sessions
//
// [Service] keeps one immutable [State] per browser session. Every change is
// a named transition ([UploadStart], [UploadSuccess], [PageChange], [Reset],
// ...) and upload transitions are tagged with a generation so results of a
// discarded upload are dropped. Progress is published to
// [Service.SubscribeProgress] subscribers.
//
// # Export
//
// Byte encoding is delegated to the [WorkbookSerializer] and [CSVSerializer]
// ports supplied at construction; see package export for the implementations.
//
// # Error Handling
//
// Pipeline failures are [FailureError] values matching the Err* sentinels
// with errors.Is. [MapError] turns any error into a coded [UserMessage].
package core
