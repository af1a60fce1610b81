// Package export implements the core serializer ports: an xlsx workbook
// writer built on excelize and a CSV writer.
//
// Both writers use the union of the record keys, in first-seen order, as
// the header row. A record without a column leaves that cell empty.
package export
