// Package translate provides reference block translators for blockcache.
//
// A translator maps a byte offset within a file to the physical cluster
// holding it. ExtentMap keeps per-file extents in memory; the dynamo
// subpackage keeps them in a DynamoDB table.
package translate
