// Package history persists graded submissions, answer-key rubrics and class
// names.
//
// Stored items come in three shapes. Version 1 records carry a single page
// as a data URL in "image", version 2 records carry data URLs in "images",
// and version 3 records carry full page assets in "pages". DecodeItem (and
// Item's UnmarshalJSON) converts every shape to the canonical Item once, at
// load time; EncodeItem always writes version 3.
//
// Two repositories are provided: FileRepository keeps everything in one
// JSON file, PostgresRepository stores rows through pgx.
package history
