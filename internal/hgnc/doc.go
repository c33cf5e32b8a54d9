// Package hgnc resolves gene symbols to stable identifiers.
//
// A Table is loaded once from the HGNC complete-set TSV export and is
// immutable afterwards. A Resolver binds a Table to one identifier Scheme
// and is safe for concurrent use.
//
// # Lookup Rules
//
//   - Symbols are matched case-sensitively after NFC normalization.
//   - The current approved symbol wins; previous symbols are consulted only
//     when no current symbol matches. The first row (file order) claiming
//     a previous symbol owns it.
//   - A row whose identifier column is empty for the chosen scheme is
//     treated as unresolved.
package hgnc
