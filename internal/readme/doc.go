// Package readme turns package README markdown into tool output.
//
// The Extractor is a line scanner, not a markdown parser. Fenced code
// blocks under usage-like headings (Usage, Examples, Getting Started,
// CMake, ...) become usage examples; find_package/target_link_libraries
// calls and #include lines found anywhere else are added as extra examples.
// Every method recovers from internal failures and returns partial or
// unmodified content instead of an error.
package readme
