// Package report renders consolidated forensic reports for people and
// for tools.
//
// Three formats are available:
//   - SimpleWriter: fixed-width text for terminal display
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: shareable documents with tables, alerts, and charts
//
// Writers implement the Writer interface and can be composed with
// MultiWriter to emit several formats in one pass.
package report
