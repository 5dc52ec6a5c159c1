// Package report compiles the summaries of ready items into a single
// chronological document, either plain text or docx. Entries are ordered by
// the recording's publication date so the report reads as a timeline.
package report
