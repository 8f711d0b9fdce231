// Package list walks a paginated bucket listing one page at a time.
//
// Each step reports either a page of objects or exhaustion. A page without
// a continuation token ends the walk even when it is empty, and a page that
// repeats an earlier continuation token is reported as an error instead of
// looping forever.
package list
