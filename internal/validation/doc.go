// Package validation checks run arguments before any remote call is made.
//
// Every failure is a configuration error: bucket names follow the S3 DNS
// rules, target templates and prefixes must be usable object keys, and
// upload options must be values the backend accepts.
package validation
