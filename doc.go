// Package s3concat concatenates objects inside an S3 bucket without
// downloading them.
//
// Keys under a bucket prefix are matched against a regular expression and
// grouped by the target key its template expands to. Each target is built as
// a multipart upload whose parts are server-side copies of the sources, in
// listing order. Every source must be at least 5,000,000 bytes, the minimum
// size of a non-final multipart part.
//
// A failure while listing, creating uploads or copying parts aborts every
// upload of the run. A failure while completing one target aborts only that
// target. Sources are deleted only when cleanup is requested and only for
// targets that completed.
//
// Example usage:
//
//	client, err := s3concat.New(s3concat.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.Concat(ctx, "my-bucket", "logs/",
//	    `logs/(\d{4}-\d{2}-\d{2})\.part\d+`, "logs/$1.merged",
//	    s3concat.WithCleanup(true),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Count(s3types.StateCompleted), "targets written")
package s3concat
