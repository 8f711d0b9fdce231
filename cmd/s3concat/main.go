// Command s3concat concatenates objects inside an S3 bucket.
//
//	s3concat [flags] <bucket> <source> <target>
//
// Every key under bucket matching the source expression is copied, in listing
// order, into the target its template expands to:
//
//	s3concat s3://my-bucket/logs 'logs/(\d{4}-\d{2}-\d{2})\.part\d+' 'logs/$1.merged'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx := withSignalCancel(context.Background())
	os.Exit(submain(ctx, os.Args[1:], os.Stdout, os.Stderr, newClient))
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
