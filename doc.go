// Package cloudstore is a provider-agnostic object-storage backend for
// backup archives. An Adapter is bound to one bucket/prefix location, named
// by a gs:// or console-browser locator, and exposes connectivity probing,
// delimiter-aware listing, single-shot and multipart uploads, streaming
// downloads and bulk deletion over any provider.Provider implementation.
//
// The stock provider targets Amazon S3 and S3-compatible services:
//
//	adapter, err := cloudstore.New(ctx, "gs://backups/prod/db1",
//		cloudstore.WithLogger(logger),
//		cloudstore.WithJobs(8),
//	)
//	if err != nil {
//		return err
//	}
//	defer adapter.Close()
//
//	if !adapter.TestConnectivity(ctx) {
//		return fmt.Errorf("bucket unreachable")
//	}
//	err = adapter.UploadStream(ctx, backupStream, "prod/db1/base.tar")
package cloudstore
