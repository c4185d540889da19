// Package janitor removes orphan blobs: blobs whose path no file row
// references. They appear when an upload's rollback fails after its
// metadata insert failed.
//
//	sweeper := janitor.NewSweeper(blobs, metadata, janitor.Config{}, janitor.Options{Logger: logger})
//	if err := sweeper.Start(ctx); err != nil { ... }
//	defer sweeper.Stop(shutdownCtx)
package janitor
