// Package files implements file synchronization for a workspace.
//
// An upload writes the blob first and the metadata row second:
//
//	blob put  --fail-->  StoreError, nothing written
//	row insert --fail--> blob deleted again, PartialUploadError
//
// A delete removes the blob first and the row second, so a failed blob
// delete leaves the file listed and retryable. A blob that is already gone
// counts as deleted.
//
// The *AndReload variants re-read the workspace's file list after the
// mutation; handlers respond with that list.
package files
