/*
Package filestore stores binary artifacts produced by probing, today
only browser screenshots.

Objects live under a single versioned prefix:

	storagev1/{organization_id}.{file_id}

The S3 implementation uploads with the artifact's content type and
serves reads through presigned URLs, so the rest of the system never
proxies artifact bytes.
*/
package filestore
