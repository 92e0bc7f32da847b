package globals

// BlobsDir is the subdirectory under the cache directory where fetched resources are
// stored by digest
const BlobsDir = "blobs"

// PullsDir is the subdirectory under the cache directory where in-progress fetches are
// temporarily staged
const PullsDir = "pulls"
