// Package mock runs an image server for tests. It serves generated image bytes under
// '/img/<name>' for any name, counts the requests for each path so tests can verify
// fetch deduplication, and can optionally require basic auth, serve https, or delay
// each response to simulate slow links.

package mock
