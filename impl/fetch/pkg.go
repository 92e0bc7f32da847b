// Package fetch implements the fetch capability that the resource registry drives. A
// fetcher is handed a resource identifier and blocks until the resource is available
// (stored in the blob store, or read and discarded when there is no store) or the
// fetch fails. Identifiers select a fetcher by scheme:
//
//	https://cdn.example.com/img/logo.png   - HTTP
//	file:///srv/assets/logo.png            - File (a bare path works too)
//	oci://quay.io/org/splash:v1            - OCI image pulled with crane
//
// Per-host basic auth and TLS settings come from the 'hosts' section of the
// configuration. None of the fetchers retry.
package fetch
