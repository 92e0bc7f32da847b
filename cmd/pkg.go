/*
Imgpreload loads catalogs of resources (images served over http(s), files, and OCI
images) into a local content-addressed cache. Resources are tagged with a scene and/or a
weight so that a subset of a catalog can be loaded ahead of the rest. Every resource is
fetched at most once no matter how many loads select it.

Usage:

	imgpreload [global flags] command [command flags]

Global flags:

	--log-level string
		Log level: debug, info, warn, or error. Defaults to 'error'.
	--log-file string
		Log to the file rather than the console.
	--config-file string
		A yaml configuration file. Command line flags override values in the file.
	--cache-path string
		Where fetched resources are stored. Defaults to '/var/lib/imgpreload'.

Commands:

	load
		Loads the catalog in --catalog, or the part of it selected by --scene or --weight,
		and exits. --concurrent bounds parallel fetches, --pull-timeout bounds each fetch,
		and --wait-timeout bounds the whole load.
	serve
		Runs the preload API on --port. The API adds catalog items and starts loads. With
		--watch, items appended to the catalog file are added to the running catalog. With
		--metrics, prometheus metrics are served on the passed port.
	list
		Lists the entries in --catalog selected by --scene or --weight.
	version
		Displays the version and exits.
*/
package main
