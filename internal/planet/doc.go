// Package planet talks to the Planet Basemaps API: it resolves a mosaic name
// to its id, lists the quads (tiles) under a bounding box and downloads
// quad GeoTIFFs.
//
// Requests authenticate with HTTP basic auth, the API key as user name and
// an empty password. Transport failures, 5xx and 429 responses and
// unparseable bodies are retried with exponential backoff; any other 4xx is
// permanent. Lookups and downloads fan out over a bounded worker pool.
package planet
