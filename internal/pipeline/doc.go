// Package pipeline runs the stages that turn candidate mining sites into
// yearly polygon datasets:
//
//	fetch        look up and download the imagery tiles of every candidate
//	chips        cut, normalise and resize candidate windows into chips
//	predict      segment chips, reconstruct polygons, resolve overlaps
//	postprocess  temporal filter, country attribution, geodesic area
//
// Every per-candidate task takes an immutable Candidate and returns an
// Outcome by value. Failures are isolated to their candidate and counted in
// Diagnostics; a stage only returns an error when it cannot run at all.
package pipeline
