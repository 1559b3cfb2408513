// Package domain models flood-forecast output produced by an unstructured-mesh
// hydrodynamic model (D-Flow FM style UGRID netCDF files).
//
// # Data Source
//
// Every model run writes three netCDF files into one output directory:
//
//	*_map.nc  node coordinates, face-to-node table, time axis, water depth per face
//	*_clm.nc  risk classification per face, co-indexed with the map file
//	*_his.nc  station coordinates, station names, water depth/level/velocity per station
//
// # Mesh Conventions
//
// Face-to-node rows are ragged: a row holds 3 (triangle) or 4 (quadrilateral)
// 1-based node indices followed by fill markers. Rows are compacted before use;
// any other compacted length is skipped without error. Quadrilateral vertices
// are not stored in boundary order, so they are sorted by polar angle around
// the face centroid. See [OrderQuad].
//
// # Time Encoding
//
// Timestamps are whole seconds since 2001-01-01 00:00:00 (no time zone). The
// external text form is "YYYY-MM-DD HH:MM:SS". See [Encode] and [Decode].
//
// # Persistence Window
//
// Only the tail of a run is persisted. Precomputed runs (type 0) keep timestep
// indices 23 and later; rolling real-time runs (type 1) keep 24 and later.
//
// # Deduplication
//
// Records are keyed by a SHA-256 content key over every persisted field, after
// depth, level and velocity are rounded to two decimals. Re-ingesting the same
// files for the same project therefore inserts nothing. See [GridRecord.ContentKey].
package domain
