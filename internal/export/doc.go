// Package export shapes stored records for the query API: the flat JSON
// layouts served to map clients, GeoJSON feature collections, and
// bounding-box filtering backed by an R-tree.
package export
