// Package layers converts raw result sets into map layers.
//
// A column is a geometry column when at least one of its non-null values
// decodes as geometry. Accepted encodings are GeoJSON objects (a map with
// type and coordinates), GeoJSON text, WKB or EWKB hex text, and raw WKB
// bytes. Each geometry column yields one Layer named after the column. A
// result with no geometry column yields a single table layer with an empty
// feature list.
//
// Values that fail to decode are not errors: the row stays in the layer's
// tabular rows and contributes no feature.
package layers
