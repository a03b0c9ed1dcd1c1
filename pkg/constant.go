package pkg

import "math"

const (
	INF_WEIGHT     float64 = 1e15
	INF_WEIGHT_INT         = 1e15
)

// storage names, weighting specific storages get the weighting name as suffix
const (
	ISOCHRONE_NODES_STORAGE        = "isochronenodes"
	CELLS_STORAGE                  = "cells"
	ECCENTRICITIES_STORAGE         = "eccentricities_"
	BORDER_NODE_DISTANCES_STORAGE  = "bordernodedistances_"
	GRAPH_FILE                     = "graph.bz2"
	STORAGE_FILE_EXTENSION         = ".fiso"
	DEFAULT_STORAGE_DIRECTORY      = "./data/fastiso"
	DEFAULT_CONFIG_DIRECTORY       = "./data/"
	DEFAULT_BOUNDING_BOX_RADIUS_KM = 0.05
)

const (
	// list terminators of the columnar storages. node ids are never negative.
	NODE_LIST_END    int32 = -1
	CONTOUR_LIST_END int32 = math.MaxInt32
)

type OsmHighwayType uint8

// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
const (
	MOTORWAY OsmHighwayType = iota
	TRUNK
	PRIMARY
	SECONDARY
	TERTIARY
	RESIDENTIAL
	SERVICE
	LIVING_STREET
	UNCLASSIFIED
	OTHER_HIGHWAY
)

// default speeds in km/h when a way carries no usable maxspeed tag.
var DefaultSpeeds = map[OsmHighwayType]float64{
	MOTORWAY:      100,
	TRUNK:         80,
	PRIMARY:       60,
	SECONDARY:     50,
	TERTIARY:      40,
	RESIDENTIAL:   30,
	SERVICE:       20,
	LIVING_STREET: 10,
	UNCLASSIFIED:  30,
	OTHER_HIGHWAY: 25,
}
