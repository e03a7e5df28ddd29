// Package components defines the plain value types and ECS components shared
// across the mass-transport engine.
package components

// RegionKind classifies a grid cell's membership.
type RegionKind uint8

const (
	RegionCorridor RegionKind = iota // ordinary road/off-road cell
	RegionLot                        // inside a conversion lot or industrial park
)

// RoadType classifies a road cell for Dijkstra edge-cost weighting.
type RoadType uint8

const (
	RoadHighway RoadType = iota
	RoadCity
)

// ParticleClass is the mass class a particle (and the density it represents)
// carries. Restricted mass cannot exit the gate; it must dwell in a lot to
// become cleared.
type ParticleClass uint8

const (
	ClassRestricted ParticleClass = iota
	ClassCleared
)
