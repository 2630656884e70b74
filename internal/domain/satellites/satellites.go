// Package satellites is a small space-race domain used to exercise the
// mapper end to end.
//
// Programs launch satellites; every satellite orbits in one orbit and was
// launched from one location:
//
//	(Program)-[:LAUNCHED]->(Satellite)-[:ORBITS]->(Orbit)
//	                       (Satellite)-[:LOCATION]->(Location)
package satellites

import (
	"embed"
	"time"
)

// Manned flag values
const (
	Manned   = "Y"
	Unmanned = "N"
)

// Program launches satellites
type Program struct {
	ID         *int64
	Name       string
	Ref        string
	Satellites []*Satellite `ogm:"relationship=LAUNCHED"`
}

// Satellite is one launched craft
type Satellite struct {
	ID       *int64
	Name     string
	Ref      string
	Launched time.Time
	Manned   string
	Updated  time.Time `ogm:"converter=epochmillis"`

	Location *Location `ogm:"relationship=LOCATION"`
	Orbit    *Orbit    `ogm:"relationship=ORBITS"`
	Program  *Program  `ogm:"relationship=LAUNCHED;direction=incoming"`
}

// IsManned reports whether the satellite carried a crew
func (s *Satellite) IsManned() bool {
	return s.Manned == Manned
}

// Location is a launch site
type Location struct {
	ID   *int64
	Ref  string
	Name string
}

// Orbit is the kind of orbit a satellite flies
type Orbit struct {
	ID   *int64
	Name string
}

// Entities returns a sample of every type, ready for session.NewFactory
func Entities() []any {
	return []any{&Program{}, &Satellite{}, &Location{}, &Orbit{}}
}

// Files holds the bundled fixtures: satellites.yaml for any driver and
// satellites.cql for a Cypher server
//
//go:embed satellites.yaml satellites.cql
var Files embed.FS

// Fixture file names inside Files
const (
	FixtureYAML   = "satellites.yaml"
	FixtureCypher = "satellites.cql"
)
