// Package ingest pulls activities from the provider for a date window,
// normalizes each into a canonical load record, and keeps daily coverage
// intact with synthetic rest days.
package ingest

import (
	"strings"

	"github.com/mkendall/stride/internal/models"
)

// Sport is the tagged classification used throughout the load model. The
// core never branches on raw strings.
type Sport int

const (
	Running Sport = iota
	Cycling
	Swimming
	Strength
	Walking
	Hiking
	Rest
	Other
)

// StorageType maps a Sport to the six-way label persisted on activity rows.
// Walking and hiking score (and store) as running; yoga stores as strength.
func (s Sport) StorageType() string {
	switch s {
	case Running, Walking, Hiking:
		return models.SportRunning
	case Cycling:
		return models.SportCycling
	case Swimming:
		return models.SportSwimming
	case Strength:
		return models.SportStrength
	case Rest:
		return models.SportRest
	default:
		return models.SportOther
	}
}

// Classification is the result of interpreting a provider activity label.
type Classification struct {
	Sport     Sport
	Label     string // specific label, e.g. "Trail Run", "Treadmill Run"
	OpenWater bool   // swimming only
	Supported bool
}

// keywordSet pairs a sport with the substrings that select it. Order
// matters: strength keywords are tested before running so "Weight Training"
// never falls through to a running match.
type keywordSet struct {
	sport    Sport
	label    string
	keywords []string
}

var keywordSets = []keywordSet{
	{Strength, "Weight Training", []string{"weighttraining", "weight training", "strength", "crossfit", "hiit"}},
	{Strength, "Yoga", []string{"yoga", "pilates"}},
	{Swimming, "Swim", []string{"swim"}},
	{Cycling, "Ride", []string{"ride", "cycling", "bike", "velomobile", "handcycle"}},
	{Hiking, "Hike", []string{"hike", "hiking"}},
	{Walking, "Walk", []string{"walk"}},
	{Running, "Run", []string{"run", "jog"}},
}

// unsupportedKeywords name activity kinds outside the supported set. They
// are logged and skipped; never fail the batch.
var unsupportedKeywords = []string{
	"alpineski", "backcountryski", "nordicski", "snowboard", "snowshoe",
	"kayak", "canoe", "rowing", "row", "standuppaddling", "surf", "sail",
	"skateboard", "inlineskate", "iceskate", "golf", "rockclimb", "climb",
	"windsurf", "kitesurf", "elliptical", "stairstepper", "wheelchair",
}

// ClassifySport interprets a provider activity. The name and the provider's
// type labels are matched against ordered keyword sets; ambiguity defaults
// to running. An indoor/trainer flag upgrades a road run to a treadmill run
// and a road ride to a virtual ride.
func ClassifySport(name, activityType, sportType string, trainer bool) Classification {
	haystack := strings.ToLower(sportType + " " + activityType + " " + name)

	for _, kw := range unsupportedKeywords {
		if strings.Contains(haystack, kw) {
			return Classification{Sport: Other, Label: strings.TrimSpace(activityType), Supported: false}
		}
	}

	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if !strings.Contains(haystack, kw) {
				continue
			}
			c := Classification{Sport: set.sport, Label: set.label, Supported: true}
			refineLabel(&c, haystack, trainer)
			return c
		}
	}

	// Ambiguous labels default to running.
	c := Classification{Sport: Running, Label: "Run", Supported: true}
	refineLabel(&c, haystack, trainer)
	return c
}

// refineLabel sharpens the specific label from context flags.
func refineLabel(c *Classification, haystack string, trainer bool) {
	switch c.Sport {
	case Running:
		switch {
		case strings.Contains(haystack, "trail"):
			c.Label = "Trail Run"
		case trainer || strings.Contains(haystack, "treadmill") || strings.Contains(haystack, "indoor"):
			c.Label = "Treadmill Run"
		case strings.Contains(haystack, "virtual"):
			c.Label = "Virtual Run"
		default:
			c.Label = "Road Run"
		}
	case Cycling:
		switch {
		case trainer || strings.Contains(haystack, "virtual") || strings.Contains(haystack, "indoor") || strings.Contains(haystack, "trainer"):
			c.Label = "Virtual Ride"
		case strings.Contains(haystack, "mountain") || strings.Contains(haystack, "gravel"):
			c.Label = "Trail Ride"
		default:
			c.Label = "Road Ride"
		}
	case Swimming:
		if strings.Contains(haystack, "open") || strings.Contains(haystack, "openwater") {
			c.Label = "Open Water Swim"
			c.OpenWater = true
		} else {
			c.Label = "Pool Swim"
		}
	}
}
