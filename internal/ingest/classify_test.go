package ingest

import "testing"

func TestClassifySport(t *testing.T) {
	cases := []struct {
		name         string
		activityName string
		activityType string
		sportType    string
		trainer      bool

		wantSport Sport
		wantLabel string
		wantOpen  bool
		supported bool
	}{
		{"road run", "Morning Run", "Run", "Run", false, Running, "Road Run", false, true},
		{"trail run", "Saturday Trail Run", "Run", "TrailRun", false, Running, "Trail Run", false, true},
		{"treadmill via trainer flag", "Lunch Run", "Run", "Run", true, Running, "Treadmill Run", false, true},
		{"weight training never matches train", "Weight Training", "WeightTraining", "WeightTraining", false, Strength, "Weight Training", false, true},
		{"crossfit", "WOD", "Crossfit", "Crossfit", false, Strength, "Weight Training", false, true},
		{"yoga", "Evening Yoga", "Yoga", "Yoga", false, Strength, "Yoga", false, true},
		{"pool swim", "Masters Swim", "Swim", "Swim", false, Swimming, "Pool Swim", false, true},
		{"open water swim", "Open Water Swim", "Swim", "Swim", false, Swimming, "Open Water Swim", true, true},
		{"road ride", "Sunday Ride", "Ride", "Ride", false, Cycling, "Road Ride", false, true},
		{"virtual ride", "Zwift", "VirtualRide", "VirtualRide", true, Cycling, "Virtual Ride", false, true},
		{"hike", "Summit Hike", "Hike", "Hike", false, Hiking, "Hike", false, true},
		{"walk", "Dog Walk", "Walk", "Walk", false, Walking, "Walk", false, true},
		{"ambiguous defaults to running", "Morning Session", "Workout", "Workout", false, Running, "Road Run", false, true},
		{"kayaking unsupported", "River Kayak", "Kayaking", "Kayaking", false, Other, "Kayaking", false, false},
		{"elliptical unsupported", "Gym", "Elliptical", "Elliptical", false, Other, "Elliptical", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := ClassifySport(tc.activityName, tc.activityType, tc.sportType, tc.trainer)
			if c.Supported != tc.supported {
				t.Fatalf("supported = %v, want %v", c.Supported, tc.supported)
			}
			if !tc.supported {
				return
			}
			if c.Sport != tc.wantSport {
				t.Errorf("sport = %v, want %v", c.Sport, tc.wantSport)
			}
			if c.Label != tc.wantLabel {
				t.Errorf("label = %q, want %q", c.Label, tc.wantLabel)
			}
			if c.OpenWater != tc.wantOpen {
				t.Errorf("open water = %v, want %v", c.OpenWater, tc.wantOpen)
			}
		})
	}
}

func TestStorageType(t *testing.T) {
	if got := Walking.StorageType(); got != "running" {
		t.Errorf("walking stores as %q, want running", got)
	}
	if got := Hiking.StorageType(); got != "running" {
		t.Errorf("hiking stores as %q, want running", got)
	}
	if got := Rest.StorageType(); got != "rest" {
		t.Errorf("rest stores as %q", got)
	}
}
