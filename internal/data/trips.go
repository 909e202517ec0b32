package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/junctionsim/junction/internal/sim"
	"gopkg.in/yaml.v3"
)

// TripEntry is one agent crossing one turn, released at Depart.
type TripEntry struct {
	Agent  string `yaml:"agent"` // "car" or "ped"
	ID     uint32 `yaml:"id"`
	Turn   int    `yaml:"turn"`
	Depart uint32 `yaml:"depart"` // tick
}

type tripFile struct {
	Trips []TripEntry `yaml:"trips"`
}

// Trip is a validated TripEntry.
type Trip struct {
	Request sim.Request
	Depart  sim.Tick
}

// LoadTrips reads a demand trace and checks every turn exists in n. Trips are
// returned sorted by departure, then request.
func LoadTrips(path string, n *Network) ([]Trip, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trips %s: %w", path, err)
	}
	var file tripFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse trips %s: %w", path, err)
	}

	trips := make([]Trip, 0, len(file.Trips))
	for i, e := range file.Trips {
		var agent sim.AgentID
		switch e.Agent {
		case "car":
			agent = sim.Car(sim.CarID(e.ID))
		case "ped", "pedestrian":
			agent = sim.Pedestrian(sim.PedestrianID(e.ID))
		default:
			return nil, fmt.Errorf("trip %d: unknown agent kind %q", i, e.Agent)
		}
		turn := sim.TurnID(e.Turn)
		if _, ok := n.TurnParent(turn); !ok {
			return nil, fmt.Errorf("trip %d: unknown turn %d", i, e.Turn)
		}
		trips = append(trips, Trip{
			Request: sim.Request{Agent: agent, Turn: turn},
			Depart:  sim.Tick(e.Depart),
		})
	}

	sort.Slice(trips, func(i, j int) bool {
		if trips[i].Depart != trips[j].Depart {
			return trips[i].Depart < trips[j].Depart
		}
		return trips[i].Request.Compare(trips[j].Request) < 0
	})
	return trips, nil
}
