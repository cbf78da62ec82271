package commands

import (
	"fmt"
	"strings"

	"github.com/fplayout/fplayout/pkg/location"
)

// parseFPID parses the CLI's "[universe:]producer[#channel[/frequency]]!build"
// shorthand, the inverse of location.FPID.String for FPIDs whose universe
// has no Location: everything before the last ":" becomes the universe
// Factory.
func parseFPID(s string) (location.FPID, error) {
	rest := s
	build := ""
	if i := strings.LastIndex(rest, "!"); i >= 0 {
		build = rest[i+1:]
		rest = rest[:i]
	}
	if build == "" {
		return location.FPID{}, fmt.Errorf("fpid %q: missing !build", s)
	}

	channel, frequency := "", ""
	if i := strings.Index(rest, "#"); i >= 0 {
		chanPart := rest[i+1:]
		rest = rest[:i]
		if j := strings.Index(chanPart, "/"); j >= 0 {
			channel, frequency = chanPart[:j], chanPart[j+1:]
		} else {
			channel = chanPart
		}
	}

	universe := location.UniverseSpec{}
	producer := rest
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		universe = location.UniverseSpec{Factory: rest[:i]}
		producer = rest[i+1:]
	}
	if producer == "" {
		return location.FPID{}, fmt.Errorf("fpid %q: missing producer", s)
	}

	return location.NewFPID(universe, producer, channel, frequency, build)
}
