package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"ride-convoy/internal/domain/geo"
)

// walkStepMeters spaces the simulated positions when no --path is given.
const walkStepMeters = 150

// SessionArgs are the flags shared by both screens.
type SessionArgs struct {
	ConfigPath     string
	RideID         string
	RideName       string
	Destination    geo.Coordinate
	CreatorID      string
	ScheduledStart time.Time
	From           geo.Coordinate
	Path           []geo.Coordinate

	// lobby only
	AutoReady bool
	AutoStart bool
	Follow    bool
}

// ParseSessionArgs parses the flags of mode. It returns flag.ErrHelp
// untouched so callers can exit cleanly.
func ParseSessionArgs(mode string, args []string) (SessionArgs, error) {
	var (
		out         SessionArgs
		dest, from  string
		path, start string
	)

	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	fs.StringVar(&out.ConfigPath, "config", "config/config.yaml", "Path to the YAML config file")
	fs.StringVar(&out.RideID, "ride", "", "Ride session id (required)")
	fs.StringVar(&out.RideName, "name", "", "Ride name shown in logs")
	fs.StringVar(&dest, "dest", "", "Meeting point as lat,lon (required)")
	fs.StringVar(&out.CreatorID, "creator", "", "Rider id of the ride creator")
	fs.StringVar(&start, "start", "", "Scheduled start (RFC 3339)")
	fs.StringVar(&from, "from", "", "Simulated device position as lat,lon (defaults to the meeting point)")
	fs.StringVar(&path, "path", "", "Simulated device path as lat,lon;lat,lon;... (overrides --from)")
	if mode == ModeLobby {
		fs.BoolVar(&out.AutoReady, "ready", false, "Mark the local rider ready once the roster arrives")
		fs.BoolVar(&out.AutoStart, "start-ride", false, "Start the ride once the route resolves (creator only)")
		fs.BoolVar(&out.Follow, "follow", true, "Switch to the live screen when the ride starts")
	}
	AttachUsage(fs, mode)

	if err := fs.Parse(args); err != nil {
		return SessionArgs{}, err
	}

	var problems []string
	if out.RideID = strings.TrimSpace(out.RideID); out.RideID == "" {
		problems = append(problems, "--ride is required")
	}

	var err error
	if out.Destination, err = geo.ParseCoordinate(dest); err != nil {
		problems = append(problems, fmt.Sprintf("--dest: %v", err))
	}

	if start != "" {
		if out.ScheduledStart, err = time.Parse(time.RFC3339, start); err != nil {
			problems = append(problems, fmt.Sprintf("--start: %v", err))
		}
	}

	out.From = out.Destination
	if from != "" {
		if out.From, err = geo.ParseCoordinate(from); err != nil {
			problems = append(problems, fmt.Sprintf("--from: %v", err))
		}
	}

	if path != "" {
		if out.Path, err = parsePath(path); err != nil {
			problems = append(problems, fmt.Sprintf("--path: %v", err))
		}
	}

	if len(problems) > 0 {
		return SessionArgs{}, errors.New(strings.Join(problems, "; "))
	}

	if len(out.Path) == 0 {
		out.Path = geo.Line(out.From, out.Destination, walkStepMeters)
	}
	out.From = out.Path[0]

	return out, nil
}

func parsePath(in string) ([]geo.Coordinate, error) {
	var out []geo.Coordinate
	for _, part := range strings.Split(in, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := geo.ParseCoordinate(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("no points")
	}
	return out, nil
}
