package bot

import (
	"fmt"
	"strconv"
	"strings"

	"ticketwatch/internal/model"
)

const addUsage = "usage: /add_movie <movie>; <keyword,...>; <theatre,...|any>; <location,...>"

// ParseAddArgs parses arguments of /add_movie.
// Format: <movie>; <keywords>; <theatres|any>; <locations>, lists comma separated.
func ParseAddArgs(args string) (model.WatchRequest, error) {
	parts := strings.Split(args, ";")
	if len(parts) != 4 {
		return model.WatchRequest{}, fmt.Errorf("%s", addUsage)
	}

	req, err := model.NewWatchRequest(
		parts[0],
		splitList(parts[1]),
		splitList(parts[2]),
		splitList(parts[3]),
	)
	if err != nil {
		return model.WatchRequest{}, fmt.Errorf("%v\n%s", err, addUsage)
	}
	return req, nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("watch ID is required")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.Fields(s)[0], "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid watch ID %q", s)
	}
	return id, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
