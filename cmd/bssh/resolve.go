package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	bssherrors "bssh/internal/errors"
	"bssh/internal/rank"
	"bssh/internal/storage"
)

// findConnection resolves a user-typed ref to a stored connection: alias
// first, then exact display name. Both lookups are case-insensitive.
func findConnection(a *app, ref string) (*storage.Connection, error) {
	conn, err := a.aliases.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		return conn, nil
	}

	conn, err = a.conns.GetByName(ref)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		return conn, nil
	}

	return nil, suggestError(a, ref)
}

// mustFindConnection resolves ref or exits, printing ranked near-matches
// when the name is unknown.
func mustFindConnection(a *app, ref string) *storage.Connection {
	conn, err := findConnection(a, ref)
	if err != nil {
		fail(err)
	}
	return conn
}

// suggestError builds the NotFound error for an unknown ref, appending the
// closest ranked matches when any exist.
func suggestError(a *app, ref string) error {
	res, rankErr := a.engine.Search(newContext(), ref)
	if rankErr != nil || len(res.Items) == 0 || res.Mode != rank.ModeRanked {
		return bssherrors.Newf(bssherrors.NotFound, "no connection named %q", ref)
	}

	names := make([]string, 0, 3)
	for i, it := range res.Items {
		if i == 3 {
			break
		}
		names = append(names, it.Connection.Name)
	}
	return bssherrors.Newf(bssherrors.NotFound, "no connection named %q (closest: %s)",
		ref, strings.Join(names, ", "))
}

// confirm asks a yes/no question on the terminal. def is the answer an empty
// line selects.
func confirm(prompt string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Printf("%s [%s]: ", prompt, hint)

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

// secondsDuration converts a float second count to a time.Duration.
func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
