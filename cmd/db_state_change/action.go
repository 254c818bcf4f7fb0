// Copyright 2025 The Ultraverse Authors
// This file is part of Ultraverse.
//
// Ultraverse is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultraverse is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ultraverse. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

// ActionKind is one element of spec.md §6's ACTION grammar.
type ActionKind uint8

const (
	ActionMakeCluster ActionKind = iota
	ActionRollback
	ActionAutoRollback
	ActionPrepend
	ActionFullReplay
	ActionReplay
)

// Action is one parsed element of the colon-separated ACTION argument.
type Action struct {
	Kind ActionKind

	RollbackGIDs []statelog.GID // ActionRollback
	Ratio        float64        // ActionAutoRollback
	PrependGID   statelog.GID   // ActionPrepend
	PrependFile  string         // ActionPrepend
}

// ParseActions parses spec.md §6's ACTION grammar:
//
//	action := "make_cluster"
//	        | "rollback=" gid ("," gid)*
//	        | "auto-rollback=" ratio
//	        | "prepend=" gid "," sqlfile
//	        | "full-replay"
//	        | "replay"
//	ACTION  := action(":" action)*
//
// kong parses the surrounding flags; this bespoke recursive-descent
// parser exists only for the colon/comma grammar inside the ACTION
// positional argument itself (SPEC_FULL.md §6).
func ParseActions(spec string) ([]Action, error) {
	parts := strings.Split(spec, ":")
	actions := make([]Action, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.Errorf("db_state_change: empty action in %q", spec)
		}
		a, err := parseOneAction(part)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func parseOneAction(s string) (Action, error) {
	switch {
	case s == "make_cluster":
		return Action{Kind: ActionMakeCluster}, nil
	case s == "full-replay":
		return Action{Kind: ActionFullReplay}, nil
	case s == "replay":
		return Action{Kind: ActionReplay}, nil
	case strings.HasPrefix(s, "rollback="):
		gids, err := parseGIDList(strings.TrimPrefix(s, "rollback="))
		if err != nil {
			return Action{}, err
		}
		if len(gids) == 0 {
			return Action{}, errors.Errorf("db_state_change: %q names no gids", s)
		}
		return Action{Kind: ActionRollback, RollbackGIDs: gids}, nil
	case strings.HasPrefix(s, "auto-rollback="):
		ratioStr := strings.TrimPrefix(s, "auto-rollback=")
		ratio, err := strconv.ParseFloat(ratioStr, 64)
		if err != nil {
			return Action{}, errors.Wrapf(err, "db_state_change: bad ratio in %q", s)
		}
		return Action{Kind: ActionAutoRollback, Ratio: ratio}, nil
	case strings.HasPrefix(s, "prepend="):
		rest := strings.TrimPrefix(s, "prepend=")
		gidStr, file, ok := strings.Cut(rest, ",")
		if !ok || gidStr == "" || file == "" {
			return Action{}, errors.Errorf("db_state_change: %q must be \"prepend=gid,sqlfile\"", s)
		}
		gid, err := parseGID(gidStr)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionPrepend, PrependGID: gid, PrependFile: file}, nil
	default:
		return Action{}, errors.Errorf("db_state_change: unrecognized action %q", s)
	}
}

func parseGID(s string) (statelog.GID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "db_state_change: bad gid %q", s)
	}
	return statelog.GID(n), nil
}

func parseGIDList(s string) ([]statelog.GID, error) {
	var gids []statelog.GID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		gid, err := parseGID(part)
		if err != nil {
			return nil, err
		}
		gids = append(gids, gid)
	}
	return gids, nil
}

// parseGIDRange parses the --gid-range flag's "START...END" shape.
func parseGIDRange(s string) (start, end statelog.GID, err error) {
	lo, hi, ok := strings.Cut(s, "...")
	if !ok {
		return 0, 0, errors.Errorf("db_state_change: --gid-range must be START...END, got %q", s)
	}
	start, err = parseGID(lo)
	if err != nil {
		return 0, 0, err
	}
	end, err = parseGID(hi)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
