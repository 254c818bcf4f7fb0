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

package statechange

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// MySQLClientPath is the "mysql" CLI binary RestoreDump shells out to.
// Overridable for tests that need to point at a stub script instead
// of a real client.
var MySQLClientPath = "mysql"

// RestoreDump loads dumpPath into plan's intermediate database using
// the mysql command-line client, the one place in this tree that
// shells out rather than going through DbHandle (spec.md §4.8): a
// dump can be gigabytes of raw SQL and piping it through database/sql
// a statement at a time would defeat the point of using a dump at
// all, whereas the mysql client streams it directly.
func RestoreDump(ctx context.Context, plan *StateChangePlan, dumpPath string) error {
	f, err := os.Open(dumpPath)
	if err != nil {
		return errors.Wrapf(err, "statechange: open dump %q", dumpPath)
	}
	defer f.Close()

	args := []string{
		"-h", plan.DBHost,
		"-u", plan.DBUser,
	}
	if plan.DBPort != 0 {
		args = append(args, "-P", fmt.Sprintf("%d", plan.DBPort))
	}
	if plan.DBPass != "" {
		args = append(args, "-p"+plan.DBPass)
	}
	args = append(args, plan.DBName)

	cmd := exec.CommandContext(ctx, MySQLClientPath, args...)
	cmd.Stdin = f

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("statechange: restore dump %q into database %q: %s", dumpPath, plan.DBName, msg)
	}
	return nil
}
