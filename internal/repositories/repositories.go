package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/qrtune/internal/shared"
)

// sequenced lists the tables that carry a "<table>_sequence" counter row.
var sequenced = map[string]bool{"scans": true}

// NextSequence increments and returns the counter for table.
//
// The counter lives in "<table>_sequence" as a single row with id 1.
func NextSequence(db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("sequence row missing for %s", table)
		}
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
