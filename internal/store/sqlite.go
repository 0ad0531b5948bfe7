package store

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// foldFunc is the SQLite function used for case-insensitive matching.
// The built-in lower() only folds ASCII, so "RELATÓRIO" would never match
// a search for "relatório".
const foldFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
