//go:build nativesqlite
// +build nativesqlite

package catalog

import (
	_ "modernc.org/sqlite"
)

const SQLiteDriverName = "sqlite"
