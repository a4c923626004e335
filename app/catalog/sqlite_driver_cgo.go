//go:build !nativesqlite
// +build !nativesqlite

package catalog

import (
	_ "github.com/mattn/go-sqlite3"
)

const SQLiteDriverName = "sqlite3"
