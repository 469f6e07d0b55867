// ABOUTME: Registers the cgo SQLite driver (mattn/go-sqlite3) as DriverCGO
// ABOUTME: Pure-Go builds only get DriverModernc

//go:build cgo

package store

import (
	_ "github.com/mattn/go-sqlite3"
)
