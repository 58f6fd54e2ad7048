// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates its schema.

# Connecting

Open picks the driver from the configured type and pings the server:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

SQLite (modernc.org/sqlite) is the default and needs no server; foreign
keys, WAL and a busy timeout are enabled through DSN pragmas. PostgreSQL
uses github.com/lib/pq. Queries use $N placeholders, which both accept.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: Poll metadata, seats, seed and lifecycle state
  - option: Options numbered 0..N-1 per poll
  - username_claim: Maps usernames to voter tokens and voter ids
  - ballot: One ballot per voter per poll
  - preference: Ranked option choices per ballot
  - result_snapshot: Immutable tabulation results

# Relationships

	poll 1──* option
	poll 1──* username_claim
	poll 1──* ballot
	ballot 1──* preference
	poll 1──* result_snapshot

All foreign keys use ON DELETE CASCADE.

# Errors

IsUniqueViolation recognizes duplicate-key errors from either driver.
*/
package db
