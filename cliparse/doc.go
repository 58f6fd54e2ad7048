// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are layered: a .env file in the working directory (if present) seeds
the environment, the environment fills Config, and flags override both.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: sqlite path or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - AdminKeySalt: Secret for admin key HMAC (required)
  - PollSlugSalt: Secret for share slug generation (required)
  - ShareBaseURL: Prefix for share links returned on publish
  - LogLevel, LogFormat: slog handler settings

# CLI Flags

	-p, --port           Server port
	-d, --database-url   Database URL
	-t, --database-type  sqlite or postgres
	--share-base-url     Share link prefix
	--admin-salt         Admin key salt
	--slug-salt          Poll slug salt
	--log-level          debug, info, warn, error
	--log-format         text or json

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, SHARE_BASE_URL,
	ADMIN_KEY_SALT, POLL_SLUG_SALT, LOG_LEVEL, LOG_FORMAT

# Validation

ParseFlags returns an error if DATABASE_URL, ADMIN_KEY_SALT or
POLL_SLUG_SALT is missing, or if the database type is unknown.
*/
package cliparse
