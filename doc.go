// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ranked-pick API server.

ranked-pick is a group polling service where voters rank options and one or
more winners are chosen by ranked-choice counting against a Droop quota.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=ranked-pick.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file path or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC
  - POLL_SLUG_SALT (--slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - SHARE_BASE_URL (--share-base-url): Prefix for share links
  - LOG_LEVEL, LOG_FORMAT (--log-level, --log-format): slog settings

# Architecture

The server uses a handler-based architecture with dependency injection:

  - voting: Tabulation engine (quota, popularity, seeded counting)
  - validate: Poll and ballot validation
  - snapshot: Inputs hash and stored result payloads
  - handlers: HTTP request handlers (polls, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Driver setup and schema creation
  - cliparse: Configuration parsing
  - fixture: YAML poll fixtures for cmd/rcv-tally

See package documentation for each component.
*/
package main
