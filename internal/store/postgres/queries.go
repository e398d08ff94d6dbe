// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package postgres

// Statements take the sanitized table identifier as their only format verb.
const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	id   INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	uuid VARCHAR(36) NOT NULL UNIQUE,
	data JSON NOT NULL
)`

	existsSQL = `SELECT EXISTS (SELECT 1 FROM %s WHERE uuid = $1)`

	insertSQL = `INSERT INTO %s (uuid, data) VALUES ($1, $2) ON CONFLICT (uuid) DO NOTHING`

	updateSQL = `UPDATE %s SET data = $1 WHERE uuid = $2`

	deleteSQL = `DELETE FROM %s WHERE uuid = $1`

	selectSQL = `SELECT data FROM %s WHERE uuid = $1`

	// saveBatchSQL upserts parallel arrays of uuids and data in one statement.
	saveBatchSQL = `INSERT INTO %s (uuid, data)
SELECT b.uuid, b.data::json FROM unnest($1::text[], $2::text[]) AS b(uuid, data)
ON CONFLICT (uuid) DO UPDATE SET data = EXCLUDED.data`
)
