// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package store is the database/sql persistence layer backing spec.md §3's
five entities. It supports three interchangeable backends selected by
config.DatabaseProvider — SQLite (modernc.org/sqlite, pure Go, no cgo),
Postgres (github.com/lib/pq), and SQL Server (github.com/microsoft/go-mssqldb)
— against one identical schema (schema.go).

# Placeholder rebinding

Query text in this package is written with "?" placeholders regardless of
backend; Store.rebind translates them to each driver's native syntax
before execution. Callers never see this — every exported method already
calls through Store.exec/query/queryRow.

# Grounding

The connection-setup shape (sql.Open, pool tuning, PingContext to fail
fast) follows lamboktulus1379-go-project's infrastructure/persistence
package. The scan-helper and query-builder shapes follow the teacher's
internal/database package (detection/store.go, query_helpers.go), scaled
down from the teacher's dozens of analytics tables to this system's five.
*/
package store
