// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the five persisted entities of the Auto Watch
// Later pipeline: User, Subscription, WebhookEvent, ProcessedVideo, and
// ApiQuotaUsage. These are plain structs with `db` tags for use with
// database/sql, not an ORM's tracked entities — joins are explicit SELECTs
// in internal/store, not implicit graph materialization.
package models
