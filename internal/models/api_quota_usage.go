// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// ApiQuotaUsage tracks the Platform API's daily quota consumption per
// service. Spec.md §3: "(date, service-name) unique... Monotonic within a
// day."
type ApiQuotaUsage struct {
	Date          time.Time `db:"usage_date"`
	ServiceName   string    `db:"service_name"`
	RequestsUsed  int64     `db:"requests_used"`
	QuotaLimit    int64     `db:"quota_limit"`
	CostUnitsUsed int64     `db:"cost_units_used"`
	CostUnitLimit int64     `db:"cost_unit_limit"`
	LastUpdated   time.Time `db:"last_updated"`
}
