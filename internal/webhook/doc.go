// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package webhook implements the Webhook Receiver (component E): a chi
router with two routes under /webhook — GET for hub verification, POST
for Atom notification delivery — that synchronously validates and
durably enqueues each notification as a WebhookEvent for the Fan-Out
Processor to drain.
*/
package webhook
