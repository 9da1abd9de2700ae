// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package supervisor wires AutoWL's background loops and HTTP surface into a
suture v4 tree so a panic or persistent error in one loop restarts just
that loop, per spec.md §5's independent-component model, rather than
taking down the process.

# Layout

	root
	├── background-loops   (Token Refresh, WebSub Manager, Fallback Poller, Fan-Out Processor)
	└── http-surface       (webhook receiver + diagnostics server)

Use TickerService to adapt a periodic function into a suture.Service, and
HTTPService to adapt an *http.Server.
*/
package supervisor
