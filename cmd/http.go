// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"fmt"

	"routingtables/common/httpserver"
	"routingtables/common/reporter"
)

// addCommonHTTPHandlers configures the endpoints common to every
// routing-tables command, under both `/api/v0` and
// `/api/v0/SERVICE` namespaces.
func addCommonHTTPHandlers(r *reporter.Reporter, service string, httpComponent *httpserver.Component) {
	httpComponent.AddHandler(fmt.Sprintf("/api/v0/%s/metrics", service), r.MetricsHTTPHandler())
	httpComponent.AddHandler("/api/v0/metrics", r.MetricsHTTPHandler())
	httpComponent.AddHandler(fmt.Sprintf("/api/v0/%s/healthcheck", service), r.HealthcheckHTTPHandler())
	httpComponent.AddHandler("/api/v0/healthcheck", r.HealthcheckHTTPHandler())
	httpComponent.AddHandler(fmt.Sprintf("/api/v0/%s/version", service), versionHandler())
	httpComponent.AddHandler("/api/v0/version", versionHandler())
}
