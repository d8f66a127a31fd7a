/*
 * Copyright (c) 2013-2019, Jeremy Bingham (<jeremy@goiardi.gl>)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package engine

import (
	"time"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/gerror"
	"github.com/raintank/met"
	"github.com/tideland/golib/logger"
)

var decisionTimings met.Timer
var allowCount met.Count
var denyCount met.Count
var unavailableCount met.Count

// InitializeMetrics sets up the statsd instruments for decision tracking.
func InitializeMetrics(metricsBackend met.Backend) {
	decisionTimings = metricsBackend.NewTimer("decision.eval", 0)
	allowCount = metricsBackend.NewCount("decision.allow")
	denyCount = metricsBackend.NewCount("decision.deny")
	unavailableCount = metricsBackend.NewCount("decision.svc_unavailable")
}

func trackDecision(start time.Time, d *Decision) {
	if !config.Config.UseStatsd {
		return
	}
	elapsed := time.Since(start)
	decisionTimings.Value(elapsed)
	if d.Permitted() {
		allowCount.Inc(1)
	} else {
		denyCount.Inc(1)
		if d.Kind == gerror.KindServiceUnavailable {
			unavailableCount.Inc(1)
		}
	}
	logger.Debugf("decision %s took %d microseconds", d.Outcome, elapsed/time.Microsecond)
}
