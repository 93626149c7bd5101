// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import "time"

// metricsRecorder collects the labels of one execution and records them once.
type metricsRecorder struct {
	start   time.Time
	command string
	source  string
	status  string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{start: time.Now()}
}

// record writes the metrics once a command name is known. Unknown commands
// share the "unknown" label.
func (m *metricsRecorder) record() {
	if m.command == "" {
		return
	}
	RecordCommandExecution(m.command, m.source, m.status)
	if m.status == StatusSuccess || m.status == StatusNotHandled {
		RecordCommandDuration(m.command, m.source, time.Since(m.start))
	}
}
