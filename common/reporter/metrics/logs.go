// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package metrics

import (
	"fmt"

	"routingtables/common/reporter/logger"
)

// promHTTPLogger adapts logger.Logger to be used as a promhttp.Logger.
type promHTTPLogger struct {
	l logger.Logger
}

// Println outputs a message at debug level.
func (m promHTTPLogger) Println(v ...interface{}) {
	if e := m.l.Debug(); e.Enabled() {
		e.Msg(fmt.Sprint(v...))
	}
}
