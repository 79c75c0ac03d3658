// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package logger handles logging for the routing-tables engine.
//
// This is a thin wrapper around zerolog. It brings some conventions like the
// presence of "module" and "caller" in each log event to ease filtering.
package logger

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"routingtables/common/reporter/stack"
)

// Logger is a logger instance. It is compatible with the interface from
// zerolog by design.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger.
func New(config Configuration) (Logger, error) {
	logger := log.Logger.Hook(contextHook{})
	return Logger{logger}, nil
}

type contextHook struct{}

// Run adds more context to an event, including "module" and "caller".
func (h contextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	callStack := stack.Callers()
	callStack = callStack[3:] // trial and error, covered by a test
	caller := callStack[0].SourceFile(true)
	e.Str("caller", caller)
	for _, call := range callStack {
		module := call.FunctionName()
		if !strings.HasPrefix(module, stack.ModuleName) {
			continue
		}
		module = strings.SplitN(module, ".", 2)[0]
		e.Str("module", module)
		break
	}
}
