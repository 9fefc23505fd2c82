// Package services hosts the engine's component services and shared
// service plumbing.
package services

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger tags every event with the owning service's ID.
type ServiceLogger struct {
	logger zerolog.Logger
}

func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{
		logger: log.With().Str("service", svc.ID()).Logger(),
	}
}

// NewComponentLogger is the non-DI variant for helpers that are not
// container instances (candidate sources, provider clients).
func NewComponentLogger(component string) *ServiceLogger {
	return &ServiceLogger{
		logger: log.With().Str("component", component).Logger(),
	}
}

// WithRequest returns a child logger carrying the request correlation ID.
func (l *ServiceLogger) WithRequest(requestID string) *ServiceLogger {
	return &ServiceLogger{logger: l.logger.With().Str("request_id", requestID).Logger()}
}

func (l *ServiceLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ServiceLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ServiceLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *ServiceLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}
