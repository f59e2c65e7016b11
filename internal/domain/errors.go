package domain

import "errors"

var (
	// ErrAlreadyRunning возвращается, если сбор уже выполняется.
	ErrAlreadyRunning = errors.New("collection already running")
	// ErrProviderDisabled возвращается для отключённого провайдера.
	ErrProviderDisabled = errors.New("provider disabled")
	// ErrToolNotFound — инструмент отсутствует в мосте провайдера.
	ErrToolNotFound = errors.New("bridge tool not found")
	// ErrNoModel — нет подходящей модели генерации текста.
	ErrNoModel = errors.New("no text model configured")
)
