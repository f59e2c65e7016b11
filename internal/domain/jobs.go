package domain

import (
	"context"
	"time"
)

// CommandSource описывает источник команды.
type CommandSource string

const (
	// SourceChat — команда из чата.
	SourceChat CommandSource = "chat"
	// SourceHTTP — команда из HTTP API.
	SourceHTTP CommandSource = "http"
	// SourceCLI — команда из консоли.
	SourceCLI CommandSource = "cli"
)

// CommandJob — задача на выполнение команды сборщиком.
type CommandJob struct {
	ID          string        `json:"job_id,omitempty"`
	Action      string        `json:"action"`
	Arg         string        `json:"arg,omitempty"`
	Session     string        `json:"session,omitempty"`
	ChatID      int64         `json:"chat_id,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	Source      CommandSource `json:"source"`
}

// CommandQueue описывает очередь команд.
type CommandQueue interface {
	Enqueue(ctx context.Context, job CommandJob) error
	Receive(ctx context.Context) (CommandJob, AckFunc, error)
}

// AckFunc подтверждает обработку или возвращает задачу в очередь.
type AckFunc func(success bool) error
