package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sns-ingest/internal/app"
	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/config"
	applog "sns-ingest/internal/infra/log"
	"sns-ingest/internal/usecase/commands"
)

var rootCmd = &cobra.Command{
	Use:          "snsctl",
	Short:        "snsctl - ручное управление сбором контента",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <action> [arg...]",
	Short: "Выполнить команду локально и напечатать ответ",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLocal,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <action> [arg...]",
	Short: "Поставить команду в очередь сборщика",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEnqueue,
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Повторить сохранение отложенных записей",
	RunE:  runRetry,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Показать итоговые настройки конвейера",
	RunE:  runConfig,
}

var (
	sessionFlag  string
	chatFlag     int64
	pipelineFlag string
	debugFlag    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelineFlag, "pipeline", "", "путь к YAML настроек конвейера (по умолчанию PIPELINE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "подробный лог")
	runCmd.Flags().StringVarP(&sessionFlag, "session", "s", "cli", "сессия предпросмотра")
	enqueueCmd.Flags().StringVarP(&sessionFlag, "session", "s", "cli", "сессия предпросмотра")
	enqueueCmd.Flags().Int64Var(&chatFlag, "chat", 0, "чат Telegram для ответа")
	rootCmd.AddCommand(runCmd, enqueueCmd, retryCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.AppConfig, config.Pipeline, zerolog.Logger, error) {
	cfg := config.Load()
	if pipelineFlag != "" {
		cfg.PipelineConfig = pipelineFlag
	}
	pipeline, err := config.LoadPipeline(cfg.PipelineConfig)
	logger := applog.NewDebugLogger(cfg.AppEnv, debugFlag || pipeline.Debug.Enabled).Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err != nil {
		return cfg, pipeline, logger, fmt.Errorf("load pipeline: %w", err)
	}
	return cfg, pipeline, logger, nil
}

// buildCommand собирает команду из аргументов: первый — действие, остальные — аргумент.
func buildCommand(args []string) (commands.Command, error) {
	action := strings.ToLower(strings.TrimSpace(args[0]))
	if !commands.IsKnown(action) {
		return commands.Command{}, fmt.Errorf("unknown action %q, known: %s", action, strings.Join(commands.Actions, ", "))
	}
	return commands.Command{Action: action, Arg: strings.TrimSpace(strings.Join(args[1:], " "))}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runLocal(cmd *cobra.Command, args []string) error {
	command, err := buildCommand(args)
	if err != nil {
		return err
	}
	cfg, pipeline, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	application, err := app.Build(ctx, cfg, pipeline, app.Options{}, logger)
	if err != nil {
		return err
	}
	defer application.Close()
	return execute(ctx, application.Dispatcher, command, cmd.OutOrStdout())
}

func execute(ctx context.Context, executor commands.Executor, command commands.Command, out io.Writer) error {
	job := commands.NewJob(command, sessionFlag, 0, domain.SourceCLI)
	_, err := fmt.Fprintln(out, executor.Execute(ctx, job))
	return err
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	command, err := buildCommand(args)
	if err != nil {
		return err
	}
	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}
	var client *redis.Client
	if cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
	}
	var closers []func() error
	q, err := app.OpenQueue(cfg, client, &closers)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	ctx, stop := signalContext()
	defer stop()
	return enqueue(ctx, q, command, cmd.OutOrStdout())
}

func enqueue(ctx context.Context, q domain.CommandQueue, command commands.Command, out io.Writer) error {
	job := commands.NewJob(command, sessionFlag, chatFlag, domain.SourceCLI)
	if err := q.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	_, err := fmt.Fprintf(out, "queued %s (%s)\n", job.ID, job.Action)
	return err
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, pipeline, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	application, err := app.Build(ctx, cfg, pipeline, app.Options{}, logger)
	if err != nil {
		return err
	}
	defer application.Close()
	n, err := application.Collector.RetryBuffered(ctx)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "retried %d, pending %d\n", n, application.Collector.Stats().FailedWrites)
	return err
}

func runConfig(cmd *cobra.Command, args []string) error {
	_, pipeline, _, err := loadConfig()
	if err != nil {
		return err
	}
	return printPipeline(pipeline, cmd.OutOrStdout())
}

func printPipeline(p config.Pipeline, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(p)
}
