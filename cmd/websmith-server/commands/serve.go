package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/websmith-ai/websmith/internal/agent"
	"github.com/websmith-ai/websmith/internal/auth"
	"github.com/websmith-ai/websmith/internal/config"
	"github.com/websmith-ai/websmith/internal/event"
	"github.com/websmith-ai/websmith/internal/logging"
	"github.com/websmith-ai/websmith/internal/prompt"
	"github.com/websmith-ai/websmith/internal/provider"
	"github.com/websmith-ai/websmith/internal/sandbox"
	"github.com/websmith-ai/websmith/internal/server"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/internal/tool"
)

var (
	servePort   int
	servePretty bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the websmith HTTP server",
	Long: `Start the websmith server: the agent loop, the sandbox file API,
and the SSE progress stream.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&servePretty, "pretty-logs", false, "Human-readable log output")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(level),
		Pretty: servePretty,
	})

	logging.Info().Str("version", Version).Msg("starting websmith server")

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	sb := sandbox.New(cfg.SandboxBaseDir, cfg.MaxFileSize(), cfg.MaxSandboxSize())

	hub := event.NewHub(cfg.EventQueueCapacity)
	defer hub.Close()

	// The provider needs an API key, so the whole loop stack is only
	// built when the agent loop is on. Handlers skip a nil loop.
	var loop *agent.Loop
	if cfg.EnableAgentLoop {
		registry := tool.NewRegistry()
		registry.Register(tool.NewListTool(sb))
		registry.Register(tool.NewReadTool(sb))
		registry.Register(tool.NewWriteTool(sb))
		registry.Register(tool.NewBashTool(sb, cfg.ToolTimeout()))
		registry.Register(tool.NewCheckTool(sb.Dir))
		registry.Register(tool.NewTodoWriteTool(st))

		assembler := prompt.New(st, sb, prompt.Config{
			MaxHistory:        cfg.MaxHistoryMessages,
			EnableTruncation:  cfg.EnableMessageTruncation,
			MaxUserInput:      cfg.MaxUserInputLength,
			TruncationWarning: cfg.TruncationWarningMessage,
		})

		model := cfg.DeepSeekModel
		if cfg.EnableStreamingReasoning {
			model = cfg.DeepSeekReasonerModel
		}
		client, err := provider.NewDeepSeek(cmd.Context(), provider.DeepSeekConfig{
			APIKey:          cfg.DeepSeekAPIKey,
			BaseURL:         cfg.DeepSeekBaseURL,
			Model:           model,
			EnableReasoning: cfg.EnableStreamingReasoning,
		})
		if err != nil {
			return err
		}

		loop = agent.New(st, registry, assembler, client, hub, agent.Config{
			MaxIterations: cfg.MaxIterations,
			ToolTimeout:   cfg.ToolTimeout(),
		})
	} else {
		logging.Warn().Msg("agent loop disabled, messages will not be processed")
	}

	tokens := auth.New(cfg.SecretKey, cfg.TokenTTL())

	serverCfg := server.DefaultConfig()
	serverCfg.Port = cfg.Port
	srv := server.New(serverCfg, cfg, st, sb, hub, loop, tokens)

	go func() {
		logging.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
