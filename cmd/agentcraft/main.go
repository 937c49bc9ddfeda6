// Command agentcraft is an interactive chat CLI over the agent framework.
// It wires a model provider (openai, anthropic or mock), a session backend
// (memory, sqlite or redis) and a single model agent, then runs a REPL where
// every line becomes a user turn in the same session.
//
// Configuration follows cobra + viper conventions: flags, AGENTCRAFT_*
// environment variables and an optional config file.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentcraft-ai/agentcraft/agent"
	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/logging"
	"github.com/agentcraft-ai/agentcraft/model"
	anthropicmodel "github.com/agentcraft-ai/agentcraft/model/anthropic"
	openaimodel "github.com/agentcraft-ai/agentcraft/model/openai"
	"github.com/agentcraft-ai/agentcraft/runner"
	"github.com/agentcraft-ai/agentcraft/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentcraft",
		Short: "Chat with a model agent from the terminal",
		Long: "agentcraft starts an interactive chat session backed by a configurable\n" +
			"model provider and session store. Type a message per line; 'exit' quits.",
		SilenceUsage: true,
		RunE:         runChat,
	}

	flags := cmd.Flags()
	flags.String("provider", "mock", "model provider: openai, anthropic or mock")
	flags.String("model", "", "provider model name override")
	flags.String("instruction", "You are a helpful assistant.", "system instruction for the agent")
	flags.Bool("stream", true, "stream partial responses")
	flags.String("session-backend", "memory", "session store: memory, sqlite or redis")
	flags.String("sqlite-path", "agentcraft.db", "database file for the sqlite backend")
	flags.String("redis-addr", "localhost:6379", "address for the redis backend")
	flags.String("app", "agentcraft-cli", "application name scoping sessions")
	flags.String("user", "local", "user id")
	flags.String("session", "default", "session id")
	flags.Int("max-model-calls", 25, "model call budget per turn, 0 for unlimited")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text, json or console")

	viper.SetEnvPrefix("AGENTCRAFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	logger := newLogger(viper.GetString("log-level"), viper.GetString("log-format"))

	llm, err := newModel(viper.GetString("provider"), viper.GetString("model"))
	if err != nil {
		return err
	}

	store, cleanup, err := newSessionStore(viper.GetString("session-backend"))
	if err != nil {
		return err
	}
	defer cleanup()

	chat := agent.NewModelAgent("Assistant", llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(viper.GetString("instruction"))
		o.EnableStreaming = viper.GetBool("stream")
	})

	r, err := runner.NewRunner(viper.GetString("app"), chat,
		runner.WithSessionStore(store),
		runner.WithLogger(logger),
		runner.WithMaxModelCalls(viper.GetInt("max-model-calls")),
	)
	if err != nil {
		return err
	}

	userID := viper.GetString("user")
	sessionID := viper.GetString("session")
	fmt.Printf("agentcraft chat (provider=%s, backend=%s, session=%s/%s)\n",
		viper.GetString("provider"), viper.GetString("session-backend"), userID, sessionID)
	fmt.Println("Type your message, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := runTurn(cmd, r, userID, sessionID, line); err != nil {
			fmt.Fprintln(os.Stderr, "turn failed:", err)
		}
	}
}

// runTurn executes one user turn, printing partial chunks as they stream and
// the final text otherwise.
func runTurn(cmd *cobra.Command, r *runner.Runner, userID, sessionID, line string) error {
	_, events, errCh, err := r.Run(cmd.Context(), userID, sessionID, core.NewUserText(line))
	if err != nil {
		return err
	}

	fmt.Print("assistant> ")
	streamed := false
	for ev := range events {
		switch {
		case ev.IsPartial():
			fmt.Print(ev.Text())
			streamed = true
		case ev.IsFinalResponse() && ev.Text() != "" && !streamed:
			fmt.Print(ev.Text())
		case len(ev.GetFunctionCalls()) > 0:
			for _, fc := range ev.GetFunctionCalls() {
				fmt.Printf("[calling %s] ", fc.Name)
			}
		}
	}
	fmt.Println()
	return <-errCh
}

func newModel(provider, name string) (model.Model, error) {
	switch provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if name != "" {
				o.Model = name
			}
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if name != "" {
				o.Model = anthropic.Model(name)
			}
		}), nil
	case "mock":
		return model.NewMockModel("cli", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, anthropic or mock)", provider)
	}
}

func newSessionStore(backend string) (core.SessionStore, func(), error) {
	switch backend {
	case "memory":
		return session.NewInMemoryStore(), func() {}, nil
	case "sqlite":
		store, err := session.NewSQLiteStore(viper.GetString("sqlite-path"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "redis":
		store, err := session.NewRedisStoreFromAddr(viper.GetString("redis-addr"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q (want memory, sqlite or redis)", backend)
	}
}

func newLogger(level, format string) logging.Logger {
	lvl := logging.LevelWarn
	switch level {
	case "debug":
		lvl = logging.LevelDebug
	case "info":
		lvl = logging.LevelInfo
	case "error":
		lvl = logging.LevelError
	}
	switch format {
	case "json":
		return logging.NewZerologLogger(lvl, false, os.Stderr)
	case "console":
		return logging.NewZerologLogger(lvl, true, os.Stderr)
	default:
		return logging.NewSlogLogger(lvl, format, os.Stderr)
	}
}
