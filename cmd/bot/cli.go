package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/mimic-bot/internal/chatconfig"
	"github.com/xaenox/mimic-bot/internal/memory"
	"github.com/xaenox/mimic-bot/internal/models"
	"github.com/xaenox/mimic-bot/internal/style"
	"github.com/xaenox/mimic-bot/pkg/config"
	"go.uber.org/zap"
)

func buildRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mimic-bot",
		Short: "Auto-reply bot that answers chats in your own writing style",
		Long: strings.TrimSpace(`mimic-bot learns how you write from your own messages and answers
authorized conversations for you, grouping bursts of messages into a
single reply.

Running without a subcommand starts the bot.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(configPath)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newStatusCommand(&configPath))
	root.AddCommand(newRelearnCommand(&configPath))
	root.AddCommand(newAuthorizeCommand(&configPath))
	root.AddCommand(newDeauthorizeCommand(&configPath))

	return root
}

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Connect to the chat network and start answering",
		Example: "  mimic-bot run --config config.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(*configPath)
		},
	}
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored message counts, the learned style and authorized chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOffline(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			stats, err := a.memory.GetStatistics(ctx)
			if err != nil {
				return err
			}
			profile, err := a.memory.GetStyleProfile(ctx)
			if err != nil {
				return err
			}
			snapshot := a.chats.Snapshot()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Messages:       %d\n", stats.TotalMessages)
			fmt.Fprintf(out, "Conversations:  %d\n", stats.UniqueChats)
			fmt.Fprintf(out, "Own messages:   %d\n", stats.OwnMessages)
			fmt.Fprintf(out, "Tone:           %s\n", profile.Tone)
			fmt.Fprintf(out, "Formality:      %.2f\n", profile.Formality)
			fmt.Fprintf(out, "Last learned:   %s\n", profile.UpdatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Enabled:        %t\n", snapshot.Enabled)
			fmt.Fprintf(out, "Chats:          %s\n", strings.Join(snapshot.AuthorizedChats, ", "))
			fmt.Fprintf(out, "Groups:         %s\n", strings.Join(snapshot.AuthorizedGroups, ", "))
			fmt.Fprintf(out, "Blacklist:      %s\n", strings.Join(snapshot.Blacklist, ", "))
			return nil
		},
	}
}

func newRelearnCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "relearn",
		Short: "Re-analyse your writing style from stored messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOffline(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			profile, err := a.analyzer.Analyze(cmd.Context())
			if errors.Is(err, style.ErrInsufficientData) {
				return fmt.Errorf("need at least %d own messages to learn a style", style.MinMessages)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Style updated from %d messages: tone %s, formality %.2f\n",
				profile.TotalAnalyzed, profile.Tone, profile.Formality)
			return nil
		},
	}
}

func newAuthorizeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <chat-id>",
		Short: "Allow the bot to answer in a chat",
		Long: strings.TrimSpace(`Allow the bot to answer in a chat. Ids ending in @g.us are groups,
everything else is a one-to-one chat.`),
		Example: "  mimic-bot authorize 5511999@c.us\n  mimic-bot authorize -100123@g.us",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := loadChats(*configPath)
			if err != nil {
				return err
			}
			changed, err := chats.Authorize(args[0], models.IsGroup(args[0]))
			if err != nil {
				return err
			}
			printChange(cmd, changed, args[0]+" authorized", args[0]+" was already authorized")
			return nil
		},
	}
}

func newDeauthorizeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deauthorize <chat-id>",
		Short: "Stop the bot from answering in a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := loadChats(*configPath)
			if err != nil {
				return err
			}
			changed, err := chats.Deauthorize(args[0])
			if err != nil {
				return err
			}
			printChange(cmd, changed, args[0]+" deauthorized", args[0]+" was not authorized")
			return nil
		},
	}
}

func printChange(cmd *cobra.Command, changed bool, done, noop string) {
	if changed {
		fmt.Fprintln(cmd.OutOrStdout(), done)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), noop)
}

func loadChats(configPath string) (*chatconfig.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return chatconfig.Load(cfg.Bot.ChatsConfigPath, zap.NewNop())
}

// offline is the storage side of the bot, for commands that do not connect
// to a chat network.
type offline struct {
	memory   *memory.ConversationMemory
	analyzer *style.Analyzer
	chats    *chatconfig.Store
	close    func()
}

func openOffline(configPath string) (*offline, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	chats, err := chatconfig.Load(cfg.Bot.ChatsConfigPath, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &offline{
		memory:   memory.New(store, logger),
		analyzer: style.NewAnalyzer(store, store, logger),
		chats:    chats,
		close: func() {
			store.Close()
			_ = logger.Sync()
		},
	}, nil
}

func runBot(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err), zap.String("path", configPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutting down")
	return nil
}
