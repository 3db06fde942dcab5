// Package main provides the Intersectx chat client entry point: an
// interactive terminal front end for the venture-discovery chat platform.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"intersectx/internal/api"
	"intersectx/internal/auth"
	"intersectx/internal/config"
	"intersectx/internal/logger"
	"intersectx/internal/render"
	"intersectx/internal/session"
	"intersectx/internal/version"
	"intersectx/pkg/chattypes"
)

var (
	logLevel string
	logFile  string
	testMode bool
	baseURL  string
	noStream bool
)

// rootCmd starts the interactive chat loop by default.
var rootCmd = &cobra.Command{
	Use:   "ixchat",
	Short: "Intersectx chat - terminal client for the Intersectx platform",
	Long: `ixchat is a terminal client for the Intersectx venture-discovery chat
platform. It manages conversation threads against the remote thread API and
streams assistant replies into the terminal.`,
	Run: runChat,
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.Get().String())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Thread API base URL (overrides configuration)")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "Wait for complete replies instead of streaming")

	for _, flag := range []string{"log-level", "log-file", "test-mode", "base-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runChat(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	creds := auth.FromEnv()
	if cfg.UserEmail != "" && creds.CurrentUser() == nil {
		creds.Login(os.Getenv("INTERSECTX_API_TOKEN"), &chattypes.User{Email: cfg.UserEmail, FirstName: cfg.UserName})
	}

	client := api.NewClient(cfg.BaseURL, cfg.Company, cfg.RequestTimeout, creds)
	manager := session.NewManager(client, creds, session.Options{
		LoadDebounce:   cfg.ThreadLoadDebounce,
		CreateDebounce: cfg.ThreadCreateDebounce,
		TestMode:       testMode,
		OnStreamChunk: func(chunk chattypes.StreamChunk) {
			fmt.Print(chunk.Content)
		},
	})

	markdown, err := render.NewMarkdown()
	if err != nil {
		logger.Fatal("Failed to initialize markdown renderer", "error", err)
	}

	ctx := context.Background()
	logger.Info("Starting ixchat", "version", version.Get().Version, "base_url", cfg.BaseURL)

	threads := manager.ListThreads(ctx)
	fmt.Printf("ixchat v%s - %d thread(s) available\n", version.Get().Version, len(threads))
	fmt.Println("Type a message to chat, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, manager, line); quit {
				break
			}
			continue
		}

		if noStream {
			manager.SendMessage(ctx, line)
			printLastReply(manager, markdown)
		} else {
			manager.SendMessageStreaming(ctx, line)
			fmt.Println()
		}
		if err := manager.LastError(); err != nil {
			logger.Warn("Last operation recorded an error", "error", err)
		}
	}
}

// runCommand handles a slash command. It returns true when the loop
// should exit.
func runCommand(ctx context.Context, manager *session.Manager, line string) bool {
	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	switch command {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`Commands:
  /threads          list conversation threads
  /refresh          refetch the thread list
  /new              start a new thread
  /switch <id>      switch to a thread
  /delete <id>      delete a thread
  /clear            leave the current thread
  /stop             stop the in-flight reply
  /upload <path>... attach files to the current thread
  /quit             exit`)

	case "/threads":
		printThreads(manager.Threads())

	case "/refresh":
		manager.InvalidateThreads()
		printThreads(manager.ListThreads(ctx))

	case "/new":
		threadID, err := manager.CreateThread(ctx)
		if err != nil {
			// Degrade gracefully: navigate to a local thread that the
			// backend will report as not-found and treat as empty.
			threadID = uuid.New().String()
			logger.Warn("Thread creation failed, using local thread", "thread", threadID, "error", err)
			_ = manager.SwitchThread(ctx, threadID)
		}
		if threadID == "" {
			fmt.Println("thread creation debounced, try again shortly")
			return false
		}
		fmt.Printf("now chatting in thread %s\n", chattypes.ThreadTitle(threadID))

	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <thread-id>")
			return false
		}
		if err := manager.SwitchThread(ctx, args[0]); err != nil {
			fmt.Printf("failed to load thread: %v\n", err)
			return false
		}
		fmt.Printf("switched to %s (%d message(s))\n", chattypes.ThreadTitle(args[0]), len(manager.Messages()))

	case "/delete":
		if len(args) != 1 {
			fmt.Println("usage: /delete <thread-id>")
			return false
		}
		if manager.DeleteThread(ctx, args[0]) {
			fmt.Println("thread deleted")
		} else {
			fmt.Println("thread deletion failed")
		}

	case "/clear":
		manager.ClearActiveThread()
		fmt.Println("left the current thread")

	case "/stop":
		manager.Stop()

	case "/upload":
		if len(args) == 0 {
			fmt.Println("usage: /upload <path>...")
			return false
		}
		uploadFiles(ctx, manager, args)

	default:
		fmt.Printf("unknown command %s, try /help\n", command)
	}

	return false
}

func uploadFiles(ctx context.Context, manager *session.Manager, paths []string) {
	files := make([]chattypes.FileUpload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("cannot read %s: %v\n", path, err)
			continue
		}
		files = append(files, chattypes.FileUpload{
			Name: filepath.Base(path),
			Data: data,
		})
	}
	if len(files) == 0 {
		return
	}

	attachments := manager.UploadAttachments(ctx, files)
	for _, att := range attachments {
		fmt.Printf("attached %s (%s)\n", att.Name, att.ID)
	}
}

func printThreads(threads []chattypes.Thread) {
	if len(threads) == 0 {
		fmt.Println("no threads yet, type a message to start one")
		return
	}
	for _, thread := range threads {
		line := fmt.Sprintf("%s  %s  %d message(s)", thread.ID, thread.Title, thread.MessageCount)
		if thread.LastMessage != nil {
			line += "  " + thread.LastMessage.Content
		}
		fmt.Println(line)
	}
}

func printLastReply(manager *session.Manager, markdown *render.Markdown) {
	messages := manager.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != chattypes.RoleAI {
			continue
		}
		rendered, err := markdown.Render(messages[i].Content)
		if err != nil {
			fmt.Println(messages[i].Content)
			return
		}
		fmt.Print(rendered)
		return
	}
}
