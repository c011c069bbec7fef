package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"basilisk-llm/conversation"
	"basilisk-llm/db"
	"basilisk-llm/export"
	"basilisk-llm/llm"
	"basilisk-llm/provider"
	"basilisk-llm/utils"
)

var (
	version = "0.1.0"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: basilisk-llm [flags] <command> [args]

Commands:
  list [search]             List conversations, optionally filtered
  chat <provider> <prompt>  Send a prompt and save the exchange
  export <id> [path]        Export a conversation to JSON or Markdown (by extension)
  archive <id> <path>       Save a conversation as a portable archive
  import <path>             Import a conversation archive into the database
  stats                     Show database statistics
  cleanup                   Remove orphan attachments and system prompts
  vacuum                    Compact the database file

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("basilisk-llm v%s\n", version)
		os.Exit(0)
	}

	logger, err := utils.NewLogger(utils.GetLogPath())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	defer utils.RecoverFromPanic(logger, "main")

	logger.Info("Starting basilisk-llm v%s", version)

	// Load or create default configuration
	var config *utils.Config
	actualConfigPath := *configPath
	if actualConfigPath == "" {
		actualConfigPath, err = utils.EnsureDefaultConfig()
		if err != nil {
			logger.Error("Failed to create default config: %v", err)
			os.Exit(1)
		}
	}
	config, err = utils.LoadConfig(actualConfigPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	logger.Info("Using config file: %s", actualConfigPath)

	database, err := db.New(config.Data.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized: %s", config.Data.DBPath)

	if err := runCommand(database, config, flag.Args()); err != nil {
		logger.Error("Command failed: %v", err)
		os.Exit(1)
	}
}

func runCommand(database *db.DB, config *utils.Config, args []string) error {
	command := "list"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "list":
		search := ""
		if len(args) > 0 {
			search = args[0]
		}
		return listConversations(database, search)
	case "chat":
		if len(args) < 2 {
			return fmt.Errorf("chat requires a provider id and a prompt")
		}
		return chat(database, config, args[0], strings.Join(args[1:], " "))
	case "export":
		if len(args) < 1 {
			return fmt.Errorf("export requires a conversation id")
		}
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return exportConversation(database, args[0], path)
	case "archive":
		if len(args) < 2 {
			return fmt.Errorf("archive requires a conversation id and output path")
		}
		return archiveConversation(database, args[0], args[1])
	case "import":
		if len(args) < 1 {
			return fmt.Errorf("import requires an archive path")
		}
		return importConversation(database, args[0])
	case "stats":
		return showStats(database)
	case "cleanup":
		return cleanup(database)
	case "vacuum":
		return database.Vacuum()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func listConversations(database *db.DB, search string) error {
	summaries, err := database.ListConversations(search, 100, 0)
	if err != nil {
		return err
	}
	total, err := database.CountConversations(search)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		title := "(untitled)"
		if s.Title != nil && *s.Title != "" {
			title = *s.Title
		}
		fmt.Printf("%6d  %-50s  %3d blocks  %s\n",
			s.ID, title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d conversation(s)\n", total)
	return nil
}

func chat(database *db.DB, config *utils.Config, providerID, prompt string) error {
	p, err := provider.Get(providerID)
	if err != nil {
		return err
	}

	engineConfig := llm.Config{APIKey: os.Getenv(p.EnvVarNameAPIKey)}
	if pc, ok := config.LLMProviders[providerID]; ok {
		if pc.APIKey != "" {
			engineConfig.APIKey = pc.APIKey
		}
		engineConfig.BaseURL = pc.BaseURL
		engineConfig.Model = pc.DefaultModel
	}
	if engineConfig.Model == "" {
		return fmt.Errorf("no default model configured for provider %q", providerID)
	}

	engine, err := llm.NewEngine(p, engineConfig)
	if err != nil {
		return err
	}
	if p.RequireAPIKey {
		if err := engine.ValidateConfig(); err != nil {
			return fmt.Errorf("provider %q: %w", providerID, err)
		}
	}

	conv := conversation.New()
	block := conversation.NewMessageBlock(&conversation.Message{
		Role:    conversation.RoleUser,
		Content: prompt,
	}, provider.AIModelInfo{ProviderID: p.ID, ModelID: engineConfig.Model})
	conv.AddBlock(block, nil)

	ctx := context.Background()
	stream, err := engine.StreamChat(ctx, llm.FromConversation(conv))
	if err != nil {
		return err
	}

	var response strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return chunk.Error
		}
		fmt.Print(chunk.Content)
		response.WriteString(chunk.Content)
	}
	fmt.Println()

	block.Response = &conversation.Message{
		Role:    conversation.RoleAssistant,
		Content: response.String(),
	}
	convID, err := database.SaveConversation(conv)
	if err != nil {
		return err
	}

	if title, err := engine.GenerateTitle(ctx, llm.FromConversation(conv)); err == nil {
		if err := database.UpdateConversationTitle(convID, &title); err != nil {
			return err
		}
	}

	fmt.Printf("Saved conversation %d\n", convID)
	return nil
}

func exportConversation(database *db.DB, idArg, path string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", idArg)
	}
	conv, err := database.LoadConversation(id)
	if err != nil {
		return err
	}

	if path == "" {
		dir, err := export.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve export directory: %w", err)
		}
		title := ""
		if conv.Title != nil {
			title = *conv.Title
		}
		path = filepath.Join(dir, export.Filename(title, export.FormatJSON))
	}

	if strings.HasSuffix(path, ".md") {
		err = export.ToMarkdown(conv, path)
	} else {
		err = export.ToJSON(conv, path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

func archiveConversation(database *db.DB, idArg, path string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", idArg)
	}
	conv, err := database.LoadConversation(id)
	if err != nil {
		return err
	}
	if err := conversation.SaveFile(conv, path); err != nil {
		return err
	}
	fmt.Printf("Archived to %s\n", path)
	return nil
}

func importConversation(database *db.DB, path string) error {
	conv, err := conversation.OpenFile(path)
	if err != nil {
		return err
	}
	convID, err := database.SaveConversation(conv)
	if err != nil {
		return err
	}
	fmt.Printf("Imported conversation %d\n", convID)
	return nil
}

func showStats(database *db.DB) error {
	stats, err := database.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("Conversations:  %d\n", stats.Conversations)
	fmt.Printf("Message blocks: %d\n", stats.MessageBlocks)
	fmt.Printf("Messages:       %d\n", stats.Messages)
	fmt.Printf("System prompts: %d\n", stats.SystemPrompts)
	fmt.Printf("Attachments:    %d\n", stats.Attachments)
	fmt.Printf("File size:      %s\n", utils.FormatFileSize(stats.SizeBytes))
	return nil
}

func cleanup(database *db.DB) error {
	attachments, err := database.CleanupOrphanAttachments()
	if err != nil {
		return err
	}
	prompts, err := database.CleanupOrphanSystemPrompts()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d orphan attachment(s), %d orphan system prompt(s)\n", attachments, prompts)
	return nil
}
