// Package main provides a command-line interface for administering the
// credential pool: adding, removing and resetting keys, inspecting status,
// and a one-shot ping through the scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/longsihua2026/promptulate"
	"github.com/longsihua2026/promptulate/client"
)

type cmdFlags struct {
	configPath string
	secret     string
	model      string
	baseURL    string
	debugLevel string
	timeout    time.Duration
}

func main() {
	flags := &cmdFlags{}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&flags.configPath, "config", "", "Path to YAML config (endpoint, model, seed keys)")
	fs.StringVar(&flags.secret, "secret", "", "Credential secret (add, remove, reset)")
	fs.StringVar(&flags.model, "model", "", "Model identifier")
	fs.StringVar(&flags.baseURL, "base-url", "", "OpenAI-compatible endpoint base URL")
	fs.StringVar(&flags.debugLevel, "debug-level", "warn", "Debug level (debug, info, warn, error)")
	fs.DurationVar(&flags.timeout, "timeout", time.Minute, "Ping timeout")

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]
	if err := fs.Parse(os.Args[2:]); err != nil {
		exitWithError("Error parsing flags: %v\n", err)
	}

	sched, err := promptulate.New(promptulate.SetLogLevel(getLogLevel(flags.debugLevel)))
	if err != nil {
		exitWithError("Error creating scheduler: %v\n", err)
	}
	defer sched.Close()

	var fileCfg *fileConfig
	if flags.configPath != "" {
		if fileCfg, err = loadFileConfig(flags.configPath); err != nil {
			exitWithError("Error loading config: %v\n", err)
		}
		seedFromConfig(sched, fileCfg)
	}

	switch command {
	case "add":
		runAdd(sched, flags)
	case "remove":
		runRemove(sched, flags)
	case "reset":
		runReset(sched, flags)
	case "status":
		runStatus(sched)
	case "schema":
		runSchema()
	case "ping":
		runPing(sched, flags, fileCfg, strings.Join(fs.Args(), " "))
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <add|remove|reset|status|schema|ping> [flags]\n", os.Args[0])
	os.Exit(1)
}

func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

// seedFromConfig adds config-file keys that are not already pooled.
func seedFromConfig(sched promptulate.Scheduler, cfg *fileConfig) {
	for _, k := range cfg.Keys {
		if err := sched.AddCredential(k.Secret, k.Model); err != nil && !promptulate.IsDuplicate(err) {
			exitWithError("Error seeding credential: %v\n", err)
		}
	}
}

func runAdd(sched promptulate.Scheduler, flags *cmdFlags) {
	if flags.secret == "" {
		exitWithError("add requires -secret\n")
	}
	if err := sched.AddCredential(flags.secret, flags.model); err != nil {
		exitWithError("Error adding credential: %v\n", err)
	}
	fmt.Println("Credential added.")
}

func runRemove(sched promptulate.Scheduler, flags *cmdFlags) {
	if flags.secret == "" {
		exitWithError("remove requires -secret\n")
	}
	if err := sched.RemoveCredential(flags.secret); err != nil {
		exitWithError("Error removing credential: %v\n", err)
	}
	fmt.Println("Credential removed.")
}

func runReset(sched promptulate.Scheduler, flags *cmdFlags) {
	if flags.secret == "" {
		exitWithError("reset requires -secret\n")
	}
	if err := sched.ResetCredential(flags.secret); err != nil {
		exitWithError("Error resetting credential: %v\n", err)
	}
	fmt.Println("Credential reset.")
}

func runStatus(sched promptulate.Scheduler) {
	statuses := sched.ListStatus()
	if len(statuses) == 0 {
		fmt.Println("Pool is empty.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SECRET\tMODEL\tLAST USED\tCOOLDOWN UNTIL\tFAILURES\tDISABLED")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\n",
			s.Secret, orDash(s.Model), formatTime(s.LastUsedAt), formatTime(s.CooldownUntil), s.Failures, s.Disabled)
	}
	w.Flush()
}

func runSchema() {
	schema, err := promptulate.StateSchema()
	if err != nil {
		exitWithError("Error generating schema: %v\n", err)
	}
	fmt.Println(string(schema))
}

func runPing(sched promptulate.Scheduler, flags *cmdFlags, fileCfg *fileConfig, prompt string) {
	if prompt == "" {
		prompt = "Say pong."
	}

	baseURL, model := flags.baseURL, flags.model
	if fileCfg != nil {
		if baseURL == "" {
			baseURL = fileCfg.BaseURL
		}
		if model == "" {
			model = fileCfg.Model
		}
	}

	caller := client.NewOpenAI(baseURL, model, client.WithTimeout(flags.timeout))
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	response, err := sched.Dispatch(ctx, model, caller.Call(messages))
	if err != nil {
		exitWithError("Error dispatching: %v\n", err)
	}
	fmt.Println(response)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func getLogLevel(level string) promptulate.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return promptulate.LogLevelDebug
	case "info":
		return promptulate.LogLevelInfo
	case "error":
		return promptulate.LogLevelError
	default:
		return promptulate.LogLevelWarn
	}
}
