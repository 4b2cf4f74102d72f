// Command mcpchat is an interactive chat REPL backed by an LLM provider and
// a set of MCP tool servers.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/backends"
	"github.com/effective-security/mcpchat/chat"
	"github.com/effective-security/mcpchat/llmfactory"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/pkg/llmutils"
	"github.com/effective-security/mcpchat/store"
	"github.com/effective-security/mcpchat/tools/websearch"
	"github.com/effective-security/mcpchat/toolset"
	"github.com/effective-security/xlog"
	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "cli")

type appFlags struct {
	Cfg      string `short:"c" long:"cfg" description:"LLM providers configuration file" default:"llm.yaml"`
	Servers  string `short:"s" long:"servers" description:"tool servers configuration file"`
	Provider string `long:"provider" description:"provider name from the config, default is the first one"`
	Model    string `short:"m" long:"model" description:"override the provider's default model"`
	Redis    string `long:"redis" description:"Redis address for the transcript store, host:port"`
	ChatID   string `long:"chat-id" description:"transcript key in the store" default:"default"`
	Debug    bool   `short:"D" long:"debug" description:"enable debug logging"`
}

func main() {
	var fl appFlags
	parser := flags.NewParser(&fl, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(&fl); err != nil {
		fmt.Fprintf(os.Stderr, "mcpchat: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(fl *appFlags) error {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if fl.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}

	ctx := context.Background()

	model, err := loadModel(fl)
	if err != nil {
		return err
	}

	registry := toolset.NewRegistry()
	defer func() {
		_ = registry.Close()
	}()

	if err := connectServers(ctx, registry, fl.Servers); err != nil {
		return err
	}
	registerLocalTools(registry)

	if fl.Debug {
		fmt.Fprintf(os.Stderr, "advertised tools: %s\n", llmutils.ToJSONIndent(registry.Tools()))
	}

	var chatOpts []chat.Option
	if fl.Model != "" {
		chatOpts = append(chatOpts, chat.WithModel(fl.Model))
	}
	if fl.Redis != "" {
		client := redis.NewClient(&redis.Options{Addr: fl.Redis})
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.WithMessagef(err, "failed to connect to Redis at %s", fl.Redis)
		}
		defer func() {
			_ = client.Close()
		}()
		chatOpts = append(chatOpts, chat.WithStore(store.NewRedisStore(client, "mcpchat"), fl.ChatID))
	}
	printer := chat.NewPrinterCallback(os.Stdout)
	printer.Verbose = fl.Debug
	chatOpts = append(chatOpts, chat.WithCallback(printer))
	session := chat.New(model, registry, chatOpts...)

	names := registry.ServerNames()
	fmt.Printf("Connected to %d tool server(s): %s\n", len(names), strings.Join(names, ", "))
	fmt.Println("Type your queries, or 'quit' to exit.")

	return repl(ctx, session)
}

func loadModel(fl *appFlags) (llms.Model, error) {
	f, err := llmfactory.Load(fl.Cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load providers config")
	}
	if fl.Provider != "" {
		return f.ModelByName(fl.Provider)
	}
	return f.DefaultModel()
}

// connectServers dials every configured tool server and registers it.
// Any failure aborts startup, a partial tool set is worse than none.
func connectServers(ctx context.Context, registry *toolset.Registry, location string) error {
	if location == "" {
		return nil
	}
	cfg, err := backends.LoadConfig(location)
	if err != nil {
		return errors.WithMessage(err, "failed to load servers config")
	}
	for _, name := range cfg.ServerNames() {
		conn, err := backends.Dial(ctx, name, cfg.Servers[name])
		if err != nil {
			return err
		}
		if err := registry.Register(ctx, name, conn); err != nil {
			_ = conn.Close()
			return err
		}
	}
	return nil
}

func registerLocalTools(registry *toolset.Registry) {
	if os.Getenv(websearch.TokenEnvVarName) == "" {
		return
	}
	ws, err := websearch.New()
	if err != nil {
		logger.KV(xlog.WARNING, "reason", "websearch disabled", "err", err.Error())
		return
	}
	registry.RegisterLocal(ws)
}

func repl(ctx context.Context, session *chat.Chat) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\nQuery: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		answer, err := session.ProcessQuery(ctx, input)
		if err != nil {
			fmt.Printf("\nError: %s\n", err.Error())
			continue
		}
		fmt.Printf("\n%s\n", answer)
	}
	return scanner.Err()
}
