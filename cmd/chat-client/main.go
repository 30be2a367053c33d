package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/chatclient"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/tts"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

var (
	userLabel      = color.New(color.FgGreen, color.Bold).SprintFunc()
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	toolLabel      = color.New(color.FgYellow).SprintFunc()
	errorLabel     = color.New(color.FgRed).SprintFunc()
)

const help = `Commands:
  /read <path>          read a file or list a directory under the allowed root
  /sh <command>         run a shell command in the allowed root
  /new                  start a new conversation
  /save <file>          save the conversation
  /load <file>          load a saved conversation
  /settings             show settings
  /settings key=value   change one setting (JSON value, or a bare string)
  exit                  quit
Ctrl-C stops the reply being streamed; press it again to quit.`

func main() {
	gotenv.Load()

	serverURL := flag.String("server", envOr("CHAT_SERVER", "http://localhost:8080"), "chat server base URL")
	settingsPath := flag.String("settings", envOr("CHAT_SETTINGS", defaultSettingsPath()), "settings file")
	audioDir := flag.String("audio-dir", envOr("CHAT_AUDIO_DIR", filepath.Join(os.TempDir(), "chat-client-audio")), "directory for synthesized replies")
	language := flag.String("tts-language", envOr("CHAT_TTS_LANGUAGE", tts.DefaultLanguage), "speech synthesis language")
	flag.Parse()

	settings, err := chatclient.LoadSettings(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorLabel("loading settings: "+err.Error()))
		settings = domain.DefaultSettings()
	}

	ctx := context.Background()
	session := chatclient.NewSession(*serverURL, http.DefaultClient, settings, nil)
	repl := &repl{session: session, settingsPath: *settingsPath, language: *language, audioDir: *audioDir}
	defer repl.close()
	if settings.EnableTTS {
		repl.ensureSpeaker(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig == os.Interrupt && session.Cancel() {
				continue
			}
			fmt.Println()
			log.Sync()
			os.Exit(0)
		}
	}()

	fmt.Printf("Connected to %s (%s, %s). Type /help for commands.\n", *serverURL, settings.Provider, settings.Model)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for {
		fmt.Print(userLabel("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "/exit" {
			break
		}
		repl.handle(ctx, line)
	}
	log.Sync()
}

type repl struct {
	session      *chatclient.Session
	settingsPath string
	language     string
	audioDir     string
	speaker      *tts.GoogleTTS
}

// ensureSpeaker connects to the speech service the first time voice output
// is wanted.
func (r *repl) ensureSpeaker(ctx context.Context) {
	if r.speaker != nil {
		return
	}
	g, err := tts.NewGoogleTTS(ctx, r.language, r.audioDir)
	if err != nil {
		log.With().Warn("speech synthesis unavailable", zap.Error(err))
		return
	}
	r.speaker = g
	r.session.SetSpeaker(g)
}

func (r *repl) close() {
	if r.speaker != nil {
		r.speaker.Close()
	}
}

func (r *repl) handle(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(help)
	case "/read":
		r.tool(r.session.ReadFile(ctx, arg))
	case "/sh":
		r.tool(r.session.Shell(ctx, arg, ""))
	case "/new":
		r.session.Reset()
		fmt.Println("Started a new conversation.")
	case "/save":
		if err := chatclient.SaveTranscript(arg, r.session.Messages()); err != nil {
			r.fail(err)
			return
		}
		fmt.Printf("Saved %d messages to %s\n", len(r.session.Messages()), arg)
	case "/load":
		r.load(arg)
	case "/settings":
		r.settings(ctx, arg)
	default:
		r.send(ctx, line)
	}
}

func (r *repl) send(ctx context.Context, text string) {
	fmt.Print(assistantLabel("assistant> "))
	_, err := r.session.Send(ctx, text, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println(toolLabel("[stopped]"))
	case err != nil:
		r.fail(err)
	}
}

func (r *repl) tool(out string, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	fmt.Println(toolLabel(out))
}

func (r *repl) load(path string) {
	messages, err := chatclient.LoadTranscript(path)
	if err == nil {
		err = r.session.Restore(messages)
	}
	if err != nil {
		r.fail(err)
		return
	}
	for _, m := range messages {
		label := userLabel
		if m.Role != domain.UserRole {
			label = assistantLabel
		}
		fmt.Printf("%s %s\n", label(string(m.Role)+">"), m.Content)
	}
}

// settings prints the current settings, or applies key=value to a copy and
// commits it only when the whole copy validates.
func (r *repl) settings(ctx context.Context, arg string) {
	current := r.session.Settings()
	if arg == "" {
		out, _ := json.MarshalIndent(current, "", "  ")
		fmt.Println(string(out))
		return
	}

	key, raw, ok := strings.Cut(arg, "=")
	if !ok {
		r.fail(fmt.Errorf("expected key=value, got %q", arg))
		return
	}
	next, err := applySetting(current, strings.TrimSpace(key), strings.TrimSpace(raw))
	if err == nil {
		err = r.session.SetSettings(next)
	}
	if err == nil {
		err = chatclient.SaveSettings(r.settingsPath, next)
	}
	if err != nil {
		r.fail(err)
		return
	}
	if next.EnableTTS {
		r.ensureSpeaker(ctx)
	}
	fmt.Printf("%s = %s\n", key, raw)
}

func applySetting(s domain.Settings, key, raw string) (domain.Settings, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return s, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return s, err
	}
	if _, known := fields[key]; !known {
		return s, fmt.Errorf("unknown setting %q", key)
	}

	var value any
	if json.Unmarshal([]byte(raw), &value) != nil {
		value = raw
	}
	fields[key] = value

	data, err = json.Marshal(fields)
	if err != nil {
		return s, err
	}
	var next domain.Settings
	if err := json.Unmarshal(data, &next); err != nil {
		return s, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return next, nil
}

func (r *repl) fail(err error) {
	fmt.Println(errorLabel("error: " + err.Error()))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chat-settings.json"
	}
	return filepath.Join(dir, "chat-client", "settings.json")
}
