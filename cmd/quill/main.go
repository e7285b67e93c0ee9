package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quill/internal/adapter/history"
	"quill/internal/adapter/tui/chat"
	"quill/internal/infra/config"
	"quill/internal/infra/logger"
	"quill/internal/usecase/agent"
	"quill/internal/usecase/eventbus"
	"quill/internal/usecase/shellexec"
	"quill/internal/usecase/shellrun"
	"quill/internal/usecase/shellstore"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`quill - interactive shell console

USAGE:
    quill [FLAGS]

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ~/.quill/config.yaml)
    --workdir PATH     Working directory for commands
    --interactive      Allocate a pseudo-terminal for commands

CONFIGURATION:
    Config file: ~/.quill/config.yaml
    Environment: QUILL_* variables override config

KEYS:
    Enter      Run the typed command
    Ctrl+B     Move the running command to the background
    Ctrl+X     Kill the running command
    Ctrl+S     Toggle the background shell panel
    Ctrl+C     Cancel / quit`)
}

// cliFlags holds CLI flags applied on top of the config file.
type cliFlags struct {
	ConfigPath  string
	WorkDir     string
	Interactive bool
}

// parseFlags extracts --config, --workdir, --interactive from os.Args.
func parseFlags() cliFlags {
	var flags cliFlags
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--config" && i+1 < len(os.Args):
			flags.ConfigPath = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--config="):
			flags.ConfigPath = strings.TrimPrefix(os.Args[i], "--config=")
		case os.Args[i] == "--workdir" && i+1 < len(os.Args):
			flags.WorkDir = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--workdir="):
			flags.WorkDir = strings.TrimPrefix(os.Args[i], "--workdir=")
		case os.Args[i] == "--interactive":
			flags.Interactive = true
		}
	}
	return flags
}

func run() error {
	// 1. Config
	flags := parseFlags()

	cfgPath := flags.ConfigPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flags.WorkDir != "" {
		cfg.Shell.WorkDir = flags.WorkDir
	}
	if flags.Interactive {
		cfg.Shell.Interactive = true
	}

	// 2. Logger
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	// Styles render with the configured profile instead of whatever the
	// terminal auto-detects.
	lipgloss.SetColorProfile(cfg.ColorProfile())

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Execution driver and background shell store
	driver := shellexec.NewDriver(cfg.Shell.OutputBufferMax, bus, log)
	defer driver.Shutdown()

	store := shellstore.New(driver, bus, log)

	// 5. Command history (optional)
	var records shellrun.InvocationRecorder
	var query chat.HistoryQuery
	if cfg.History.Enabled {
		db, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			// History is best-effort; the console works without it.
			log.Warn("history disabled", "error", err)
		} else {
			defer db.Close()
			records = db
			query = db
		}
	}

	// 6. Transcript and assistant
	transcript := agent.NewTranscript()
	assistant := agent.NewAssistant(transcript, store, log)

	// 7. Bridge, runner, model
	bridge := chat.NewBridge()
	runner := shellrun.New(driver, store, bridge, transcript, records, shellrun.Config{
		WorkDir:          cfg.Shell.WorkDir,
		Interactive:      cfg.Shell.Interactive,
		Cols:             cfg.Shell.Cols,
		Rows:             cfg.Shell.Rows,
		TranscriptMaxLen: cfg.Shell.TranscriptMaxLen,
		RestoreDelay:     cfg.Shell.RestoreDelay,
	}, log)
	defer runner.Teardown()

	bridge.Wire(runner, store)
	unwire := bridge.WireBus(bus)
	defer unwire()

	model := chat.NewModel(chat.ModelDeps{
		Runner:   runner,
		Handler:  assistant.Handle,
		History:  query,
		Logger:   log,
		WorkDir:  cfg.Shell.WorkDir,
		AppTitle: cfg.UI.AgentName,
	})

	// 8. Run the program
	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	}
	p := tea.NewProgram(model, opts...)
	bridge.Attach(p)

	log.Info("quill starting",
		"workdir", cfg.Shell.WorkDir,
		"interactive", cfg.Shell.Interactive,
		"history", records != nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	// Kill any shells still running so nothing outlives the console.
	store.DismissAll()
	return nil
}
