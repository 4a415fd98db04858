// npcwatch is a terminal dashboard that drives one or more NPC controllers
// tick-by-tick, narrating each decision the way a game host would, plus
// "review"/"rate" modes for the decision log. It can drive a local toy tile
// world (the default) or, via --mcp-engine, an out-of-process world server
// reached over MCP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"npccore/internal/controller"
	"npccore/internal/debug"
	"npccore/internal/decisionlog"
	"npccore/internal/engine"
	"npccore/internal/llm"
	"npccore/internal/mcpengine"
	"npccore/internal/navigator"
	"npccore/internal/observability"
)

const decisionLogPath = "npcwatch.db"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "review", "--review":
			runReviewMode()
			return
		case "rate":
			if len(os.Args) < 4 {
				fmt.Println("Usage: npcwatch rate <id> <rating> [notes]")
				return
			}
			runRatingMode()
			return
		case "--mcp-engine":
			if len(os.Args) < 3 {
				fmt.Println("Usage: npcwatch --mcp-engine <command> [args...]")
				return
			}
			runMCPEngine(os.Args[2], os.Args[3:])
			return
		}
	}

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

type tickResultMsg struct {
	npcID  string
	result string
	made   bool
}

type tickTimerMsg struct{}

type model struct {
	width, height int
	tick          int
	startedAt     time.Time

	world       engine.TileWorld
	player      engine.Character
	npcIDs      []string
	npcs        map[string]engine.NPC
	controllers map[string]*controller.Controller
	messages    []string

	logger      *decisionlog.Logger
	tracer      *observability.TracerProvider
	mcpActuator *mcpengine.Actuator // non-nil when closing the program should also tear down the remote session
}

// newLLMClient picks the wire mode the same way spec.md's build-time
// USE_TOOL_CALLS flag would: LLM_WIRE_MODE=json selects JSON-parsing mode,
// anything else (including unset) keeps the default tool-call mode.
func newLLMClient(dbg *debug.Logger) llm.Client {
	cfg := llm.ConfigFromEnv()
	systemPrompt, _ := llm.LoadSystemPrompt("system_prompt.txt")
	if os.Getenv("LLM_WIRE_MODE") == "json" {
		return llm.NewJSONClient(cfg, systemPrompt, dbg)
	}
	return llm.NewToolCallClient(cfg, systemPrompt, dbg)
}

func openDecisionLog() *decisionlog.Logger {
	logger, err := decisionlog.New(decisionLogPath)
	if err != nil {
		fmt.Printf("failed to open decision log: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func initialModel() model {
	dbg := debug.NewLogger(os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true")
	client := newLLMClient(dbg)
	logger := openDecisionLog()
	tp, _ := observability.InitTracing(context.Background(), observability.LoadConfigFromEnv())

	world := engine.NewToyWorld()
	world.AddWall(engine.Rect{X: 160, Y: 64, Width: 32, Height: 192})

	player := engine.NewToyCharacter("player", 320, 320, 32, 32, 4)
	world.AddCharacter(player)

	guard := engine.NewToyCharacter("guard", 224, 128, 32, 32, 4)
	guard.AddItem("iron_key", 1)
	world.AddCharacter(guard)

	nav := navigator.New(20, 20)
	navWalls := make([]navigator.Wall, 0, len(world.Walls()))
	for _, w := range world.Walls() {
		navWalls = append(navWalls, navigator.Wall{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height})
	}
	nav.SetTilesFromWalls(navWalls, 32)
	nav.BuildRegionsAndPortals()

	c := controller.New("guard", client, controller.Options{
		Navigator:           nav,
		Logger:              logger,
		Debug:               dbg,
		IdleBehaviorEnabled: true,
		IdleSpeechChance:    0.2,
	})
	c.SetGoals([]string{"guard the hallway", "greet visitors"})

	return model{
		startedAt:   time.Now(),
		world:       world,
		player:      player,
		npcIDs:      []string{"guard"},
		npcs:        map[string]engine.NPC{"guard": guard},
		controllers: map[string]*controller.Controller{"guard": c},
		logger:      logger,
		tracer:      tp,
	}
}

// mcpModel builds a model driven by a remote MCP world process instead of
// the local ToyWorld: the NPC is an mcpengine.Actuator, the player is an
// mcpengine.RemoteCharacter read from the same session, and there is no
// navigator (the remote process's grid dimensions aren't part of the
// engine.TileWorld contract, so move_to steps straight toward its target).
func mcpModel(ctx context.Context, command string, args []string) (model, error) {
	dbg := debug.NewLogger(os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true")

	actuator, err := mcpengine.Connect(ctx, mcpengine.Config{
		Command: command,
		Args:    args,
		NPCID:   "guard",
		Speed:   4,
		Debug:   dbg,
	})
	if err != nil {
		return model{}, err
	}

	world := mcpengine.NewWorld(actuator)
	player := mcpengine.NewRemoteCharacter(actuator, "player")

	client := newLLMClient(dbg)
	logger := openDecisionLog()
	tp, _ := observability.InitTracing(ctx, observability.LoadConfigFromEnv())

	c := controller.New("guard", client, controller.Options{
		Logger:              logger,
		Debug:               dbg,
		IdleBehaviorEnabled: true,
		IdleSpeechChance:    0.2,
	})
	c.SetGoals([]string{"guard the hallway", "greet visitors"})

	return model{
		startedAt:   time.Now(),
		world:       world,
		player:      player,
		npcIDs:      []string{"guard"},
		npcs:        map[string]engine.NPC{"guard": actuator},
		controllers: map[string]*controller.Controller{"guard": c},
		logger:      logger,
		tracer:      tp,
		mcpActuator: actuator,
	}, nil
}

// runMCPEngine launches command as a subprocess speaking MCP, connects an
// Actuator/World pair to it, and runs the same dashboard loop against that
// remote engine instead of the in-process ToyWorld.
func runMCPEngine(command string, args []string) {
	m, err := mcpModel(context.Background(), command, args)
	if err != nil {
		fmt.Printf("failed to connect to mcp engine %q: %v\n", command, err)
		os.Exit(1)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// otherCharactersFor returns every character besides exceptID - the player
// plus every other NPC - as the []engine.Character a transfer_item/interact
// check needs, regardless of whether they live in the local ToyWorld or a
// remote MCP process.
func otherCharactersFor(player engine.Character, npcs map[string]engine.NPC, exceptID string) []engine.Character {
	out := make([]engine.Character, 0, len(npcs)+1)
	if player != nil && player.ID() != exceptID {
		out = append(out, player)
	}
	for id, n := range npcs {
		if id == exceptID {
			continue
		}
		out = append(out, n)
	}
	return out
}

func tickTimer() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickTimerMsg{}
	})
}

func (m model) Init() tea.Cmd {
	return tickTimer()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickTimerMsg:
		m.tick++
		currentMS := float64(time.Since(m.startedAt).Milliseconds())

		cmds := make([]tea.Cmd, 0, len(m.npcIDs)+1)
		for _, id := range m.npcIDs {
			c := m.controllers[id]
			npc := m.npcs[id]
			cmds = append(cmds, runTick(c, id, controller.TickInput{
				CurrentTimeMS: currentMS,
				Tick:          m.tick,
				Engine: controller.Engine{
					World:      m.world,
					NPC:        npc,
					Player:     m.player,
					Characters: otherCharactersFor(m.player, m.npcs, ""),
				},
			}))
		}
		cmds = append(cmds, tickTimer())
		return m, tea.Batch(cmds...)

	case tickResultMsg:
		if msg.made {
			m.messages = append(m.messages, fmt.Sprintf("[%s] %s", msg.npcID, msg.result))
			if len(m.messages) > 200 {
				m.messages = m.messages[len(m.messages)-200:]
			}
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.logger != nil {
				m.logger.Close()
			}
			if m.mcpActuator != nil {
				m.mcpActuator.Close()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

func runTick(c *controller.Controller, npcID string, in controller.TickInput) tea.Cmd {
	return func() tea.Msg {
		result, made := c.Tick(context.Background(), in)
		return tickResultMsg{npcID: npcID, result: result, made: made}
	}
}

func (m model) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1).
		Width(max(m.width-4, 40))

	var body strings.Builder
	body.WriteString(headerStyle.Render(fmt.Sprintf("npcwatch — tick %d", m.tick)) + "\n\n")

	visible := m.messages
	maxLines := 20
	if len(visible) > maxLines {
		visible = visible[len(visible)-maxLines:]
	}
	for _, line := range visible {
		body.WriteString(line + "\n")
	}

	body.WriteString("\npress q to quit\n")

	return panelStyle.Render(body.String())
}

func runReviewMode() {
	logger, err := decisionlog.New(decisionLogPath)
	if err != nil {
		fmt.Printf("failed to open decision log: %v\n", err)
		return
	}
	defer logger.Close()

	entries, err := logger.Recent(10)
	if err != nil {
		fmt.Printf("failed to read decisions: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No decisions logged yet. Run npcwatch first.")
		return
	}

	fmt.Printf("Recent decisions (%d):\n\n", len(entries))
	for _, e := range entries {
		var meta decisionlog.Metadata
		_ = json.Unmarshal([]byte(e.Metadata), &meta)
		fmt.Printf("[%d] %s | npc=%s | %s\n", e.ID, e.Timestamp.Format("15:04:05"), e.NPCID, e.Result)
		fmt.Printf("  action: %s\n", e.Action)
		if e.Rating != nil {
			fmt.Printf("  rating: %d/5", *e.Rating)
			if e.Notes != nil {
				fmt.Printf(" - %s", *e.Notes)
			}
			fmt.Println()
		} else {
			fmt.Println("  rating: not rated")
		}
		fmt.Println(strings.Repeat("-", 50))
	}
	fmt.Println("\nTo rate a decision: npcwatch rate <id> <rating> [notes]")
}

func runRatingMode() {
	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Printf("invalid id: %v\n", err)
		return
	}
	rating, err := strconv.Atoi(os.Args[3])
	if err != nil {
		fmt.Printf("invalid rating: %v\n", err)
		return
	}

	var notes string
	if len(os.Args) > 4 {
		notes = strings.Join(os.Args[4:], " ")
	}

	logger, err := decisionlog.New(decisionLogPath)
	if err != nil {
		fmt.Printf("failed to open decision log: %v\n", err)
		return
	}
	defer logger.Close()

	if err := logger.Rate(id, rating, notes); err != nil {
		fmt.Printf("failed to rate decision: %v\n", err)
		return
	}
	fmt.Printf("rated decision %d as %d/5\n", id, rating)
}
