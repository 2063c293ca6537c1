package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	. "github.com/Protocol-Lattice/vibe-engine/src"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	startDir, _ := os.Getwd()
	ctx := context.Background()

	configPath := flag.String("config", "", "path to config.yaml")
	project := flag.String("project", "", "project name (defaults to directory name)")
	user := flag.String("user", "local", "user ID for budget accounting")
	providers := flag.String("providers", "", "UTCP provider.json path for god mode")
	flag.Parse()

	fmt.Println("⚡ Initializing Vibe...")

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Println("❌ Failed to load config:", err)
		os.Exit(1)
	}

	store := NewDirStore(startDir)
	wallet := NewMemoryWallet()
	wallet.Grant(*user, 1000)

	eng := NewEngine(cfg, store, wallet, nil)

	base := CallRequest{
		Provider: cfg.DefaultProvider,
		UserID:   *user,
		Project:  *project,
		UserKeys: keysFromEnv(),
	}

	var reg AffordanceRegistry
	if client, err := BuildUTCP(ctx, *providers); err == nil {
		reg = &UTCPRegistry{Client: client}
	} else {
		fmt.Println("⚠️ ", err, "— god mode will use a local dry-run registry")
		reg = NewScriptedRegistry(map[string]string{})
	}

	m := NewModel(ctx, eng, store, base, reg, startDir)

	p := tea.NewProgram(m, tea.WithAltScreen())
	m.Program = p

	if _, err := p.Run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func keysFromEnv() map[Provider]string {
	keys := map[Provider]string{}
	for p, env := range map[Provider]string{
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderGemini:    "GEMINI_API_KEY",
		ProviderAnthropic: "ANTHROPIC_API_KEY",
	} {
		if v := os.Getenv(env); v != "" {
			keys[p] = v
		}
	}
	return keys
}
