// Package setup provides an interactive terminal wizard that generates the
// service YAML configuration.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/mkovtun/costbook/config"
	"github.com/mkovtun/costbook/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	var (
		platform        string
		pairsStr        string
		stateFile       string
		listenAddr      string
		pollIntervalStr string
		reconcile       bool
		confirm         bool
	)

	// defaults
	stateFile = "position_state.json"
	listenAddr = ":8080"
	pollIntervalStr = "5m"
	reconcile = true

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COSTBOOK CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Track your cost basis in style.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COSTBOOK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: PAIRS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pairs").
				Description("Comma-separated, BASE_QUOTE (e.g. BTC_USDT,ETH_USDT)").
				Value(&pairsStr).
				Validate(validatePairs),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COSTBOOK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: STATE & API"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Position State File").
				Value(&stateFile),
			huh.NewInput().
				Title("Web API Listen Address").
				Value(&listenAddr),
			huh.NewInput().
				Title("History Re-check Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&pollIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Reconcile empty books from exchange history on start?").
				Value(&reconcile),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COSTBOOK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nPairs: %s\nState file: %s\nListen: %s\nRe-check: %s\nReconcile on start: %t\n",
		platform, pairsStr, stateFile, listenAddr, pollIntervalStr, reconcile,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	pollInterval, _ := time.ParseDuration(pollIntervalStr)

	cfgTmp := config.ConfigTmp{
		Platform:         platform,
		Pairs:            splitPairs(pairsStr),
		StateFile:        stateFile,
		ListenAddr:       listenAddr,
		ReconcileOnStart: reconcile,
		PollInterval:     pollInterval,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func splitPairs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validatePairs(s string) error {
	pairs := splitPairs(s)
	if len(pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}

	for _, p := range pairs {
		if _, err := domain.PairFromString(p); err != nil {
			return err
		}
	}

	return nil
}
