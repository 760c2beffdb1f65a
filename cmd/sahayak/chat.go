package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/clarify"
	"github.com/omnandre07/SchemeSahayak/internal/config"
	"github.com/omnandre07/SchemeSahayak/internal/engine"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

func newChatCommand(configPath *string) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive scheme discovery in the terminal",
		Long: `Chat runs the full conversation loop locally. Describe your situation in
a sentence or two; sahayak asks at most five clarifying questions and then
lists the schemes you may be eligible for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			controller := buildController(cfg, cat, nil)
			return runChat(cmd.Context(), controller, cat, language)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "en", "Conversation language (en, hi)")
	return cmd
}

func runChat(ctx context.Context, controller *engine.Controller, cat *catalog.Catalog, language string) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	bold.Println("SchemeSahayak")
	fmt.Println("Tell me about yourself and I will look for schemes you may qualify for.")
	faint.Println("(empty input exits)")
	fmt.Println()

	prompt := promptui.Prompt{Label: "You"}
	text, err := prompt.Run()
	if err != nil || strings.TrimSpace(text) == "" {
		return nil
	}

	result, err := controller.SubmitUtterance(ctx, "", text, language)
	if err != nil {
		return err
	}

	for result.Question != nil {
		printMatches(result, cat, language, green, yellow, faint)

		answer, err := askQuestion(result.Question)
		if err != nil || strings.TrimSpace(answer) == "" {
			break
		}

		sessionID := result.SessionID
		result, err = controller.SubmitAnswer(ctx, sessionID, result.Question.ID, answer)
		if err != nil {
			// An odd reply should not end the conversation; continue as a
			// fresh utterance so extraction gets a chance at it.
			result, err = controller.SubmitUtterance(ctx, sessionID, answer, language)
			if err != nil {
				return err
			}
		}
	}

	fmt.Println()
	bold.Println("Final results")
	printMatches(result, cat, language, green, yellow, faint)
	if result.Uncertain {
		yellow.Println("Confidence is low. Please verify eligibility with the scheme office.")
	}
	if result.Degraded {
		faint.Println("(evaluated with offline rules)")
	}
	return nil
}

// askQuestion prompts for a clarification answer. Flag-style questions get
// a yes/no select; everything else is free text.
func askQuestion(question *clarify.Question) (string, error) {
	fmt.Println()
	sel := promptui.Select{
		Label: question.Text,
		Items: []string{"yes", "no", "skip"},
	}
	if isOpenQuestion(question) {
		prompt := promptui.Prompt{Label: question.Text}
		return prompt.Run()
	}
	_, answer, err := sel.Run()
	if err != nil {
		return "", err
	}
	if answer == "skip" {
		return "", errors.New("skipped")
	}
	return answer, nil
}

func isOpenQuestion(question *clarify.Question) bool {
	return question.Attribute != profile.AttrDisability
}

func printMatches(result engine.TurnResult, cat *catalog.Catalog, language string, green, yellow, faint *color.Color) {
	if len(result.Matches) == 0 {
		faint.Println("No matching schemes yet.")
		return
	}
	for i, candidate := range result.Matches {
		name := candidate.ProgramID
		if program, ok := cat.ByID(candidate.ProgramID); ok {
			name = program.DisplayName(language)
		}
		line := fmt.Sprintf("%d. %s (score %d", i+1, name, candidate.Score)
		if candidate.LowerBound {
			line += "+"
		}
		line += ")"
		switch candidate.Verdict {
		case "eligible":
			green.Println(line)
		case "ineligible":
			faint.Println(line)
		default:
			yellow.Println(line)
		}
		if len(candidate.Missing) > 0 {
			faint.Printf("   still unknown: %s\n", strings.Join(candidate.Missing, ", "))
		}
	}
}
