// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/radchat/radchat/internal/agent"
	"github.com/radchat/radchat/internal/provider"
	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant in the terminal",
		Long: "Run the assistant in-process. With a message argument, answer it and exit; " +
			"otherwise start an interactive session. Type 'quit' to exit, 'clear' to reset, 'models' to list models.",
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "model id (default models.default)")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && strings.TrimSpace(args[0]) == "" {
		return radchaterr.New(radchaterr.CodeCLIInputInvalid, "message must not be empty")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := Wire(cfg)
	if err != nil {
		return err
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = cfg.Models.Default
	}

	r := newREPL(cmd.InOrStdin(), cmd.OutOrStdout(), app.Chat, app.Providers, model)
	if len(args) > 0 {
		return r.ask(contextOf(cmd), args[0])
	}
	return r.run(contextOf(cmd))
}

type chatStreamer interface {
	ChatStream(ctx context.Context, req agent.ChatRequest) iter.Seq[agent.StreamEvent]
	Reset(sessionID string) int
}

type modelLister interface {
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
}

type replStyles struct {
	title     lipgloss.Style
	you       lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	err       lipgloss.Style
}

// newReplStyles detects the color profile of w, so output to a pipe or a
// buffer carries no escape sequences.
func newReplStyles(w io.Writer) replStyles {
	r := lipgloss.NewRenderer(w)
	return replStyles{
		title:     r.NewStyle().Bold(true),
		you:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		tool:      r.NewStyle().Faint(true),
		err:       r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

type repl struct {
	in        *bufio.Scanner
	out       io.Writer
	chat      chatStreamer
	models    modelLister
	model     string
	sessionID string
	styles    replStyles
}

func newREPL(in io.Reader, out io.Writer, chat chatStreamer, models modelLister, model string) *repl {
	return &repl{
		in:        bufio.NewScanner(in),
		out:       out,
		chat:      chat,
		models:    models,
		model:     model,
		sessionID: uuid.NewString(),
		styles:    newReplStyles(out),
	}
}

func (r *repl) run(ctx context.Context) error {
	r.printf("%s\n", r.styles.title.Render("RadChat - Radiology Assistant"))
	r.printf("Model: %s\n", r.model)
	r.printf("Ask about phone contacts or ACR imaging criteria.\n")
	r.printf("Type 'quit' to exit, 'clear' to reset, 'models' to list models.\n\n")

	for {
		r.printf("%s ", r.styles.you.Render("You:"))
		if !r.in.Scan() {
			r.printf("\nGoodbye!\n")
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			r.printf("Goodbye!\n")
			return nil
		case "clear":
			r.chat.Reset(r.sessionID)
			r.printf("Conversation cleared.\n\n")
			continue
		case "models":
			if err := r.listModels(ctx); err != nil {
				r.printf("%s\n\n", r.styles.err.Render(err.Error()))
			}
			continue
		}

		// Failures were already printed; the session continues.
		_ = r.ask(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// ask streams one answer and returns the failure reported by the stream,
// if any, after printing it.
func (r *repl) ask(ctx context.Context, text string) error {
	var failure error
	r.printf("\n%s ", r.styles.assistant.Render("Assistant:"))
	for ev := range r.chat.ChatStream(ctx, agent.ChatRequest{
		SessionID: r.sessionID,
		Model:     r.model,
		Content:   text,
	}) {
		switch ev.Type {
		case agent.StreamText:
			r.printf("%s", ev.Content)
		case agent.StreamToolActivity:
			// Multi-line strings are padded by lipgloss; style the marker line only.
			r.printf("\n%s\n", r.styles.tool.Render(strings.TrimSpace(ev.Content)))
		case agent.StreamError:
			r.printf("\n%s", r.styles.err.Render("Error: "+ev.Content))
			failure = ev.Err
			if failure == nil {
				failure = radchaterr.New(radchaterr.CodeCLIRequestFailure, ev.Content)
			}
		case agent.StreamDone:
			r.printf("\n\n")
		}
	}
	return failure
}

func (r *repl) listModels(ctx context.Context) error {
	models, err := r.models.ListModels(ctx)
	if err != nil {
		return err
	}
	r.printf("\n")
	if err := printModels(r.out, models, r.model); err != nil {
		return err
	}
	r.printf("\n")
	return nil
}

func (r *repl) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
