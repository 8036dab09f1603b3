package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IvanKem/clever-document-assistant-ru/internal/bootstrap"
	"github.com/IvanKem/clever-document-assistant-ru/internal/config"
	"github.com/IvanKem/clever-document-assistant-ru/internal/dto"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/response"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const cliUserID = "cli"

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send files and a question to the model",
		Args:  cobra.ArbitraryArgs,
		RunE:  runAsk,
	}

	cmd.Flags().StringSliceP("file", "f", nil, "image or PDF to attach (repeatable)")
	cmd.Flags().StringP("out", "o", "answer.png", "where to save an image returned by the model")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	out, _ := cmd.Flags().GetString("out")

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && len(files) == 0 {
		return fmt.Errorf("a question or at least one --file is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Every invocation is a complete request, so the session mode does not apply here.
	cfg.Session.AskMode = config.AskModeCommand

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := container.AssistantService.IngestFile(ctx, cliUserID, filepath.Base(path), data)
		if err != nil {
			color.Red("%s", response.UserMessage(err))
			return err
		}
		color.Cyan("%s", res.Message)
	}

	color.Yellow("%s", response.ProcessingMessage)
	answer, err := container.AssistantService.Ask(ctx, cliUserID, question)
	if err != nil {
		color.Red("%s", response.UserMessage(err))
		return err
	}

	printAnswer(answer, out)
	return nil
}

func printAnswer(answer *dto.AnswerResponse, out string) {
	fmt.Println(answer.Text)

	if answer.Warning != "" {
		color.Yellow("%s", answer.Warning)
	}
	if len(answer.Image) > 0 {
		if err := os.WriteFile(out, answer.Image, 0o644); err != nil {
			color.Red("Failed to save image: %v", err)
		} else {
			color.Green("Image saved to %s", out)
		}
	}
	if answer.Usage != nil {
		color.HiBlack("pages: %d, texts: %d, tokens: %d", answer.Pages, answer.Texts, answer.Usage.TotalTokens)
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the inference backend answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			container, err := bootstrap.NewContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			if err := container.PingBackend(cmd.Context()); err != nil {
				color.Red("%s", response.UserMessage(err))
				return err
			}
			color.Green("%s backend at %s is reachable", container.Provider.Name(), cfg.Inference.URL)
			return nil
		},
	}
}
