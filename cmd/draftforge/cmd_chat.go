// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AleutianAI/DraftForge/pkg/ux"
	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
	"github.com/spf13/cobra"
)

// InputReader reads one line of user input at a time.
type InputReader interface {
	// ReadLine reads until newline and returns the trimmed line.
	// Returns io.EOF when input is exhausted.
	ReadLine() (string, error)
}

// StdinReader implements InputReader over os.Stdin.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates an InputReader wrapping os.Stdin.
func NewStdinReader() *StdinReader {
	return &StdinReader{reader: bufio.NewReader(os.Stdin)}
}

// ReadLine reads a single line from stdin. Blocks until input is available
// or stdin is closed.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runChatCommand(cmd *cobra.Command, args []string) {
	service := NewTurnStreamingService(TurnStreamingServiceConfig{
		BaseURL: getDrafterBaseURL(),
		JDIMode: jdiMode || config.JDIMode,
	})
	defer service.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C cancels the in-flight turn on the server, then locally.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if id := service.ActiveRequestID(); id != "" {
			if _, err := service.Stop(context.Background(), id); err != nil {
				log.Printf("Stop request failed: %v", err)
			}
		}
		cancel()
	}()

	if err := runChatLoop(ctx, NewStdinReader(), service, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Chat error: %v", err)
	}
}

func runAskCommand(cmd *cobra.Command, args []string) {
	instruction := strings.Join(args, " ")

	service := NewTurnStreamingService(TurnStreamingServiceConfig{
		BaseURL: getDrafterBaseURL(),
		JDIMode: jdiMode || config.JDIMode,
	})
	defer service.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if id := service.ActiveRequestID(); id != "" {
			if _, err := service.Stop(context.Background(), id); err != nil {
				log.Printf("Stop request failed: %v", err)
			}
		}
		cancel()
	}()

	history := []datatypes.Message{{Role: datatypes.RoleUser, Content: instruction}}
	result, err := service.SendTurn(ctx, history)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if result != nil && result.State == ux.TurnStopped {
				fmt.Println(ux.StopNotice)
			}
			return
		}
		log.Fatalf("Error: %v", err)
	}
	if result.ErrorMessage != "" {
		os.Exit(1)
	}
}

func runStopCommand(cmd *cobra.Command, args []string) {
	service := NewTurnStreamingService(TurnStreamingServiceConfig{
		BaseURL: getDrafterBaseURL(),
	})
	defer service.Close()

	cancelled, err := service.Stop(context.Background(), "")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Cancelled %d turn(s)\n", cancelled)
}

// runChatLoop drives the interactive session: read a line, stream the turn,
// fold the answer back into the history, repeat.
//
// # Description
//
// The loop owns the conversation history. A cancelled turn keeps the user
// message in the history but records no assistant reply; a failed turn
// drops the user message so a retry does not duplicate it. "exit" and
// "quit" end the session, as does EOF on the input.
//
// # Inputs
//
//   - ctx: Cancelled on Ctrl+C; ends the loop.
//   - input: Source of user lines (stdin in production, mock in tests).
//   - service: Streaming turn service.
//   - out: Destination for prompts and notices.
//
// # Outputs
//
//   - error: context.Canceled when interrupted, nil on normal exit.
func runChatLoop(ctx context.Context, input InputReader, service TurnStreamingService, out io.Writer) error {
	fmt.Fprintln(out, "DraftForge drafting session. Type 'exit' to leave.")

	var history []datatypes.Message

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Fprint(out, "\nyou> ")
		line, err := input.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		history = append(history, datatypes.Message{Role: datatypes.RoleUser, Content: line})

		result, err := service.SendTurn(ctx, history)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// The fold already recorded the stop; echo its notice.
				if result != nil && result.State == ux.TurnStopped {
					fmt.Fprintln(out, ux.StopNotice)
				}
				return err
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}

		if result.ErrorMessage != "" {
			// The stream already rendered the error; drop the failed turn.
			history = history[:len(history)-1]
			continue
		}

		if result.Answer != "" {
			history = append(history, datatypes.Message{
				Role:    datatypes.RoleAssistant,
				Content: result.Answer,
			})
		}
	}
}
