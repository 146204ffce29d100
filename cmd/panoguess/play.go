package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"panoguess/internal/cache"
	"panoguess/internal/game"
)

// nextRoundDelay gives the player a moment to read the feedback.
var nextRoundDelay = 500 * time.Millisecond

// play runs the terminal game until the player quits, input ends, ctx is
// canceled, or no more rounds can be produced.
func play(ctx context.Context, session *game.Session, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	for {
		fmt.Fprintln(out, "Loading round...")
		prompt, err := session.Next(ctx)
		if errors.Is(err, cache.ErrNoRoundAvailable) {
			fmt.Fprintln(out, "No round available right now, please try again later.")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		fmt.Fprintf(out, "\nWhere was this taken? %s\n", prompt.ViewerURL)
		for i, opt := range prompt.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt.Name)
		}

		choice, ok := readChoice(ctx, lines, out, len(prompt.Options))
		if !ok {
			fmt.Fprintf(out, "Final score: %s\n", session.Score())
			return nil
		}

		res, err := session.Answer(ctx, prompt.Options[choice].Code)
		if err != nil {
			return err
		}
		if res.Correct {
			fmt.Fprintln(out, "You chose the correct country!")
		} else {
			fmt.Fprintf(out, "Incorrect, the correct country is: %s!\n", res.CorrectName)
		}
		fmt.Fprintln(out, res.Score)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(nextRoundDelay):
		}
	}
}

// readChoice prompts until it gets a number in [1, n]. It reports false when
// the player quits or input ends.
func readChoice(ctx context.Context, lines <-chan string, out io.Writer, n int) (int, bool) {
	for {
		fmt.Fprintf(out, "Your answer (1-%d, q to quit): ", n)
		var line string
		select {
		case <-ctx.Done():
			return 0, false
		case l, open := <-lines:
			if !open {
				return 0, false
			}
			line = strings.TrimSpace(l)
		}

		if strings.EqualFold(line, "q") || strings.EqualFold(line, "quit") {
			return 0, false
		}
		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > n {
			fmt.Fprintf(out, "Please enter a number between 1 and %d.\n", n)
			continue
		}
		return choice - 1, true
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
