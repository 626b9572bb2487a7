// Package main is a terminal client for live AI interviews.
//
// It captures the microphone, plays interviewer audio through the speaker,
// and prints the running transcript.
//
// Usage:
//
//	go run cmd/interview-live/main.go -interview <id>
//
// Environment variables:
//
//	HIRELANE_API_KEY  - Required
//	HIRELANE_BASE_URL - Optional platform URL override
//
// Press Ctrl+C (or type 'q') to end the interview; the transcript is
// persisted before exit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	hirelane "github.com/hirelane/interview-client/sdk"

	"github.com/hirelane/interview-client/pkg/core/interview"
)

func main() {
	_ = godotenv.Load()

	interviewID := flag.String("interview", "", "interview id (default: generated)")
	baseURL := flag.String("base-url", os.Getenv("HIRELANE_BASE_URL"), "platform base URL")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if os.Getenv("HIRELANE_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "HIRELANE_API_KEY required")
		os.Exit(1)
	}
	if *interviewID == "" {
		*interviewID = uuid.NewString()
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	opts := []hirelane.ClientOption{hirelane.WithLogger(logger)}
	if *baseURL != "" {
		opts = append(opts, hirelane.WithBaseURL(*baseURL))
	}
	client := hirelane.NewClient(opts...)

	ctx := context.Background()

	fmt.Printf("Starting interview %s ...\n", *interviewID)
	session, err := client.Interviews.Start(ctx, *interviewID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start interview: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Interview is live. Speak naturally; type 'm' to mute, 'u' to unmute, 'q' to end.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nEnding interview...")
		_ = session.End()
	}()

	go printEvents(session)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "q":
				_ = session.End()
				return
			case "m":
				if err := session.ToggleAudio(false); err == nil {
					fmt.Println("[muted]")
				}
			case "u":
				if err := session.ToggleAudio(true); err == nil {
					fmt.Println("[unmuted]")
				}
			}
		}
	}()

	<-session.Done()

	result := session.Result()
	fmt.Printf("\nInterview ended (%s).\n", result.Trigger)
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "session error: %v\n", result.Err)
	}
	if result.PersistErr != nil {
		fmt.Fprintf(os.Stderr, "warning: transcript was not persisted: %v\n", result.PersistErr)
	}

	printResults(ctx, session)
}

func printEvents(session *hirelane.InterviewSession) {
	for ev := range session.Events() {
		switch e := ev.(type) {
		case *interview.TranscriptCompletedEvent:
			role := e.Role
			if role == "" {
				role = "candidate"
			}
			fmt.Printf("[%s] %s\n", role, e.Transcript)
		case *interview.BargeInEvent:
			fmt.Println("[interrupted]")
		case *interview.AIEndedEvent:
			fmt.Printf("[interviewer ended: %s]\n", e.Reason)
		case *interview.WarningEvent:
			fmt.Printf("[warning] %s: %s\n", e.Code, e.Message)
		case *interview.StateChangedEvent:
			fmt.Printf("[state] %s -> %s\n", e.From, e.To)
		}
	}
}

// printResults polls briefly for the analysis; the backend may still be
// processing the transcript right after the session ends.
func printResults(ctx context.Context, session *hirelane.InterviewSession) {
	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var results *interview.Results
	for {
		var err error
		results, err = session.FetchResults(fetchCtx)
		if err == nil {
			break
		}
		select {
		case <-fetchCtx.Done():
			fmt.Println("Results not available yet; check the dashboard later.")
			return
		case <-time.After(2 * time.Second):
		}
	}

	fmt.Println("\n=== Interview Results ===")
	fmt.Printf("Summary:  %s\n", results.Summary)
	fmt.Printf("Score:    %.1f\n", results.Score)
	if len(results.Strengths) > 0 {
		fmt.Printf("Strengths: %s\n", strings.Join(results.Strengths, ", "))
	}
	if len(results.Weaknesses) > 0 {
		fmt.Printf("Weaknesses: %s\n", strings.Join(results.Weaknesses, ", "))
	}
	if results.JobFit != "" {
		fmt.Printf("Job fit:  %s\n", results.JobFit)
	}
}
