// Package main provides a CI-friendly smoke test for the Souq push path.
//
// It validates, against a running server with seeded dev data:
//   - cookie login
//   - SSE subscribe (connected event)
//   - message send over the chat API
//   - fanout of the stored message to the live subscriber
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"
)

type envelope struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channelId"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "server base URL")
		email    = flag.String("email", "dev@example.com", "login email")
		password = flag.String("password", "dev-password", "login password")
		convID   = flag.String("conv", "dev-conv-1", "conversation id")
		text     = flag.String("text", "smoke test message", "message body")
		timeout  = flag.Duration("timeout", 15*time.Second, "overall deadline")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *baseURL, *email, *password, *convID, *text); err != nil {
		fmt.Fprintf(os.Stderr, "push-smoke: FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("push-smoke: OK")
}

func run(ctx context.Context, baseURL, email, password, convID, text string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar}

	if err := login(ctx, client, baseURL, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	events, errCh, closeStream, err := openStream(ctx, client, baseURL, convID)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer closeStream()

	if err := expectEvent(ctx, events, errCh, "connected"); err != nil {
		return fmt.Errorf("connected event: %w", err)
	}

	if err := send(ctx, client, baseURL, convID, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := expectEvent(ctx, events, errCh, "message"); err != nil {
		return fmt.Errorf("message fanout: %w", err)
	}
	return nil
}

func login(ctx context.Context, client *http.Client, baseURL, email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func send(ctx context.Context, client *http.Client, baseURL, convID, text string) error {
	body, _ := json.Marshal(map[string]string{"body": text, "clientMsgId": fmt.Sprintf("smoke-%d", time.Now().UnixNano())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/conversations/"+convID+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// openStream starts the SSE read loop in a goroutine and returns its channels.
func openStream(ctx context.Context, client *http.Client, baseURL, convID string) (<-chan envelope, <-chan error, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/events?conversation="+convID, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	events := make(chan envelope, 8)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			payload, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				errCh <- fmt.Errorf("bad frame %q: %w", payload, err)
				return
			}
			events <- env
		}
		if err := sc.Err(); err != nil {
			errCh <- err
		}
	}()

	return events, errCh, func() { _ = resp.Body.Close() }, nil
}

func expectEvent(ctx context.Context, events <-chan envelope, errCh <-chan error, wantType string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case env, ok := <-events:
			if !ok {
				return errors.New("stream closed")
			}
			if env.Type == "heartbeat" {
				continue
			}
			if env.Type != wantType {
				return fmt.Errorf("got %q, want %q", env.Type, wantType)
			}
			return nil
		}
	}
}
