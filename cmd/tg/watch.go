package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [task-id]",
	Short: "Stream task and dependency events",
	Long: `Stream events as they happen. With a task ID only events touching
that task are shown.

Events come from NATS when a NATS URL is known (--nats, TASKGRAPH_NATS_URL
or the active remote) and from the server's SSE stream otherwise.`,
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var taskID string
		if len(args) == 1 {
			taskID = args[0]
		}
		topics, _ := cmd.Flags().GetString("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("TASKGRAPH_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		emit := func(topic string, data []byte) {
			if taskID != "" && !eventTouches(data, taskID) {
				return
			}
			if jsonOutput {
				fmt.Fprintf(out, "{\"topic\":%q,\"data\":%s}\n", topic, data)
				return
			}
			fmt.Fprintf(out, "%s  %s  %s\n",
				ui.RenderMuted(time.Now().Format("15:04:05")), ui.RenderAccent(topic), summarizeEvent(topic, data))
		}

		if natsURL != "" {
			return watchNATS(ctx, natsURL, topics, emit)
		}
		return watchSSE(ctx, httpURL, authToken, topics, emit)
	},
}

// watchNATS subscribes to the event subjects and prints each message.
func watchNATS(ctx context.Context, natsURL, topic string, emit func(string, []byte)) error {
	if topic == "" {
		topic = events.TopicAll
	}
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			emit(msg.Topic, msg.Data)
		}
	}
}

// watchSSE reads the server's event stream, reconnecting with the last
// seen event ID after a dropped connection.
func watchSSE(ctx context.Context, baseURL, token, topics string, emit func(string, []byte)) error {
	var lastID string
	backoff := time.Second
	for {
		err := readSSE(ctx, baseURL, token, topics, lastID, func(ev sseEvent) {
			lastID = ev.ID
			emit(ev.Event, ev.Data)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("event stream: %v (retrying in %s)", err, backoff)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

type sseEvent struct {
	ID    string
	Event string
	Data  []byte
}

// readSSE opens one stream and delivers events until it ends.
func readSSE(ctx context.Context, baseURL, token, topics, lastID string, fn func(sseEvent)) error {
	q := url.Values{}
	if topics != "" {
		q.Set("topics", topics)
	}
	target := strings.TrimRight(baseURL, "/") + "/v1/events/stream"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return parseSSE(bufio.NewScanner(resp.Body), fn)
}

// parseSSE splits a text/event-stream body into events. Comment lines
// (": keepalive") are ignored.
func parseSSE(sc *bufio.Scanner, fn func(sseEvent)) error {
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var ev sseEvent
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				ev.Data = []byte(strings.Join(data, "\n"))
				fn(ev)
			}
			ev, data = sseEvent{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			ev.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			ev.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}

// eventPayload holds the fields of every event type that name a task.
type eventPayload struct {
	Task *struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	} `json:"task"`
	Dependency *struct {
		ID           string `json:"id"`
		SourceTaskID string `json:"source_task_id"`
		TargetTaskID string `json:"target_task_id"`
		Kind         string `json:"type"`
	} `json:"dependency"`
	TaskID       string         `json:"task_id"`
	TriggerID    string         `json:"trigger_id"`
	DependencyID string         `json:"dependency_id"`
	SourceTaskID string         `json:"source_task_id"`
	TargetTaskID string         `json:"target_task_id"`
	Kind         string         `json:"type"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Actor        string         `json:"actor"`
	Changes      map[string]any `json:"changes"`
}

func (p *eventPayload) taskIDs() []string {
	ids := []string{p.TaskID, p.TriggerID, p.SourceTaskID, p.TargetTaskID}
	if p.Task != nil {
		ids = append(ids, p.Task.ID)
	}
	if p.Dependency != nil {
		ids = append(ids, p.Dependency.SourceTaskID, p.Dependency.TargetTaskID)
	}
	return ids
}

// eventTouches reports whether an event payload names taskID.
func eventTouches(data []byte, taskID string) bool {
	var p eventPayload
	if json.Unmarshal(data, &p) != nil {
		return false
	}
	for _, id := range p.taskIDs() {
		if id == taskID {
			return true
		}
	}
	return false
}

// summarizeEvent renders a one-line description of an event.
func summarizeEvent(topic string, data []byte) string {
	var p eventPayload
	if json.Unmarshal(data, &p) != nil {
		return string(data)
	}
	switch topic {
	case events.TopicTaskCreated:
		if p.Task != nil {
			return fmt.Sprintf("%s %q", p.Task.ID, p.Task.Title)
		}
	case events.TopicTaskStatusChanged:
		if p.Task != nil {
			return fmt.Sprintf("%s %s -> %s", p.Task.ID, p.From, ui.RenderStatus(p.To))
		}
	case events.TopicStatusPropagated:
		return fmt.Sprintf("%s %s -> %s (duplicate of %s)", p.TaskID, p.From, ui.RenderStatus(p.To), p.TriggerID)
	case events.TopicTaskDeleted:
		return p.TaskID
	case events.TopicDependencyCreated, events.TopicDependencyUpdated:
		if d := p.Dependency; d != nil {
			return fmt.Sprintf("%s: %s %s %s", d.ID, d.SourceTaskID, ui.RenderKind(d.Kind), d.TargetTaskID)
		}
	case events.TopicDependencyDeleted:
		return fmt.Sprintf("%s: %s %s %s", p.DependencyID, p.SourceTaskID, ui.RenderKind(p.Kind), p.TargetTaskID)
	}
	return string(data)
}

func init() {
	watchCmd.Flags().String("topics", "", "topic filter (NATS subject or comma-separated SSE globs)")
	watchCmd.Flags().String("nats", "", "NATS URL (default from TASKGRAPH_NATS_URL or the active remote)")
}
