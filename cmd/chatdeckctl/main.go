package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	addrFlag := flag.String("addr", "http://127.0.0.1:8642", "daemon address")
	jsonFlag := flag.Bool("json", false, "output raw JSON")
	filterFlag := flag.String("filter", "", "roster status filter (failed|not_failed|delivered|read|replied)")
	queryFlag := flag.String("q", "", "roster search query")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &client{base: strings.TrimRight(*addrFlag, "/"), http: &http.Client{Timeout: 10 * time.Second}}

	switch args[0] {
	case "status":
		cmdStatus(c, *jsonFlag)
	case "contacts":
		cmdContacts(c, *filterFlag, *queryFlag, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatdeckctl messages <contact_id>")
			os.Exit(1)
		}
		cmdMessages(c, args[1], *jsonFlag)
	case "read":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatdeckctl read <contact_id>")
			os.Exit(1)
		}
		cmdRead(c, args[1])
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: chatdeckctl send <contact_id> <text>")
			os.Exit(1)
		}
		cmdSend(c, args[1], strings.Join(args[2:], " "))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatdeckctl [--addr <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                   Show daemon status")
	fmt.Fprintln(os.Stderr, "  contacts                 List the contact roster")
	fmt.Fprintln(os.Stderr, "  messages <contact_id>    Show a contact's thread")
	fmt.Fprintln(os.Stderr, "  read <contact_id>        Mark a contact's inbound messages read")
	fmt.Fprintln(os.Stderr, "  send <contact_id> <text> Send a message")
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func (c *client) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type contactRow struct {
	ID            string `json:"id"`
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Preview       string `json:"preview"`
	LastMessageAt int64  `json:"last_message_at_unix_ms"`
	Unread        bool   `json:"unread"`
}

type messageRow struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	SentAt    int64  `json:"sent_at_unix_ms"`
	CreatedAt int64  `json:"created_at_unix_ms"`
}

func cmdStatus(c *client, jsonOut bool) {
	var out map[string]any
	if err := c.get("/healthz", &out); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(out)
		return
	}
	fmt.Printf("state: %v\ncontacts: %v\nmessages: %v\n", out["state"], out["contacts"], out["messages"])
}

func cmdContacts(c *client, filter, query string, jsonOut bool) {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	if query != "" {
		params.Set("q", query)
	}
	path := "/api/contacts"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out struct {
		Items []contactRow `json:"items"`
	}
	if err := c.get(path, &out); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(out)
		return
	}
	for _, row := range out.Items {
		marker := " "
		if row.Unread {
			marker = "*"
		}
		name := row.Name
		if name == "" {
			name = row.Phone
		}
		fmt.Printf("%s %-24s %-36s %s\n", marker, name, row.ID, row.Preview)
	}
}

func cmdMessages(c *client, contactID string, jsonOut bool) {
	var out struct {
		Messages []messageRow `json:"messages"`
		HasMore  bool         `json:"has_more"`
	}
	if err := c.get("/api/contacts/"+url.PathEscape(contactID)+"/messages", &out); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(out)
		return
	}
	for _, m := range out.Messages {
		ts := m.SentAt
		if ts == 0 {
			ts = m.CreatedAt
		}
		arrow := "<-"
		if m.Direction == "outbound" {
			arrow = "->"
		}
		fmt.Printf("%s %s [%s] %s\n", time.UnixMilli(ts).Format("01/02 15:04"), arrow, m.Status, m.Body)
	}
	if out.HasMore {
		fmt.Println("(more messages available)")
	}
}

func cmdRead(c *client, contactID string) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	if err := c.post("/api/contacts/"+url.PathEscape(contactID)+"/read", nil, &out); err != nil {
		fatal(err)
	}
	fmt.Printf("marked %d messages read\n", out.Marked)
}

func cmdSend(c *client, contactID, text string) {
	body := map[string]string{"contact_id": contactID, "text": text}
	var out messageRow
	if err := c.post("/api/messages", body, &out); err != nil {
		fatal(err)
	}
	fmt.Printf("submitted %s\n", out.ID)
}
