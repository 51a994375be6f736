package command

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/realtime/client"
)

// notificationView is one inbox entry.
type notificationView struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message" table:"wide"`
	Read      bool           `json:"read"`
	Metadata  map[string]any `json:"metadata,omitempty" table:"-"`
	CreatedAt time.Time      `json:"createdAt"`
}

type inboxPage struct {
	Items       []notificationView `json:"items"`
	UnreadCount int                `json:"unread_count"`
}

// NotifyCommand returns the notification subcommand group.
func NotifyCommand() *cli.Command {
	return &cli.Command{
		Name:    "notify",
		Aliases: []string{"ntf"},
		Usage:   "Publish, list and watch notifications",
		Subcommands: []*cli.Command{
			{
				Name:  "send",
				Usage: "Publish a notification to a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
					&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Value: string(domain.PriorityMedium)},
					&cli.StringSliceFlag{Name: "meta", Usage: "metadata entry key=value (repeatable)"},
				},
				Action: notifySend,
			},
			{
				Name:      "list",
				Usage:     "List a user's inbox",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Value: "all", Usage: "all, unread or high"},
					&cli.IntFlag{Name: "limit", Usage: "maximum entries (0 for all)"},
				},
				Action: notifyList,
			},
			{
				Name:      "read",
				Usage:     "Mark one notification read",
				ArgsUsage: "USER_ID NOTIFICATION_ID",
				Action:    notifyRead,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete one notification from a user's inbox",
				ArgsUsage: "USER_ID NOTIFICATION_ID",
				Action:    notifyDelete,
			},
			{
				Name:      "read-all",
				Usage:     "Mark every notification of a user read",
				ArgsUsage: "USER_ID",
				Action:    notifyReadAll,
			},
			{
				Name:  "watch",
				Usage: "Stream live notifications until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Aliases: []string{"u"}},
					&cli.StringFlag{Name: "session-id", Usage: "session used to authenticate the stream"},
					&cli.DurationFlag{Name: "reconnect-delay", Value: 5 * time.Second},
				},
				Action: notifyWatch,
			},
		},
	}
}

// parseMeta turns key=value pairs into a metadata map.
// Values that parse as numbers or booleans keep that type.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", pair)
		}
		switch {
		case v == "true" || v == "false":
			meta[k] = v == "true"
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				meta[k] = n
			} else {
				meta[k] = v
			}
		}
	}
	return meta, nil
}

func notifySend(c *cli.Context) error {
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	req := map[string]any{
		"user_id":  c.String("user-id"),
		"type":     c.String("type"),
		"title":    c.String("title"),
		"message":  c.String("message"),
		"priority": c.String("priority"),
	}
	if meta != nil {
		req["metadata"] = meta
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		Notification notificationView `json:"notification"`
		Delivered    int              `json:"delivered"`
		Persisted    bool             `json:"persisted"`
	}
	if err := e.client.Post(ctx, "/notifications", req, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "Notification %s published: delivered to %d connections, persisted=%t\n",
		result.Notification.ID, result.Delivered, result.Persisted)
	return nil
}

func notifyList(c *cli.Context) error {
	userID, err := requireArg(c, "user ID")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("filter", c.String("filter"))
	if limit := c.Int("limit"); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var page inboxPage
	if err := e.client.Get(ctx, "/users/"+url.PathEscape(userID)+"/notifications?"+q.Encode(), &page); err != nil {
		return err
	}

	if !e.human() {
		return e.print(page)
	}
	if err := e.print(page.Items); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\nUnread: %d\n", page.UnreadCount)
	return nil
}

func notifyRead(c *cli.Context) error {
	userID := c.Args().Get(0)
	id := c.Args().Get(1)
	if userID == "" || id == "" {
		return fmt.Errorf("user ID and notification ID required")
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		UnreadCount int `json:"unread_count"`
	}
	path := "/users/" + url.PathEscape(userID) + "/notifications/" + url.PathEscape(id) + "/read"
	if err := e.client.Post(ctx, path, nil, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "Marked read. %d unread remaining.\n", result.UnreadCount)
	return nil
}

func notifyDelete(c *cli.Context) error {
	userID := c.Args().Get(0)
	id := c.Args().Get(1)
	if userID == "" || id == "" {
		return fmt.Errorf("user ID and notification ID required")
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		UnreadCount int `json:"unread_count"`
	}
	path := "/users/" + url.PathEscape(userID) + "/notifications/" + url.PathEscape(id)
	if err := e.client.Delete(ctx, path, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "Notification %s deleted. %d unread remaining.\n", id, result.UnreadCount)
	return nil
}

func notifyReadAll(c *cli.Context) error {
	userID, err := requireArg(c, "user ID")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		Updated int `json:"updated"`
	}
	if err := e.client.Post(ctx, "/users/"+url.PathEscape(userID)+"/notifications/read-all", nil, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "%d notifications marked read.\n", result.Updated)
	return nil
}

func notifyWatch(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = cliConfig(c).SessionID
	}

	onNew := func(n *domain.Notification) {
		if !e.human() {
			data, err := json.Marshal(n)
			if err == nil {
				fmt.Fprintln(e.out, string(data))
			}
			return
		}
		fmt.Fprintf(e.out, "%s  [%s] %s: %s\n",
			n.CreatedAt.Local().Format(time.TimeOnly), n.Priority, n.Title, n.Message)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
	receiver := client.NewReceiver(client.NewCache(0),
		client.WithOnNew(onNew),
		client.WithReceiverLogger(logger),
	)

	rc, err := client.New(client.Config{
		BaseURL:        e.client.BaseURL(),
		UserID:         c.String("user-id"),
		SessionID:      sessionID,
		ReconnectDelay: c.Duration("reconnect-delay"),
		TLSConfig:      e.tls,
	}, receiver, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if e.human() {
		fmt.Fprintf(e.out, "Watching %s (Ctrl-C to stop)\n", e.client.BaseURL())
	}
	if err := rc.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
