package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtaadao/mtaa-realtime/internal/cli/output"
	"github.com/mtaadao/mtaa-realtime/pkg/token"
)

type policyView struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Max    int           `json:"max"`
	KeyBy  string        `json:"key_by"`
}

type statusSummary struct {
	Build struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
		GoVersion string `json:"go_version"`
	} `json:"build"`
	UptimeSeconds int64 `json:"uptime_seconds"`
	Sessions      struct {
		Sessions           int           `json:"sessions"`
		Users              int           `json:"users"`
		Timeout            time.Duration `json:"timeout"`
		MaxSessionsPerUser int           `json:"max_sessions_per_user"`
	} `json:"sessions"`
	Connections struct {
		Total  int      `json:"total"`
		Users  int      `json:"users"`
		Online []string `json:"online_users"`
	} `json:"connections"`
	Inbox *struct {
		TotalBytes uint64 `json:"total_bytes"`
		InMemory   bool   `json:"in_memory"`
		LastGC     int64  `json:"last_gc,omitempty"`
	} `json:"inbox,omitempty"`
	RateLimiter struct {
		Windows  int          `json:"windows"`
		Policies []policyView `json:"policies"`
	} `json:"rate_limiter"`
}

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "System management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show system status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
			{
				Name:   "gc",
				Usage:  "Sweep expired sessions, idle rate limit windows and inbox garbage",
				Action: systemGC,
			},
			{
				Name:  "hash-key",
				Usage: "Hash a key for security.admin_key_hash or security.service_key_hash (generates one if --key is empty)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "existing key to hash"},
				},
				Action: systemHashKey,
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var s statusSummary
	if err := e.client.Get(ctx, "/admin/v1/status/summary", &s); err != nil {
		return err
	}

	if !e.human() {
		return e.print(s)
	}

	fmt.Fprintf(e.out, "System Status\n")
	fmt.Fprintf(e.out, "=============\n\n")
	fmt.Fprintf(e.out, "Version:          %s (%s)\n", s.Build.Version, s.Build.GoVersion)
	fmt.Fprintf(e.out, "Uptime:           %s\n", time.Duration(s.UptimeSeconds)*time.Second)
	fmt.Fprintf(e.out, "Sessions:         %d across %d users (timeout %s, max %d per user)\n",
		s.Sessions.Sessions, s.Sessions.Users, s.Sessions.Timeout, s.Sessions.MaxSessionsPerUser)
	fmt.Fprintf(e.out, "Connections:      %d across %d users\n", s.Connections.Total, s.Connections.Users)
	if len(s.Connections.Online) > 0 {
		fmt.Fprintf(e.out, "Online users:     %s\n", onlineList(s.Connections.Online, maxOnlineShown))
	}
	if s.Inbox != nil {
		mode := "disk"
		if s.Inbox.InMemory {
			mode = "memory"
		}
		fmt.Fprintf(e.out, "Inbox:            %.2f KB (%s)\n", float64(s.Inbox.TotalBytes)/1024, mode)
		if s.Inbox.LastGC > 0 {
			fmt.Fprintf(e.out, "Inbox last GC:    %s\n", time.Unix(s.Inbox.LastGC, 0).Format(output.TimeLayout))
		}
	}
	fmt.Fprintf(e.out, "Limiter windows:  %d\n\n", s.RateLimiter.Windows)

	table := &output.Table{Headers: []string{"POLICY", "WINDOW", "MAX", "KEY"}}
	for _, p := range s.RateLimiter.Policies {
		table.AddRow(p.Name, p.Window.String(), fmt.Sprint(p.Max), p.KeyBy)
	}
	return table.Render(e.out)
}

func systemHealth(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		Status  string `json:"status"`
		Time    string `json:"time"`
		Version string `json:"version"`
	}
	if err := e.client.Get(ctx, "/health", &result); err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}

	if !e.human() {
		return e.print(result)
	}
	if result.Status == "healthy" {
		fmt.Fprintf(e.out, "Server is healthy\n")
	} else {
		fmt.Fprintf(e.out, "Server is unhealthy: %s\n", result.Status)
	}
	fmt.Fprintf(e.out, "  Target:  %s\n", e.client.BaseURL())
	fmt.Fprintf(e.out, "  Version: %s\n", result.Version)
	return nil
}

func systemGC(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		SessionsReclaimed int    `json:"sessions_reclaimed"`
		WindowsReclaimed  int    `json:"windows_reclaimed"`
		InboxBytesFreed   uint64 `json:"inbox_bytes_freed"`
		DurationMs        int64  `json:"duration_ms"`
	}
	if err := e.client.Post(ctx, "/admin/v1/gc/trigger", nil, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "Garbage collection completed in %dms:\n", result.DurationMs)
	fmt.Fprintf(e.out, "  Expired sessions: %d\n", result.SessionsReclaimed)
	fmt.Fprintf(e.out, "  Idle windows:     %d\n", result.WindowsReclaimed)
	fmt.Fprintf(e.out, "  Inbox freed:      %.2f KB\n", float64(result.InboxBytesFreed)/1024)
	return nil
}

// systemHashKey works offline.
func systemHashKey(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	key := c.String("key")
	generated := key == ""
	if generated {
		if key, err = token.GenerateAdminKey(); err != nil {
			return err
		}
	}

	hash, err := token.Hash(key)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if format != output.FormatTable {
		result := map[string]string{"hash": hash}
		if generated {
			result["key"] = key
		}
		return output.NewFormatter(format, false).Format(out, result)
	}

	if generated {
		fmt.Fprintf(out, "Admin key (shown once): %s\n", key)
	}
	fmt.Fprintf(out, "security.admin_key_hash: %s\n", hash)
	return nil
}

// maxOnlineShown caps the online users printed by system status.
const maxOnlineShown = 10

func onlineList(users []string, limit int) string {
	if len(users) <= limit {
		return strings.Join(users, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(users[:limit], ", "), len(users)-limit)
}
