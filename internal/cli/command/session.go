package command

import (
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"
)

// sessionView is a session as the server reports it.
type sessionView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Device       string    `json:"device,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	Email        string    `json:"email,omitempty" table:"wide"`
	Role         string    `json:"role,omitempty" table:"wide"`
	UserAgent    string    `json:"user_agent,omitempty" table:"wide"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type sessionList struct {
	Items []sessionView `json:"items"`
	Total int           `json:"total"`
}

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	forceFlag := &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "skip confirmation",
	}

	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Manage sessions",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List a user's sessions",
				ArgsUsage: "USER_ID",
				Action:    sessionListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one session (refreshes its activity)",
				ArgsUsage: "SESSION_ID",
				Action:    sessionGet,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a session",
				ArgsUsage: "SESSION_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    sessionRevoke,
			},
			{
				Name:      "revoke-all",
				Usage:     "Revoke all sessions of a user and drop their live connections",
				ArgsUsage: "USER_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    sessionRevokeAll,
			},
		},
	}
}

func sessionListAction(c *cli.Context) error {
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

	var result sessionList
	if err := e.client.Get(ctx, "/users/"+url.PathEscape(userID)+"/sessions", &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	if err := e.print(result.Items); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\nTotal: %d sessions\n", result.Total)
	return nil
}

func sessionGet(c *cli.Context) error {
	sessionID, err := requireArg(c, "session ID")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var s sessionView
	if err := e.client.Get(ctx, "/sessions/"+url.PathEscape(sessionID), &s); err != nil {
		return err
	}
	return e.print(s)
}

func sessionRevoke(c *cli.Context) error {
	sessionID, err := requireArg(c, "session ID")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	if !c.Bool("force") && !e.confirm(fmt.Sprintf("Revoke session '%s'? [y/N]: ", truncateID(sessionID)), "y") {
		fmt.Fprintln(e.out, "Cancelled.")
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		Revoked bool `json:"revoked"`
	}
	if err := e.client.Post(ctx, "/sessions/"+url.PathEscape(sessionID)+"/revoke", nil, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	if result.Revoked {
		fmt.Fprintf(e.out, "Session %s revoked.\n", truncateID(sessionID))
	} else {
		fmt.Fprintf(e.out, "Session %s was not active.\n", truncateID(sessionID))
	}
	return nil
}

func sessionRevokeAll(c *cli.Context) error {
	userID, err := requireArg(c, "user ID")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("This will revoke all sessions for user '%s'. Type '%s' to confirm: ", userID, userID)
	if !c.Bool("force") && !e.confirm(prompt, userID) {
		fmt.Fprintln(e.out, "Cancelled.")
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var result struct {
		RevokedCount      int `json:"revoked_count"`
		DisconnectedCount int `json:"disconnected_count"`
	}
	if err := e.client.Post(ctx, "/users/"+url.PathEscape(userID)+"/sessions/revoke", nil, &result); err != nil {
		return err
	}

	if !e.human() {
		return e.print(result)
	}
	fmt.Fprintf(e.out, "%d sessions revoked for user '%s', %d live connections closed.\n",
		result.RevokedCount, userID, result.DisconnectedCount)
	return nil
}

// truncateID truncates long IDs for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:13] + "..."
}
