package command

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtaadao/mtaa-realtime/internal/cli/config"
	"github.com/mtaadao/mtaa-realtime/internal/cli/connection"
	"github.com/mtaadao/mtaa-realtime/internal/cli/output"
	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
	"github.com/mtaadao/mtaa-realtime/internal/infra/tlsroots"
)

// requestTimeout bounds one-shot commands.
const requestTimeout = 30 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "mtaa-cli",
		Usage:   "Manage sessions and notifications on an mtaa-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SessionCommand(),
			NotifyCommand(),
			SystemCommand(),
		},
		Before: loadConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address (e.g. localhost:5080)",
			EnvVars: []string{"MTAA_SERVER"},
		},
		&cli.StringFlag{
			Name:    "admin-key",
			Aliases: []string{"K"},
			Usage:   "admin API key for /admin routes",
			EnvVars: []string{"MTAA_ADMIN_KEY"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "service API key for session and notification routes (defaults to the admin key)",
			EnvVars: []string{"MTAA_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle of extra CAs trusted for https/wss servers",
			EnvVars: []string{"MTAA_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"MTAA_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// loadConfig fills unset global flags from the CLI config file.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	defaults := map[string]string{
		"server":    cfg.Server,
		"admin-key": cfg.AdminKey,
		"api-key":   cfg.APIKey,
		"output":    cfg.Output,
		"ca-file":   cfg.CAFile,
	}
	for name, value := range defaults {
		if !c.IsSet(name) && value != "" {
			if err := c.Set(name, value); err != nil {
				return err
			}
		}
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata["config"] = cfg
	return nil
}

// cliConfig returns the loaded CLI config, or defaults.
func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata["config"].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	AdminKey string
	APIKey   string
	Output   output.Format
	Wide     bool
	CAFile   string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	server := c.String("server")
	if server == "" {
		server = config.Default().Server
	}
	return &GlobalFlags{
		Server:   server,
		AdminKey: c.String("admin-key"),
		APIKey:   c.String("api-key"),
		Output:   format,
		Wide:     c.Bool("wide"),
		CAFile:   c.String("ca-file"),
	}, nil
}

// env bundles what a command needs to run.
type env struct {
	flags  *GlobalFlags
	tls    *tls.Config
	client *connection.HTTPClient
	out    io.Writer
	in     io.Reader
}

func newEnv(c *cli.Context) (*env, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := tlsroots.ClientConfig(flags.CAFile)
	if err != nil {
		return nil, err
	}
	return &env{
		flags:  flags,
		tls:    tlsCfg,
		client: connection.NewHTTPClient(flags.Server, flags.AdminKey,
			connection.WithServiceKey(flags.APIKey),
			connection.WithTLSConfig(tlsCfg)),
		out:    c.App.Writer,
		in:     c.App.Reader,
	}, nil
}

// print writes data in the selected format.
func (e *env) print(data any) error {
	return output.NewFormatter(e.flags.Output, e.flags.Wide).Format(e.out, data)
}

// human reports whether output is for people rather than scripts.
func (e *env) human() bool {
	return e.flags.Output == output.FormatTable
}

// confirm asks a yes/no question on the app's reader.
func (e *env) confirm(prompt, want string) bool {
	fmt.Fprint(e.out, prompt)
	line, _ := bufio.NewReader(e.in).ReadString('\n')
	return strings.TrimSpace(line) == want
}

// requestContext derives a bounded context for one request.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, requestTimeout)
}

// requireArg returns the first positional argument or a usage error.
func requireArg(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return v, nil
}
