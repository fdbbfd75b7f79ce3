package main

import (
	"io"
	"os"
	"time"

	"face-search/internal/config"
	"face-search/internal/controller"
	"face-search/internal/render"
	"face-search/pkg/gateway_client"

	"github.com/spf13/cobra"
)

// rootOptions - общие флаги всех команд
type rootOptions struct {
	gateway string
	timeout time.Duration
	light   bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "facesearch",
		Short: "Find faces similar to a photo through the face-search gateway",
		Long: `facesearch sends a photo to the face-search gateway and prints the most
similar faces with their distances.

The gateway address is taken from --gateway, then GATEWAY_URL (a .env file
is read if present), then http://localhost:8000.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("gateway") {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.gateway = cfg.Gateway.URL
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.gateway, "gateway", "", "Gateway base URL (default: GATEWAY_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "Timeout of a single gateway request")
	flags.BoolVar(&opts.light, "light", false, "Use the light terminal palette")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log session transitions to stderr")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newInteractiveCmd(opts))

	return cmd
}

// newController создает контроллер сессии поверх клиента шлюза
func (o *rootOptions) newController(cmd *cobra.Command) *controller.Controller {
	client := gateway_client.NewClient(o.gateway, o.timeout)
	return controller.New(client, config.NewCLILogger(cmd.ErrOrStderr(), o.verbose))
}

// renderOptions включает цвет только если вывод идет в терминал
func (o *rootOptions) renderOptions(w io.Writer) render.Options {
	if f, ok := w.(*os.File); ok {
		return render.DetectOptions(f, !o.light)
	}
	return render.Options{DarkMode: !o.light}
}
