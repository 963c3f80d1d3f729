package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// parseParams turns key=value pairs into query parameters
func parseParams(pairs []string) (url.Values, error) {
	params := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", pair)
		}
		params.Add(key, value)
	}
	return params, nil
}

func newCallCommand() *cobra.Command {
	var (
		post   bool
		params []string
		data   string
	)

	cmd := &cobra.Command{
		Use:   "call NSID",
		Short: "Invoke any XRPC method",
		Long: `Invoke an XRPC query (GET) or procedure (POST) with the stored session and print the response.

Examples:
  atrecord call com.atproto.server.getSession
  atrecord call com.atproto.repo.describeRepo -p repo=alice.example.com
  atrecord call com.atproto.repo.createRecord --post --data '{"repo":"...","collection":"...","record":{}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			nsid := args[0]

			query, err := parseParams(params)
			if err != nil {
				return err
			}

			method := http.MethodGet
			var body any
			if post {
				method = http.MethodPost
				if data != "" {
					var raw json.RawMessage
					if err := json.Unmarshal([]byte(data), &raw); err != nil {
						return fmt.Errorf("invalid --data: %w", err)
					}
					body = raw
				}
			} else if data != "" {
				return fmt.Errorf("--data requires --post")
			}

			c, closer, err := openClient(cmd, cliCtx)
			if err != nil {
				return err
			}
			defer closer.Close()

			var out json.RawMessage
			if err := c.Call(cmd.Context(), method, nsid, query, body, &out); err != nil {
				return fmt.Errorf("%s failed: %w", nsid, err)
			}
			if len(out) == 0 {
				return nil
			}
			return printJSON(cmd.OutOrStdout(), out, cliCtx.Context.Rendering.Theme)
		},
	}

	cmd.Flags().BoolVar(&post, "post", false, "Send as a procedure (POST)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body for --post")

	return cmd
}
