package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/atrecord/internal/client"
)

func newRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Read repository records",
		Long:  `Fetch records from a repository collection as JSON.`,
	}

	cmd.AddCommand(newRecordGetCommand())
	cmd.AddCommand(newRecordListCommand())

	return cmd
}

// recordOutput is a record with its decoded content identifier
type recordOutput struct {
	URI        string          `json:"uri"`
	CID        string          `json:"cid"`
	CIDVersion uint64          `json:"cid_version,omitempty"`
	Codec      string          `json:"codec,omitempty"`
	Value      json.RawMessage `json:"value"`
}

func newRecordOutput(r client.Record[json.RawMessage]) recordOutput {
	out := recordOutput{URI: r.URI, CID: r.CID, Value: r.Value}
	if c, err := r.ParsedCID(); err == nil {
		out.CIDVersion = c.Version()
		out.Codec = codecName(c)
	}
	return out
}

func codecName(c cid.Cid) string {
	name := multicodec.Code(c.Type()).String()
	if strings.HasPrefix(name, "Code(") {
		return fmt.Sprintf("0x%x", c.Type())
	}
	return name
}

func newRecordGetCommand() *cobra.Command {
	var envelope bool

	cmd := &cobra.Command{
		Use:   "get REPO COLLECTION [RKEY]",
		Short: "Fetch one record",
		Long: `Fetch one record by repository, collection and record key.

Examples:
  atrecord record get alice.example.com app.bsky.actor.profile self
  atrecord record get did:plc:abc123 app.bsky.feed.post 3k2a4b --envelope`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			c, closer, err := openClient(cmd, cliCtx)
			if err != nil {
				return err
			}
			defer closer.Close()

			rkey := ""
			if len(args) == 3 {
				rkey = args[2]
			}

			record, err := client.GetRecordEnvelope[json.RawMessage](cmd.Context(), c, args[0], args[1], rkey)
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}

			if envelope {
				return printJSON(cmd.OutOrStdout(), newRecordOutput(*record), cliCtx.Context.Rendering.Theme)
			}
			return printJSON(cmd.OutOrStdout(), record.Value, cliCtx.Context.Rendering.Theme)
		},
	}

	cmd.Flags().BoolVar(&envelope, "envelope", false, "Include the record's uri and cid")

	return cmd
}

func newRecordListCommand() *cobra.Command {
	var (
		envelope bool
		rkey     string
	)

	cmd := &cobra.Command{
		Use:   "list REPO COLLECTION",
		Short: "List the records of a collection",
		Long: `List the records of a collection in the order the service returns them.

Examples:
  atrecord record list alice.example.com app.bsky.feed.post
  atrecord record list alice.example.com app.bsky.feed.like --envelope`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			c, closer, err := openClient(cmd, cliCtx)
			if err != nil {
				return err
			}
			defer closer.Close()

			records, err := client.ListRecordEnvelopes[json.RawMessage](cmd.Context(), c, args[0], args[1], rkey)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			if envelope {
				out := make([]recordOutput, 0, len(records))
				for _, r := range records {
					out = append(out, newRecordOutput(r))
				}
				return printJSON(cmd.OutOrStdout(), out, cliCtx.Context.Rendering.Theme)
			}

			values := make([]json.RawMessage, 0, len(records))
			for _, r := range records {
				values = append(values, r.Value)
			}
			return printJSON(cmd.OutOrStdout(), values, cliCtx.Context.Rendering.Theme)
		},
	}

	cmd.Flags().BoolVar(&envelope, "envelope", false, "Include each record's uri and cid")
	cmd.Flags().StringVar(&rkey, "rkey", "", "Record key to filter on")

	return cmd
}
