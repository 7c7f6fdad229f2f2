package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/staffproof/internal/fetch"
)

var (
	mutateBulk     string
	mutateVerifier string
)

var mutateCmd = &cobra.Command{
	Use:   "mutate <resource> [<id> <action|delete>]",
	Short: "Run a record action, a delete, or a bulk action",
	Long: `Mutate sends one write to the API and prints the server's answer.

Example:
  sp mutate notifications n3 read
  sp mutate cases c1 assign --verifier v3
  sp mutate cases c1 close
  sp mutate employees e4 delete
  sp mutate notifications --bulk mark-all-read`,
	Args: func(cmd *cobra.Command, args []string) error {
		if mutateBulk != "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: runMutate,
}

func init() {
	mutateCmd.Flags().StringVar(&mutateBulk, "bulk", "", "collection action, e.g. mark-all-read")
	mutateCmd.Flags().StringVar(&mutateVerifier, "verifier", "", "verifier id for assign (default: least loaded)")
}

func runMutate(cmd *cobra.Command, args []string) error {
	d, err := lookup(args[0])
	if err != nil {
		return err
	}
	res := fetch.NewResource[json.RawMessage](client, d.Name)
	ctx := cmd.Context()

	if mutateBulk != "" {
		if !d.HasBulk(mutateBulk) {
			return fmt.Errorf("%s has no bulk action %q", d.Name, mutateBulk)
		}
		n, err := res.Bulk(ctx, mutateBulk)
		if err != nil {
			return describeError(err)
		}
		if flagJSON {
			return printJSON(map[string]any{"success": true, "affected": n})
		}
		fmt.Printf("%s %s: %d affected\n", d.Name, mutateBulk, n)
		return nil
	}

	id, action := args[1], args[2]
	if action == "delete" {
		if d.ReadOnly {
			return fmt.Errorf("%s is read-only", d.Name)
		}
		if err := res.Delete(ctx, id); err != nil {
			return describeError(err)
		}
		if flagJSON {
			return printJSON(map[string]any{"success": true})
		}
		fmt.Printf("deleted %s/%s\n", d.Name, id)
		return nil
	}

	if !d.HasAction(action) {
		return fmt.Errorf("%s has no action %q", d.Name, action)
	}
	var payload any
	if mutateVerifier != "" {
		payload = map[string]string{"verifierId": mutateVerifier}
	}
	out, err := res.Action(ctx, id, action, payload)
	if err != nil {
		return describeError(err)
	}
	return printJSON(out)
}
