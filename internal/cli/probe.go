package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Ask every provider and show which ones can answer",
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	chain, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer chain.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tIDLE\tERROR")
	for _, r := range chain.Probe() {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\t-\t%v\n", r.Provider, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t\n", r.Provider, formatIdle(r.Idle, flags.millis))
	}
	return w.Flush()
}
