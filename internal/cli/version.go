package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/instrumentation"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show badcurl and transfer engine versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := badcurl.Init(); err != nil {
				return err
			}
			v := badcurl.Version()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "badcurl %s\n", instrumentation.ServiceVersion)
			fmt.Fprintf(out, "engine: %s\n", v.Version)
			fmt.Fprintf(out, "protocols: %s\n", strings.Join(v.Protocols, " "))
			if len(v.Features) > 0 {
				fmt.Fprintf(out, "features: %s\n", strings.Join(v.Features, " "))
			}
			return nil
		},
	}
}

func newProfilesCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the browser profiles available for impersonation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, id := range profiles.All() {
				if !detailed {
					fmt.Fprintln(out, id)
					continue
				}
				p := profiles.Lookup(id)
				fmt.Fprintf(out, "%s\n  ja3: %s\n  akamai: %s\n", p.Name, p.JA3(), p.Akamai())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&detailed, "fingerprints", "F", false, "Show the JA3 and Akamai fingerprint of each profile")
	return cmd
}
