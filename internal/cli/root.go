package cli

import (
	"context"
	"errors"
	goflag "flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl"
)

// NewRootCmd builds the badcurl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "badcurl",
		Short: "Fetch URLs with the TLS and HTTP/2 fingerprint of a real browser",
		Long: `badcurl performs HTTP transfers through an impersonating transfer engine.
Each request presents the ClientHello, HTTP/2 settings and header order of the
selected browser profile.

Flag defaults can be set through BADCURL_IMPERSONATE, BADCURL_PROXY and
BADCURL_TIMEOUT, either in the environment or in a .env file.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().String("env-file", ".env", "File with environment defaults")

	// klog's flags, -v included.
	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	root.PersistentFlags().AddGoFlagSet(fs)

	root.AddCommand(newGetCmd(), newProfilesCmd(), newVersionCmd())
	return root
}

// Execute runs the command line and returns the first error.
func Execute(ctx context.Context) error {
	defer klog.Flush()
	return NewRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit status: the
// engine code for failed transfers, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var berr *badcurl.Error
	if errors.As(err, &berr) && berr.Kind == badcurl.KindNative && berr.Code != 0 {
		return int(berr.Code)
	}
	return 1
}
