package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/easy"
	"github.com/ditsuke/go-badcurl/badcurl/instrumentation"
	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
	"github.com/ditsuke/go-badcurl/internal/extract"
)

const compressedEncodings = "gzip, deflate, br, zstd"

type getOptions struct {
	impersonate    string
	headers        []string
	method         string
	data           string
	output         string
	timeout        time.Duration
	connectTimeout time.Duration
	proxy          string
	insecure       bool
	location       bool
	maxRedirs      int
	fail           bool
	include        bool
	verbose        bool
	compressed     bool

	selector  string
	outerHTML bool
	text      bool
	title     bool
	charset   string

	info         bool
	metrics      bool
	otlpEndpoint string
}

func newGetCmd() *cobra.Command {
	o := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Fetch a URL while impersonating a browser",
		Example: `  badcurl get https://tls.peet.ws/api/all --impersonate firefox_133
  badcurl get https://example.com --select "h1" --charset windows-1252`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			o.applyDefaults(cmd, loadConfig(envFile))
			return o.run(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.impersonate, "impersonate", "", fmt.Sprintf("Browser profile to impersonate, or %q (default %s)", noProfile, defaultProfile))
	f.StringArrayVarP(&o.headers, "header", "H", nil, "Extra header (\"Name: value\"), can be repeated")
	f.StringVarP(&o.method, "request", "X", "", "Request method")
	f.StringVarP(&o.data, "data", "d", "", "Send data as the body of a POST request")
	f.StringVarP(&o.output, "output", "o", "", "Write output to a file instead of stdout")
	f.DurationVarP(&o.timeout, "timeout", "m", 0, "Maximum time for the whole transfer (default 30s)")
	f.DurationVar(&o.connectTimeout, "connect-timeout", 0, "Maximum time to establish the connection")
	f.StringVarP(&o.proxy, "proxy", "x", "", "Proxy URL (http, https, socks5)")
	f.BoolVarP(&o.insecure, "insecure", "k", false, "Skip certificate verification")
	f.BoolVarP(&o.location, "location", "L", false, "Follow redirects")
	f.IntVar(&o.maxRedirs, "max-redirs", 30, "Maximum number of redirects to follow, -1 for unlimited")
	f.BoolVarP(&o.fail, "fail", "f", false, "Fail on HTTP responses of 400 and above")
	f.BoolVarP(&o.include, "include", "i", false, "Include response headers in the output")
	f.BoolVar(&o.verbose, "verbose", false, "Print transfer diagnostics to stderr")
	f.BoolVar(&o.compressed, "compressed", false, "Request a compressed response and decode it")

	f.StringVar(&o.selector, "select", "", "Print the text of elements matching a CSS selector")
	f.BoolVar(&o.outerHTML, "outer-html", false, "With --select, print matching elements as HTML")
	f.BoolVar(&o.text, "text", false, "Print the document as plain text")
	f.BoolVar(&o.title, "title", false, "Print the document title")
	f.StringVar(&o.charset, "charset", "", "Decode the body from this charset instead of detecting it")

	f.BoolVar(&o.info, "info", false, "Print transfer information to stderr")
	f.BoolVar(&o.metrics, "metrics", false, "Print transfer metrics in Prometheus text format to stderr")
	f.StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "Export the transfer trace to this OTLP/HTTP endpoint")
	return cmd
}

// applyDefaults fills flags the user left unset from cfg.
func (o *getOptions) applyDefaults(cmd *cobra.Command, cfg config) {
	f := cmd.Flags()
	if !f.Changed("impersonate") {
		o.impersonate = cfg.Impersonate
	}
	if !f.Changed("proxy") {
		o.proxy = cfg.Proxy
	}
	if !f.Changed("timeout") {
		o.timeout = cfg.Timeout
	}
}

func (o *getOptions) extracting() bool {
	return o.selector != "" || o.text || o.title
}

func (o *getOptions) run(cmd *cobra.Command, url string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var registry *prometheus.Registry
	if o.metrics || o.otlpEndpoint != "" {
		cfg := instrumentation.DefaultConfig()
		cfg.OTLPEndpoint = o.otlpEndpoint
		cfg.SampleRate = 1
		cfg.MetricsEnabled = o.metrics
		if o.metrics {
			registry = prometheus.NewRegistry()
			cfg.Registerer = registry
		}
		shutdown, err := instrumentation.Init(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize instrumentation: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				klog.Warningf("cli: instrumentation shutdown: %v", err)
			}
		}()
	}

	h := easy.New(easy.WithContext(ctx))
	defer h.Close()

	if err := o.configure(h, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if err := h.URL(url); err != nil {
		return err
	}

	var headers, body bytes.Buffer
	var contentType string
	err := h.HeaderFunction(func(line []byte) bool {
		if bytes.HasPrefix(line, []byte("HTTP/")) {
			headers.Reset()
			contentType = ""
		}
		headers.Write(line)
		if name, value, ok := strings.Cut(string(line), ":"); ok && strings.EqualFold(strings.TrimSpace(name), "content-type") {
			contentType = strings.TrimSpace(value)
		}
		return true
	})
	if err != nil {
		return err
	}
	if err := h.BodyWriter(&body); err != nil {
		return err
	}

	if err := h.Perform(); err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}

	out := cmd.OutOrStdout()
	if o.output != "" {
		file, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	if o.include {
		if _, err := out.Write(headers.Bytes()); err != nil {
			return err
		}
	}
	if err := o.writeBody(out, &body, contentType); err != nil {
		return err
	}

	if o.info {
		printInfo(cmd.ErrOrStderr(), h)
	}
	if registry != nil {
		return writeMetrics(cmd.ErrOrStderr(), registry)
	}
	return nil
}

// configure applies the flags to h.
func (o *getOptions) configure(h *easy.Easy, stderr io.Writer) error {
	if o.impersonate != "" && o.impersonate != noProfile {
		id, err := profiles.ParseID(o.impersonate)
		if err != nil {
			return err
		}
		if err := h.Impersonate(id, true); err != nil {
			return err
		}
	}

	steps := []func() error{
		func() error { return h.Timeout(o.timeout) },
		func() error { return h.ConnectTimeout(o.connectTimeout) },
		func() error { return h.SSLVerifyPeer(!o.insecure) },
		func() error { return h.FollowLocation(o.location) },
		func() error { return h.MaxRedirections(o.maxRedirs) },
		func() error { return h.FailOnError(o.fail) },
		func() error { return h.Proxy(o.proxy) },
	}
	if o.compressed {
		steps = append(steps, func() error { return h.AcceptEncoding(compressedEncodings) })
	}
	if len(o.headers) > 0 {
		steps = append(steps, func() error { return h.HTTPHeaders(o.headers) })
	}
	if o.data != "" {
		steps = append(steps, func() error { return h.PostFields(o.data) })
	}
	if o.method != "" {
		steps = append(steps, func() error { return h.CustomRequest(o.method) })
	}
	if o.verbose {
		steps = append(steps,
			func() error { return h.DebugFunction(debugPrinter(stderr)) },
			func() error { return h.Verbose(true) },
		)
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (o *getOptions) writeBody(out io.Writer, body io.Reader, contentType string) error {
	if !o.extracting() && o.charset == "" {
		_, err := io.Copy(out, body)
		return err
	}

	decoded, err := extract.Decode(body, o.charset, contentType)
	if err != nil {
		return err
	}
	if !o.extracting() {
		_, err := io.Copy(out, decoded)
		return err
	}

	doc, err := io.ReadAll(decoded)
	if err != nil {
		return err
	}
	var lines []string
	switch {
	case o.selector != "":
		lines, err = extract.Select(bytes.NewReader(doc), o.selector, o.outerHTML)
	case o.title:
		var title string
		title, err = extract.Title(bytes.NewReader(doc))
		lines = []string{title}
	default:
		lines = []string{extract.Text(bytes.NewReader(doc))}
	}
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

var debugPrefixes = map[native.InfoType]string{
	native.InfoText:      "* ",
	native.InfoHeaderOut: "> ",
	native.InfoHeaderIn:  "< ",
}

// debugPrinter writes text and header diagnostics in curl's verbose layout.
func debugPrinter(w io.Writer) easy.DebugFunc {
	return func(kind native.InfoType, data []byte) {
		prefix, ok := debugPrefixes[kind]
		if !ok {
			return
		}
		for _, line := range strings.SplitAfter(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprint(w, prefix, strings.TrimRight(line, "\r\n"), "\n")
		}
	}
}

// printInfo reports whatever transfer information the engine provides.
func printInfo(w io.Writer, h *easy.Easy) {
	if code, err := h.ResponseCode(); err == nil {
		fmt.Fprintf(w, "response_code: %d\n", code)
	}
	if url, err := h.EffectiveURL(); err == nil {
		fmt.Fprintf(w, "url_effective: %s\n", url)
	}
	if v, err := h.HTTPVersionUsed(); err == nil {
		fmt.Fprintf(w, "http_version: %s\n", httpVersionName(v))
	}
	if d, err := h.TotalTime(); err == nil {
		fmt.Fprintf(w, "time_total: %s\n", d)
	}
	if n, err := h.SizeDownload(); err == nil {
		fmt.Fprintf(w, "size_download: %d\n", n)
	}
	if id, ok := h.Profile(); ok {
		fmt.Fprintf(w, "profile: %s\n", id)
	}
	if fp, err := h.TLSFingerprint(); err == nil && fp != "" {
		fmt.Fprintf(w, "tls_fingerprint: %s\n", fp)
	}
	if fp, err := h.HTTP2Fingerprint(); err == nil && fp != "" {
		fmt.Fprintf(w, "http2_fingerprint: %s\n", fp)
	}
}

func httpVersionName(v int64) string {
	switch v {
	case native.HTTPVersion1_0:
		return "1.0"
	case native.HTTPVersion1_1:
		return "1.1"
	case native.HTTPVersion2_0, native.HTTPVersion2TLS, native.HTTPVersion2PriorKnowledge:
		return "2"
	default:
		return "unknown"
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
