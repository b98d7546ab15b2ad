// Command transbot-sign produces and checks v2 signature headers for
// internal calls, and issues admin bearer tokens for local testing.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transbot-ops/internal/admin"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/config"
	"transbot-ops/internal/replayguard"
	"transbot-ops/internal/signature"
)

const secretEnv = "TRANSBOT_SIGNING_SECRET"

type requestFlags struct {
	keyID    string
	secret   string
	method   string
	path     string
	body     string
	bodyFile string
	company  string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyID, "key-id", config.DefaultSigningKeyID, "signing key id")
	cmd.Flags().StringVar(&f.secret, "secret", "", "signing secret (default $"+secretEnv+")")
	cmd.Flags().StringVarP(&f.method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().StringVar(&f.path, "path", "/", "request path without query string")
	cmd.Flags().StringVarP(&f.body, "body", "d", "", "request body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the request body from a file")
	cmd.Flags().StringVar(&f.company, "company", "", "value for the X-Transbot-Company header")
}

func (f *requestFlags) resolveSecret() ([]byte, error) {
	secret := f.secret
	if secret == "" {
		secret = os.Getenv(secretEnv)
	}
	if secret == "" {
		return nil, fmt.Errorf("a signing secret is required (--secret or $%s)", secretEnv)
	}
	return []byte(secret), nil
}

func (f *requestFlags) resolveBody() ([]byte, error) {
	if f.bodyFile != "" {
		if f.body != "" {
			return nil, fmt.Errorf("--body and --body-file are mutually exclusive")
		}
		return os.ReadFile(f.bodyFile)
	}
	return []byte(f.body), nil
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "transbot-sign",
		Short:         "Sign and check transbot internal requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newHeaderCommand(), newVerifyCommand(), newTokenCommand())
	return root
}

func newHeaderCommand() *cobra.Command {
	var flags requestFlags
	var curl bool

	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print an X-Transbot-Signature header for a request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := flags.resolveSecret()
			if err != nil {
				return err
			}
			body, err := flags.resolveBody()
			if err != nil {
				return err
			}

			env := signature.NewSigner(flags.keyID, secret).Sign(strings.ToUpper(flags.method), flags.path, body)
			out := cmd.OutOrStdout()
			if !curl {
				fmt.Fprintln(out, env.String())
				return nil
			}

			fmt.Fprintf(out, "-H '%s: %s'", signature.HeaderName, env.String())
			if flags.company != "" {
				fmt.Fprintf(out, " -H '%s: %s'", signature.CompanyHeader, flags.company)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&curl, "curl", false, "print the headers as curl arguments")
	return cmd
}

func newVerifyCommand() *cobra.Command {
	var flags requestFlags
	var header string
	var skew int64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a signature header against a request at the current time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := flags.resolveSecret()
			if err != nil {
				return err
			}
			body, err := flags.resolveBody()
			if err != nil {
				return err
			}
			if header == "" {
				return fmt.Errorf("--header is required")
			}

			verdict, err := verifyOnce(flags, secret, header, body, skew)
			if err != nil {
				return err
			}
			if !verdict.OK {
				return fmt.Errorf("rejected: %s", verdict.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok key_id=%s ts=%d nonce=%s\n", verdict.KeyID, verdict.Timestamp, verdict.Nonce)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&header, "header", "", "X-Transbot-Signature value to check")
	cmd.Flags().Int64Var(&skew, "skew", config.DefaultSkewSeconds, "allowed clock skew in seconds")
	return cmd
}

// verifyOnce runs the service verifier against a synthetic request with a
// fresh in-memory nonce ledger. path is taken as it appears on the wire, so
// percent-encoding is kept.
func verifyOnce(flags requestFlags, secret []byte, header string, body []byte, skew int64) (signature.Verdict, error) {
	if !strings.HasPrefix(flags.path, "/") {
		return signature.Verdict{}, fmt.Errorf("--path must start with '/'")
	}
	req, err := http.NewRequest(strings.ToUpper(flags.method), "http://localhost"+flags.path, bytes.NewReader(body))
	if err != nil {
		return signature.Verdict{}, fmt.Errorf("invalid --path: %w", err)
	}
	req.Header.Set(signature.HeaderName, header)
	if flags.company != "" {
		req.Header.Set(signature.CompanyHeader, flags.company)
	}

	verifier := signature.NewVerifier(signature.VerifierConfig{
		Keys:        signature.NewStaticKeys(map[string]string{flags.keyID: string(secret)}),
		Nonces:      replayguard.New(replayguard.NewMemoryStore(), nil),
		SkewSeconds: skew,
	}, logging.NewNopLogger())
	return verifier.Verify(req), nil
}

func newTokenCommand() *cobra.Command {
	var secret, user string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			provider, err := admin.NewJWTIdentityProvider(secret)
			if err != nil {
				return err
			}
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			token, err := provider.IssueToken(user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret (default $AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&user, "user", "", "user id placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
