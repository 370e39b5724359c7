package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3001"

type apiClientOptions struct {
	serverURL  string
	timeout    time.Duration
	jsonOutput bool
}

func newAPIClientOptions() *apiClientOptions {
	return &apiClientOptions{
		serverURL: os.Getenv("AUTOPAY_SERVER"),
		timeout:   15 * time.Second,
	}
}

func (o *apiClientOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.serverURL, "server", o.serverURL, "Agent API base URL (defaults to $AUTOPAY_SERVER or "+defaultServerURL+")")
	cmd.Flags().DurationVar(&o.timeout, "timeout", o.timeout, "HTTP request timeout")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "Print raw JSON responses")
}

func (o *apiClientOptions) do(method, path string) (int, map[string]any, error) {
	server := strings.TrimSpace(o.serverURL)
	if server == "" {
		server = defaultServerURL
	}
	server = strings.TrimSuffix(server, "/")

	req, err := http.NewRequest(method, server+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, parsed, nil
}

func (o *apiClientOptions) printJSON(parsed map[string]any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(parsed)
}

// NewDelegationsCommand groups delegation management subcommands.
func NewDelegationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delegations",
		Short: "Inspect and manage stored delegations",
	}
	cmd.AddCommand(newDelegationsListCommand())
	cmd.AddCommand(newDelegationsGetCommand())
	cmd.AddCommand(newDelegationsDeleteCommand())
	return cmd
}

func newDelegationsListCommand() *cobra.Command {
	opts := newAPIClientOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored delegations",
		RunE: func(_ *cobra.Command, _ []string) error {
			status, parsed, err := opts.do(http.MethodGet, "/api/v1/delegations")
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("list failed (%d): %v", status, parsed)
			}
			if opts.jsonOutput {
				return opts.printJSON(parsed)
			}
			total, _ := parsed["total"].(float64)
			fmt.Printf("%d delegation(s) stored\n", int(total))
			if delegations, ok := parsed["delegations"].([]any); ok {
				for _, entry := range delegations {
					if m, ok := entry.(map[string]any); ok {
						fmt.Printf("  %v\n", m["subscriber"])
					}
				}
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func newDelegationsGetCommand() *cobra.Command {
	opts := newAPIClientOptions()
	cmd := &cobra.Command{
		Use:   "get <address>",
		Short: "Show the stored delegation for a subscriber address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			status, parsed, err := opts.do(http.MethodGet, "/api/v1/delegations/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("get failed (%d): %v", status, parsed)
			}
			return opts.printJSON(parsed)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func newDelegationsDeleteCommand() *cobra.Command {
	opts := newAPIClientOptions()
	cmd := &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete the stored delegation for a subscriber address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			status, parsed, err := opts.do(http.MethodDelete, "/api/v1/delegations/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("delete failed (%d): %v", status, parsed)
			}
			fmt.Printf("deleted delegation for %v\n", parsed["deleted"])
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewAttemptsCommand lists recorded payment attempts.
func NewAttemptsCommand() *cobra.Command {
	opts := newAPIClientOptions()
	var (
		subscriber string
		statusFlag string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List payment attempts recorded by the agent",
		RunE: func(_ *cobra.Command, _ []string) error {
			query := url.Values{}
			if subscriber != "" {
				query.Set("subscriber", subscriber)
			}
			if statusFlag != "" {
				query.Set("status", statusFlag)
			}
			if limit > 0 {
				query.Set("limit", fmt.Sprintf("%d", limit))
			}
			path := "/api/v1/payments/attempts"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			status, parsed, err := opts.do(http.MethodGet, path)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("attempts query failed (%d): %v", status, parsed)
			}
			if opts.jsonOutput {
				return opts.printJSON(parsed)
			}
			total, _ := parsed["total"].(float64)
			fmt.Printf("%d attempt(s)\n", int(total))
			if attempts, ok := parsed["attempts"].([]any); ok {
				for _, entry := range attempts {
					if m, ok := entry.(map[string]any); ok {
						fmt.Printf("  %v  %v  subscriptions=%v\n", m["status"], m["subscriber"], m["subscription_ids"])
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subscriber, "subscriber", "", "Filter by subscriber address")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by attempt status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit the number of attempts returned")
	opts.addFlags(cmd)
	return cmd
}

// NewHealthCommand probes the agent's health endpoint.
func NewHealthCommand() *cobra.Command {
	opts := newAPIClientOptions()
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check agent health and readiness",
		RunE: func(_ *cobra.Command, _ []string) error {
			status, parsed, err := opts.do(http.MethodGet, "/health")
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("health check failed (%d): %v", status, parsed)
			}
			return opts.printJSON(parsed)
		},
	}
	opts.addFlags(cmd)
	return cmd
}
