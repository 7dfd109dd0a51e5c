package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"focusflow/internal/config"
	"focusflow/internal/core/pomodoro"
	"focusflow/internal/platform"
	"focusflow/internal/ui/tray"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const requestTimeout = 10 * time.Second

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <action> [json]",
		Short: "Send a message to the running engine",
		Example: `  focusflow send startPomodoro
  focusflow send resetPomodoro '{"resetCycle":true}'
  focusflow send getPomodoroStatsForDate '{"date":"2026-10-19"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := ""
			if len(args) == 2 {
				params = args[1]
			}
			body, err := buildRequest(args[0], params)
			if err != nil {
				return err
			}
			addr, err := serverAddr(cmd)
			if err != nil {
				return err
			}
			response, err := postMessage(cmd.Context(), addr, body)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, response, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(response)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			if result := gjson.GetBytes(response, "success"); result.Exists() && !result.Bool() {
				return fmt.Errorf("%s failed", args[0])
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Engine address (default: the running instance, then listen from config)")
	return cmd
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the Pomodoro timer status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := serverAddr(cmd)
			if err != nil {
				return err
			}
			body, _ := buildRequest("getPomodoroStatus", "")
			response, err := postMessage(cmd.Context(), addr, body)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(response)))
				return nil
			}
			var status pomodoro.Status
			if err := json.Unmarshal(response, &status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			notify := "off"
			if status.NotifyEnabled {
				notify = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nNotifications: %s\n", tray.StatusLine(status), notify)
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Engine address (default: the running instance, then listen from config)")
	cmd.Flags().Bool("json", false, "Print the raw status")
	return cmd
}

// buildRequest merges the action into the optional JSON object params.
func buildRequest(action, params string) ([]byte, error) {
	request := map[string]any{}
	if params != "" {
		if !gjson.Valid(params) || !gjson.Parse(params).IsObject() {
			return nil, fmt.Errorf("parameters must be a JSON object: %s", params)
		}
		if err := json.Unmarshal([]byte(params), &request); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}
	request["action"] = action
	return json.Marshal(request)
}

func serverAddr(cmd *cobra.Command) (string, error) {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		return addr, nil
	}
	if addr, err := platform.RunningInstance(cmd.Context(), config.AppName); err == nil && addr != "" {
		return addr, nil
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Listen, nil
}

func postMessage(ctx context.Context, addr string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/api/message", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("reach focusflow at %s: %w", addr, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("focusflow answered %s: %s", response.Status, gjson.GetBytes(payload, "error").String())
	}
	return payload, nil
}
