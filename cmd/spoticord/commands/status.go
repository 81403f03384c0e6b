package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chiraitori/spoticord/internal/cli/output"
	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/responder"
)

var (
	statusOutput  string
	statusAddress string
	statusTimeout time.Duration
)

// errUnhealthy makes status exit non-zero so it can back a container
// HEALTHCHECK.
var errUnhealthy = errors.New("liveness responder is not healthy")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the liveness responder",
	Long: `Send one request to the liveness responder and report what came back.

The address comes from the configured responder variant unless --address is
given. Exits non-zero when the responder does not answer 200.

Examples:
  # Probe the configured responder
  spoticord status

  # Probe an explicit address, as JSON
  spoticord status --address 127.0.0.1:8080 --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().StringVar(&statusAddress, "address", "", "Responder address (default: from configuration)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 3*time.Second, "Probe timeout")
}

// ResponderStatus is the rendered probe result.
type ResponderStatus struct {
	Healthy bool   `json:"healthy" yaml:"healthy"`
	Message string `json:"message" yaml:"message"`

	responder.ProbeResult `yaml:",inline"`
}

// Headers implements output.TableRenderer.
func (s ResponderStatus) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements output.TableRenderer.
func (s ResponderStatus) Rows() [][]string {
	return [][]string{
		{"Address", s.Address},
		{"Healthy", strconv.FormatBool(s.Healthy)},
		{"Status", s.StatusLine},
		{"Latency", s.Latency.Round(time.Microsecond).String()},
		{"Bytes", strconv.Itoa(s.Bytes)},
		{"Message", s.Message},
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	addr := statusAddress
	if addr == "" {
		cfg, err := config.MustLoad(GetConfigFile())
		if err != nil {
			return err
		}
		addr = responderAddress(cfg.Responder)
	}

	res, probeErr := responder.Probe(cmd.Context(), addr, statusTimeout)
	status := ResponderStatus{
		Healthy:     probeErr == nil && res.Healthy(),
		ProbeResult: res,
	}
	switch {
	case probeErr != nil:
		status.Message = probeErr.Error()
	case status.Healthy:
		status.Message = "Liveness responder is answering"
	default:
		status.Message = fmt.Sprintf("Unexpected status %d", res.StatusCode)
	}

	if err := output.Print(os.Stdout, format, status); err != nil {
		return err
	}
	if !status.Healthy {
		return errUnhealthy
	}
	return nil
}
