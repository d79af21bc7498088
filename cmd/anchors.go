package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

func newAnchorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "anchors",
		Args:    cobra.NoArgs,
		Short:   "prints the trust anchors of the running oracle",
		PreRunE: initConfigPreRun,
		RunE:    printAnchors,
	}
}

func printAnchors(cmd *cobra.Command, _ []string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, apiURL(api.PathAnchors), nil)
	if err != nil {
		return fmt.Errorf("can't create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("can't execute: %w", err)
	}

	var result api.AnchorsResult
	if err := readResponse(resp, &result); err != nil {
		return err
	}

	log.Log().Infof("Trust anchors version %d:", result.Version)

	for _, a := range result.Anchors {
		log.Log().Infof("\t%5d %s", a.KeyTag, a.Record)
	}

	return nil
}
