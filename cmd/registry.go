package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

func newRegistryCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "registry",
		Short: "Shows or changes the algorithm and digest bindings of the running oracle",
	}

	c.PersistentFlags().String("token", "", "admin token, required to change a binding")

	c.AddCommand(newBindingCommand("algorithm", "signature algorithm", api.PathAlgorithms),
		newBindingCommand("digest", "digest", api.PathDigests))

	return c
}

func newBindingCommand(name, title, path string) *cobra.Command {
	return &cobra.Command{
		Use:     name + " <id> [handler]",
		Args:    cobra.RangeArgs(1, 2),
		Short:   fmt.Sprintf("Shows the %s handler bound to id or binds handler to it", title),
		PreRunE: initConfigPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return binding(cmd, name, path, args)
		},
	}
}

func binding(cmd *cobra.Command, name, path string, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid %s id '%s'", name, args[0])
	}

	method := http.MethodGet

	var body io.Reader

	if len(args) == 2 {
		data, err := json.Marshal(api.BindingRequest{Handler: args[1]})
		if err != nil {
			return fmt.Errorf("can't marshal request: %w", err)
		}

		method = http.MethodPut
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, fmt.Sprintf("%s/%d", apiURL(path), id), body)
	if err != nil {
		return fmt.Errorf("can't create request: %w", err)
	}

	if body != nil {
		req.Header.Set(api.ContentTypeHeader, api.JSONContentType)
	}

	if token, _ := cmd.Flags().GetString("token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("can't execute: %w", err)
	}

	var result api.BindingResult
	if err := readResponse(resp, &result); err != nil {
		return err
	}

	log.Log().Infof("%s %d = %s", name, result.ID, result.Handler)

	return nil
}
