package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/server"
)

func newProveCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "prove <name>",
		Args:    cobra.ExactArgs(1),
		Short:   "collects a DNSSEC proof of a record set from the configured upstreams",
		PreRunE: initConfigPreRun,
		RunE:    prove,
	}

	c.Flags().StringP("type", "t", "TXT", "record type (TXT, A, ...)")
	c.Flags().StringP("out", "o", "", "write the JSON proof to this file instead of stdout")
	c.Flags().Bool("verify", false, "verify the collected proof with the configured trust anchors")
	c.Flags().Uint32("now", 0, "verification time in seconds since epoch, the current time if 0")

	return c
}

func prove(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	out, _ := cmd.Flags().GetString("out")
	verify, _ := cmd.Flags().GetBool("verify")
	now, _ := cmd.Flags().GetUint32("now")

	qType, err := server.ParseType(typeFlag)
	if err != nil {
		return err
	}

	source, err := newProofSource(cfg.Prover)
	if err != nil {
		return fmt.Errorf("can't create prover: %w", err)
	}

	if source == nil {
		return errors.New("no upstream configured")
	}

	proof, err := source.QueryWithProof(cmd.Context(), qType, args[0])
	if err != nil {
		return err
	}

	log.Log().Infof("Proof of %s %s has %d steps:", proof.Name, dns.TypeToString[proof.Type], len(proof.Sets))

	for i, s := range proof.Sets {
		log.Log().Infof("\t%d: %s %s signed by %s (key tag %d)",
			i, s.Sig.Header().Name, dns.TypeToString[s.Sig.TypeCovered], s.Sig.SignerName, s.Sig.KeyTag)
	}

	data, err := json.MarshalIndent(api.NewProof(proof.Steps), "", "  ")
	if err != nil {
		return fmt.Errorf("can't marshal proof: %w", err)
	}

	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("can't write proof: %w", err)
	}

	if verify {
		return verifyAndPrint(cmd.Context(), proof.Steps, now)
	}

	return nil
}
