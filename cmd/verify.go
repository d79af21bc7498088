package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/dnssec"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/oracle"
	"github.com/mdtanrikulu/dnssec-oracle/store"
)

func newVerifyCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "verify <proof file>",
		Args:    cobra.ExactArgs(1),
		Short:   "verifies a JSON proof with the configured trust anchors",
		PreRunE: initConfigPreRun,
		RunE:    verifyProof,
	}

	c.Flags().Uint32("now", 0, "verification time in seconds since epoch, the current time if 0")

	return c
}

func verifyProof(cmd *cobra.Command, args []string) error {
	now, _ := cmd.Flags().GetUint32("now")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("can't read proof: %w", err)
	}

	var steps []api.ProofStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return fmt.Errorf("can't parse proof: %w", err)
	}

	proof, err := api.DecodeProof(steps)
	if err != nil {
		return fmt.Errorf("can't parse proof: %w", err)
	}

	return verifyAndPrint(cmd.Context(), proof, now)
}

// verifyAndPrint verifies offline against an oracle with the configured anchors and bindings
func verifyAndPrint(ctx context.Context, proof []dnssec.ProofStep, now uint32) error {
	if now == 0 {
		now = dnssec.Timestamp(time.Now())
	}

	o, err := oracle.New(ctx, cfg.Oracle, store.NewMemoryStore())
	if err != nil {
		return fmt.Errorf("can't create oracle: %w", err)
	}

	res, err := o.VerifyRRSet(ctx, proof, now)
	if err != nil {
		return fmt.Errorf("proof rejected: %w", err)
	}

	result, err := api.NewVerifyResult(res)
	if err != nil {
		return err
	}

	log.Log().Infof("Verified %s %s:", result.Type, result.Name)

	for _, r := range result.Records {
		log.Log().Infof("\t%s", r)
	}

	until := time.Unix(int64(result.ValidUntil), 0).UTC()

	if result.ValidUntil > now {
		log.Log().Infof("valid for %s, until %s",
			durafmt.Parse(time.Duration(result.ValidUntil-now)*time.Second).String(), until.Format(time.RFC3339))
	} else {
		log.Log().Infof("valid until %s", until.Format(time.RFC3339))
	}

	return nil
}
