package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/state"
	"github.com/ardanlabs/cryptoverse/foundation/nameservice"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	signType    string
	signInputs  []string
	signOutputs []string
	signTime    int64
	signURL     string
	signSubmit  bool
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Build and sign an event",
	Long: `Build and sign an event with the fleet key.

Outputs are written owner:key:system:count. The owner is a fleet name from
the fleet path or a fleet hash, an empty key gets a random one. A reward
takes a single owner and mints the default vessel.`,
	RunE: signRun,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&signType, "type", "t", "transfer", "Event type: reward, jump, attack or transfer.")
	signCmd.Flags().StringSliceVarP(&signInputs, "input", "i", nil, "Key of an event output to consume.")
	signCmd.Flags().StringSliceVarP(&signOutputs, "output", "o", nil, "Output as owner:key:system:count.")
	signCmd.Flags().Int64Var(&signTime, "time", 0, "Event time in unix seconds, defaults to now.")
	signCmd.Flags().StringVarP(&signURL, "url", "u", "http://localhost:8080", "Url of the node.")
	signCmd.Flags().BoolVarP(&signSubmit, "submit", "s", false, "Submit the event to the node.")
}

func signRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	ns, err := nameservice.New(fleetPath)
	if err != nil {
		return err
	}

	typ, err := database.ParseEventType(signType)
	if err != nil {
		return err
	}

	tm := signTime
	if tm == 0 {
		tm = time.Now().Unix()
	}

	ev, err := buildEvent(ns, typ, tm, signInputs, signOutputs)
	if err != nil {
		return err
	}

	ev, err = ev.Sign(privateKey)
	if err != nil {
		return fmt.Errorf("signing event: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if signSubmit {
		if data, err = submit(signURL, "/v1/events", data); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// buildEvent assembles the unsigned event from the command line values.
func buildEvent(ns *nameservice.NameService, typ database.EventType, tm int64, inputs []string, outputs []string) (database.SignedEvent, error) {
	ev := database.SignedEvent{
		Type: typ,
		Time: tm,
	}

	for i, key := range inputs {
		ev.Inputs = append(ev.Inputs, database.EventRef{Index: i, Key: key})
	}

	for i, spec := range outputs {
		out, err := parseOutput(ns, spec)
		if err != nil {
			return database.SignedEvent{}, err
		}

		if typ == database.EventReward {
			out = state.NewRewardOutput(rules.Default(), out.FleetHash, out.Key)
		}

		out.Index = i
		out.Type = typ
		ev.Outputs = append(ev.Outputs, out)
	}

	return ev, nil
}

// parseOutput reads an output written owner:key:system:count. Trailing
// parts may be left out.
func parseOutput(ns *nameservice.NameService, spec string) (database.EventOutput, error) {
	parts := strings.Split(spec, ":")
	if len(parts) > 4 {
		return database.EventOutput{}, fmt.Errorf("output %q has too many parts", spec)
	}

	for len(parts) < 4 {
		parts = append(parts, "")
	}

	owner, err := resolveFleet(ns, parts[0])
	if err != nil {
		return database.EventOutput{}, fmt.Errorf("output %q: %w", spec, err)
	}

	key := parts[1]
	if key == "" {
		key = uuid.NewString()
	}

	var count uint64
	if parts[3] != "" {
		if count, err = strconv.ParseUint(parts[3], 10, 64); err != nil {
			return database.EventOutput{}, fmt.Errorf("output %q: count: %w", spec, err)
		}
	}

	out := database.EventOutput{
		FleetHash:  owner,
		Key:        key,
		StarSystem: parts[2],
		Count:      count,
	}

	return out, nil
}

// resolveFleet accepts a fleet hash or the name of a key in the fleet path.
func resolveFleet(ns *nameservice.NameService, owner string) (string, error) {
	if signature.IsHash(owner) {
		return owner, nil
	}

	for hash, name := range ns.Copy() {
		if name == owner {
			return hash, nil
		}
	}

	return "", fmt.Errorf("unknown fleet %q", owner)
}
